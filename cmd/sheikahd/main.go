package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fl0rencess720/sheikah/pkg/common/conf"
	"github.com/Fl0rencess720/sheikah/pkg/common/logging"
	"github.com/Fl0rencess720/sheikah/pkg/common/observability"
	"github.com/Fl0rencess720/sheikah/pkg/generator"
	"github.com/Fl0rencess720/sheikah/pkg/sheikahd"
	"github.com/Fl0rencess720/sheikah/pkg/sheikahd/config"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func init() {
	logging.Init()
}

func main() {
	port := flag.String("port", "3000", "Sheikah server port")
	flag.Parse()

	if err := conf.Init(); err != nil {
		zap.L().Fatal("Load config failed", zap.Error(err))
		return
	}

	// 绑定环境变量
	_ = viper.BindEnv("workspace.root", "SK_WORKSPACE_ROOT")
	_ = viper.BindEnv("workspace.max_file_bytes", "SK_WORKSPACE_MAX_FILE_BYTES")
	_ = viper.BindEnv("workspace.search_workers", "SK_WORKSPACE_SEARCH_WORKERS")
	_ = viper.BindEnv("workspace.watch", "SK_WORKSPACE_WATCH")
	_ = viper.BindEnv("terminal.shell", "SK_TERMINAL_SHELL")
	_ = viper.BindEnv("terminal.max_sessions", "SK_TERMINAL_MAX_SESSIONS")
	_ = viper.BindEnv("generator.base_url", "SK_GENERATOR_BASE_URL")
	_ = viper.BindEnv("generator.api_key", "SK_GENERATOR_API_KEY", "GROQ_API_KEY")
	_ = viper.BindEnv("generator.model", "SK_GENERATOR_MODEL")
	_ = viper.BindEnv("generator.temperature", "SK_GENERATOR_TEMPERATURE")
	_ = viper.BindEnv("generator.timeout", "SK_GENERATOR_TIMEOUT")
	_ = viper.BindEnv("cors.allow_origins", "SK_CORS_ALLOW_ORIGINS")
	_ = viper.BindEnv("log.level", "SK_LOG_LEVEL")
	_ = viper.BindEnv("log.file", "SK_LOG_FILE")
	_ = viper.BindEnv("log.max_size_mb", "SK_LOG_MAX_SIZE_MB")
	_ = viper.BindEnv("log.max_backups", "SK_LOG_MAX_BACKUPS")
	_ = viper.BindEnv("log.max_age_days", "SK_LOG_MAX_AGE_DAYS")
	_ = viper.BindEnv("otel.enabled", "SK_OTEL_ENABLED")
	_ = viper.BindEnv("otel.endpoint", "SK_OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = viper.BindEnv("otel.insecure", "SK_OTEL_EXPORTER_OTLP_INSECURE")
	_ = viper.BindEnv("otel.sample_ratio", "SK_OTEL_TRACES_SAMPLE_RATIO")

	viper.SetDefault("workspace.root", "./workspace")
	viper.SetDefault("workspace.max_file_bytes", 10*1024*1024)
	viper.SetDefault("workspace.search_workers", 8)
	viper.SetDefault("workspace.watch", true)
	viper.SetDefault("terminal.shell", "")
	viper.SetDefault("terminal.max_sessions", 0)
	viper.SetDefault("generator.base_url", generator.DefaultBaseURL)
	viper.SetDefault("generator.model", generator.DefaultModel)
	viper.SetDefault("generator.temperature", generator.DefaultTemperature)
	viper.SetDefault("generator.timeout", generator.DefaultTimeout.String())
	viper.SetDefault("log.level", "info")
	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.endpoint", "localhost:4317")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.sample_ratio", 0.1)

	// 配置加载后按配置重建全局 logger
	logging.InitWithOptions(logging.Options{
		Level:      viper.GetString("log.level"),
		File:       viper.GetString("log.file"),
		MaxSizeMB:  viper.GetInt("log.max_size_mb"),
		MaxBackups: viper.GetInt("log.max_backups"),
		MaxAgeDays: viper.GetInt("log.max_age_days"),
	})

	otelShutdown, err := observability.InitTracerProvider(context.Background(), observability.Config{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    "sheikahd",
		ServiceVersion: "v0.1.0",
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
		SampleRatio:    viper.GetFloat64("otel.sample_ratio"),
	})
	if err != nil {
		zap.L().Fatal("Initialize tracing failed", zap.Error(err))
		return
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := otelShutdown(shutdownCtx); shutdownErr != nil {
			zap.L().Warn("Shutdown tracer provider failed", zap.Error(shutdownErr))
		}
	}()

	config := &config.Config{
		Port:          *port,
		WorkspaceRoot: viper.GetString("workspace.root"),
		MaxFileBytes:  viper.GetInt64("workspace.max_file_bytes"),
		SearchWorkers: viper.GetInt("workspace.search_workers"),
		WatchEnabled:  viper.GetBool("workspace.watch"),
		Shell:         viper.GetString("terminal.shell"),
		MaxSessions:   viper.GetInt("terminal.max_sessions"),
		Generator: config.GeneratorConfig{
			BaseURL:     viper.GetString("generator.base_url"),
			APIKey:      viper.GetString("generator.api_key"),
			Model:       viper.GetString("generator.model"),
			Temperature: viper.GetFloat64("generator.temperature"),
			Timeout:     viper.GetDuration("generator.timeout"),
		},
		AllowOrigins: config.SplitOrigins(viper.GetStringSlice("cors.allow_origins")),
	}
	if config.Generator.APIKey == "" {
		zap.L().Warn("Generator API key is not set, /generate will fail")
	}

	server, err := sheikahd.NewServer(config)
	if err != nil {
		zap.L().Fatal("New Server failed", zap.Error(err))
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer logging.Sync(zap.L())

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ctx); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		zap.L().Info("Received shutdown signal, shutting down gracefully...")
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("Server shutdown error", zap.Error(err))
		}
		zap.L().Info("Server shutdown complete.")
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			zap.L().Info("Server shutdown complete.")
			return
		}
		zap.L().Fatal("Server error", zap.Error(err))
	}
}
