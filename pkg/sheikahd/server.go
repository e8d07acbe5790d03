package sheikahd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Fl0rencess720/sheikah/pkg/common/metrics"
	"github.com/Fl0rencess720/sheikah/pkg/common/observability"
	"github.com/Fl0rencess720/sheikah/pkg/generator"
	"github.com/Fl0rencess720/sheikah/pkg/sheikahd/config"
	"github.com/Fl0rencess720/sheikah/pkg/sheikahd/handlers"
	"github.com/Fl0rencess720/sheikah/pkg/sheikahd/handlers/mcp"
	"github.com/Fl0rencess720/sheikah/pkg/terminal"
	"github.com/Fl0rencess720/sheikah/pkg/workspace"
	"github.com/gin-contrib/cors"
	ginZap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	httpServer *http.Server
	workspace  *workspace.Service
	terminals  *terminal.Manager
	terminal   *handlers.TerminalHandler
	watch      bool
}

type Option func(*options)

type options struct {
	generator generator.Generator
}

// WithGenerator 替换默认的 OpenAI 兼容生成器
func WithGenerator(gen generator.Generator) Option {
	return func(o *options) {
		o.generator = gen
	}
}

func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// 根目录需要先存在，Resolver 才能展开其真实路径
	if strings.TrimSpace(cfg.WorkspaceRoot) != "" {
		if err := os.MkdirAll(cfg.WorkspaceRoot, 0o755); err != nil {
			return nil, fmt.Errorf("prepare workspace root failed: %w", err)
		}
	}
	resolver, err := workspace.NewResolver(cfg.WorkspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("init workspace resolver failed: %w", err)
	}
	svc := workspace.NewService(resolver, workspace.Options{
		MaxFileBytes:  cfg.MaxFileBytes,
		SearchWorkers: cfg.SearchWorkers,
	})

	manager := terminal.NewManager(terminal.Options{
		Shell:       cfg.Shell,
		Dir:         svc.Root(),
		MaxSessions: cfg.MaxSessions,
	})

	gen := o.generator
	if gen == nil {
		gen = generator.NewClient(generator.Config{
			BaseURL:     cfg.Generator.BaseURL,
			APIKey:      cfg.Generator.APIKey,
			Model:       cfg.Generator.Model,
			Temperature: cfg.Generator.Temperature,
			Timeout:     cfg.Generator.Timeout,
		})
	}

	e := gin.New()
	e.Use(tracingMiddleware(), metrics.Middleware())
	e.Use(ginZap.Ginzap(zap.L(), time.RFC3339, false), ginZap.RecoveryWithZap(zap.L(), false))
	e.Use(cors.New(corsConfig(cfg.AllowOrigins)))

	e.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": manager.Count()})
	})
	e.GET("/metrics", metrics.Handler())
	e.Any("/mcp", gin.WrapH(mcp.NewMCPHandler(svc)))

	handlers.InitFSApi(e.Group("/files"), svc)
	handlers.InitGenerateApi(e.Group(""), svc, gen)
	terminalHandler := handlers.InitTerminalApi(e.Group(""), manager)

	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           e,
			ReadHeaderTimeout: 10 * time.Second,
		},
		workspace: svc,
		terminals: manager,
		terminal:  terminalHandler,
		watch:     cfg.WatchEnabled,
	}, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", observability.RequestIDHeader, "Mcp-Session-Id", "Mcp-Protocol-Version"},
		ExposeHeaders: []string{observability.RequestIDHeader, "Mcp-Session-Id"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// Serve 阻塞直到 ctx 取消；退出前关闭所有终端会话，避免遗留 shell 进程
func (s *Server) Serve(ctx context.Context) error {
	if s.watch {
		if err := s.startWatcher(ctx); err != nil {
			zap.L().Warn("Workspace watcher disabled", zap.Error(err))
		}
	}

	go func() {
		<-ctx.Done()
		s.terminals.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			zap.L().Error("Server shutdown error", zap.Error(err))
		}
	}()

	zap.S().Infof("Sheikah server listening on %s, workspace %s", s.httpServer.Addr, s.workspace.Root())

	return s.httpServer.ListenAndServe()
}

func (s *Server) startWatcher(ctx context.Context) error {
	w, err := workspace.NewWatcher(s.workspace, 0, s.terminal.FilesChanged)
	if err != nil {
		return err
	}
	go func() {
		if err := w.Run(ctx); err != nil {
			zap.L().Warn("Workspace watcher stopped", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
