package logging

import (
	"errors"
	"os"
	"strings"
	"syscall"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options 控制全局 logger 的输出目标与级别
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init 以默认参数初始化全局 logger，供各二进制的 init() 调用
func Init() {
	InitWithOptions(Options{Level: os.Getenv("SK_LOG_LEVEL")})
}

// InitWithOptions 构建 JSON 编码的 zap logger，配置了文件路径时额外写入按大小滚动的日志文件
func InitWithOptions(opts Options) {
	level := zap.NewAtomicLevelAt(parseLevel(opts.Level))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
	}
	if strings.TrimSpace(opts.File) != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    defaultInt(opts.MaxSizeMB, 100),
			MaxBackups: defaultInt(opts.MaxBackups, 5),
			MaxAge:     defaultInt(opts.MaxAgeDays, 14),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	zap.ReplaceGlobals(logger)
}

// Sync 刷新缓冲日志，忽略 stdout/stderr 不支持 fsync 的错误
func Sync(logger *zap.Logger) {
	if logger == nil {
		return
	}
	if err := logger.Sync(); err != nil && !isIgnorableSyncError(err) {
		_, _ = os.Stderr.WriteString("sync logger failed: " + err.Error() + "\n")
	}
}

func parseLevel(v string) zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(v)))); err != nil || v == "" {
		return zapcore.InfoLevel
	}
	return level
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func isIgnorableSyncError(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF)
}
