package logging

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zapcore.InfoLevel, parseLevel(""))
	require.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	require.Equal(t, zapcore.WarnLevel, parseLevel(" warn "))
	require.Equal(t, zapcore.InfoLevel, parseLevel("loud"))
}

func TestInitWithOptions_WritesRotatedFile(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	logFile := filepath.Join(t.TempDir(), "sheikahd.log")
	InitWithOptions(Options{Level: "info", File: logFile})

	zap.L().Info("workspace ready", zap.String("root", "/tmp/ws"))
	Sync(zap.L())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	require.Contains(t, string(data), "workspace ready")
	require.Contains(t, string(data), `"root":"/tmp/ws"`)
}

func TestIsIgnorableSyncError(t *testing.T) {
	require.True(t, isIgnorableSyncError(syscall.EINVAL))
	require.False(t, isIgnorableSyncError(os.ErrPermission))
}
