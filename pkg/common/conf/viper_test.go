package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoad_ReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("workspace:\n  root: /srv/ws\n"), 0o644))

	v := viper.New()
	require.NoError(t, load(v, dir))
	require.Equal(t, "/srv/ws", v.GetString("workspace.root"))
}

func TestLoad_MissingFileIsTolerated(t *testing.T) {
	v := viper.New()
	require.NoError(t, load(v, t.TempDir()))
}

func TestLoad_MissingFileRequired(t *testing.T) {
	v := viper.New()
	require.Error(t, load(v, t.TempDir(), WithRequired()))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.yaml"), []byte("terminal:\n  shell: /bin/sh\n"), 0o644))
	t.Setenv("SK_TERMINAL_SHELL", "/bin/bash")

	v := viper.New()
	require.NoError(t, load(v, dir, WithFileName("app")))
	require.Equal(t, "/bin/bash", v.GetString("terminal.shell"))
}
