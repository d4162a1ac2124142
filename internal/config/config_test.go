package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, "vscode", cfg.User)
	assert.Equal(t, "root", cfg.AdminUser)
	assert.Zero(t, cfg.Port, "unset, so host:port and ~/.ssh/config apply")
	assert.Equal(t, QualityStable, cfg.Quality)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Connect)
	assert.Equal(t, 60*time.Second, cfg.Timeouts.DeviceCode)
	assert.Equal(t, 180*time.Second, cfg.Timeouts.Connection)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.PollInterval)
	assert.Equal(t, 50, cfg.Journal.Lines)
	assert.True(t, cfg.Output.Clipboard)
	require.NoError(t, Validate(cfg))
}

func TestLoad_File(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: 1
user: tunnel
tunnel_name: devbox
quality: insider
timeouts:
  device_code: 90s
output:
  clipboard: false
`), 0644))

	cfg, used, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, used)
	assert.Equal(t, "tunnel", cfg.User)
	assert.Equal(t, "devbox", cfg.TunnelName)
	assert.Equal(t, QualityInsider, cfg.Quality)
	assert.Equal(t, 90*time.Second, cfg.Timeouts.DeviceCode)
	assert.False(t, cfg.Output.Clipboard)

	// Unset keys keep their defaults.
	assert.Equal(t, "root", cfg.AdminUser)
	assert.Equal(t, 180*time.Second, cfg.Timeouts.Connection)
	assert.True(t, cfg.Output.Browser)
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, used, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("user: [unclosed\n"), 0644))

	_, _, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("user: fromfile\n"), 0644))

	t.Setenv("TUNNELUP_USER", "fromenv")
	t.Setenv("TUNNELUP_TIMEOUTS_POLL_INTERVAL", "500ms")
	t.Setenv("TUNNELUP_IDENTITY_FILE", "~/.ssh/id_tunnel")

	cfg, used, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "fromenv", cfg.User)
	assert.Equal(t, 500*time.Millisecond, cfg.Timeouts.PollInterval)
	assert.Equal(t, filepath.Join(home, ".ssh", "id_tunnel"), cfg.IdentityFile)
}

func TestExpandTilde(t *testing.T) {
	t.Setenv("HOME", "/home/alice")

	assert.Equal(t, "/home/alice", ExpandTilde("~"))
	assert.Equal(t, "/home/alice/.ssh/k", ExpandTilde("~/.ssh/k"))
	assert.Equal(t, "/abs", ExpandTilde("/abs"))
	assert.Equal(t, "~bob/x", ExpandTilde("~bob/x"))
	assert.Equal(t, "", ExpandTilde(""))
}
