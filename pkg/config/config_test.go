package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/nfswire/internal/bytesize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateConfigDir(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolateConfigDir(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":2049", cfg.NFS.ListenAddr)
	assert.Equal(t, "/export", cfg.Export.Path)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	isolateConfigDir(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
logging:
  level: DEBUG
nfs:
  listen_addr: ":12049"
  max_fragment_size: "512Ki"
  idle_timeout: "1m"
export:
  path: /data
metrics:
  enabled: true
  listen_addr: ":9999"
shutdown_timeout: "10s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, ":12049", cfg.NFS.ListenAddr)
	assert.Equal(t, 512*bytesize.KiB, cfg.NFS.MaxFragmentSize)
	assert.Equal(t, time.Minute, cfg.NFS.IdleTimeout)
	assert.Equal(t, "/data", cfg.Export.Path)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)

	// Unspecified keys keep their defaults
	assert.Equal(t, 16, cfg.NFS.MaxRequestsPerConnection)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	isolateConfigDir(t)
	t.Setenv("NFSWIRE_NFS_LISTEN_ADDR", ":3049")
	t.Setenv("NFSWIRE_LOGGING_LEVEL", "ERROR")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":3049", cfg.NFS.ListenAddr)
	assert.Equal(t, "ERROR", cfg.Logging.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolateConfigDir(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidationRejectsBadValues(t *testing.T) {
	isolateConfigDir(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("export:\n  path: relative/path\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestWriteSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteSample(path, false))

	// The sample itself loads cleanly
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":2049", cfg.NFS.ListenAddr)

	// Refuses to overwrite without force
	require.Error(t, WriteSample(path, false))
	require.NoError(t, WriteSample(path, true))
}
