package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "./models", cfg.Models.CacheDir)
	assert.NotEmpty(t, cfg.Models.DefaultHub)
	assert.NotEmpty(t, cfg.Models.ArtifactPath)
	assert.Equal(t, 120*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 30*time.Second, cfg.InferTimeout())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("SER_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
models:
  cache_dir: /var/cache/ser
timeouts:
  fetch_seconds: 10
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("SER_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/var/cache/ser", cfg.Models.CacheDir)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout())
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched fields keep their defaults.
	assert.Equal(t, Defaults().Server.Port, cfg.Server.Port)
	assert.Equal(t, Defaults().Timeouts.InferenceSeconds, cfg.Timeouts.InferenceSeconds)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models: ["), 0o644))
	t.Setenv("SER_CONFIG", path)

	_, err := Load()
	assert.Error(t, err)
}
