package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("BLOCKCLIP_CONFIG", "")
	t.Setenv("BLOCKCLIP_MAX_DEPTH", "")
	t.Setenv("BLOCKCLIP_DATA_DIR", "")
	t.Setenv("BLOCKCLIP_METRICS_ADDR", "")
	t.Setenv("BLOCKCLIP_OTLP_ENDPOINT", "")
	t.Setenv("BLOCKCLIP_LOG_LEVEL", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EnvFallbacks(t *testing.T) {
	t.Setenv("BLOCKCLIP_CONFIG", "")
	t.Setenv("BLOCKCLIP_MAX_DEPTH", "12")
	t.Setenv("BLOCKCLIP_DATA_DIR", "/tmp/drawings")
	t.Setenv("BLOCKCLIP_METRICS_ADDR", ":2112")
	t.Setenv("BLOCKCLIP_OTLP_ENDPOINT", "localhost:4318")
	t.Setenv("BLOCKCLIP_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Engine.MaxDepth)
	assert.Equal(t, "/tmp/drawings", cfg.Storage.DataDir)
	assert.Equal(t, ":2112", cfg.Metrics.Addr)
	assert.Equal(t, "localhost:4318", cfg.Telemetry.Endpoint)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_FileOverridesEnv(t *testing.T) {
	t.Setenv("BLOCKCLIP_MAX_DEPTH", "12")
	t.Setenv("BLOCKCLIP_DATA_DIR", "")

	path := filepath.Join(t.TempDir(), "blockclip.yaml")
	data := []byte(`
engine:
  max_depth: 8
  clip_dictionary: MY_FILTER
storage:
  data_dir: ./plans
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("BLOCKCLIP_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Engine.MaxDepth)
	assert.Equal(t, "MY_FILTER", cfg.Engine.ClipDictionary)
	assert.Equal(t, "SPATIAL", cfg.Engine.ClipEntry)
	assert.Equal(t, "./plans", cfg.Storage.DataDir)
	assert.Equal(t, 0.001, cfg.Engine.Tolerance)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("BLOCKCLIP_CONFIG", "")
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("engine:\n  default_color: 300\n"), 0o644))
	_, err := Load(bad)
	assert.Error(t, err)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("engine: [\n"), 0o644))
	_, err = Load(broken)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
