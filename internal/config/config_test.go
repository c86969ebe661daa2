package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadLayersFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vidzoom.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
input = "clips/demo.mp4"

[render]
width = 1920
height = 1080
fps = 60

[export]
codecs = ["libx264", "mpeg4"]

[batch]
workers = 4
`), 0644))

	t.Setenv("VIDZOOM_FPS", "24")
	t.Setenv("VIDZOOM_CODECS", "libvpx, mpeg4 ,")
	t.Setenv("VIDZOOM_STATS", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "clips/demo.mp4", cfg.InputPath)
	assert.Equal(t, 1920, cfg.Render.Width)
	assert.Equal(t, 24, cfg.Render.FPS)
	assert.Equal(t, []string{"libvpx", "mpeg4"}, cfg.Export.Codecs)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.True(t, cfg.ShowStats)
	// Untouched sections keep their defaults.
	assert.Equal(t, 0.3, cfg.Audio.DuckingAmount)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Render, cfg.Render)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("VIDZOOM_WIDTH", "wide")
	_, err := Load("")
	assert.ErrorContains(t, err, "VIDZOOM_WIDTH")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero fps", func(c *Config) { c.Render.FPS = 0 }, "fps"},
		{"odd width", func(c *Config) { c.Render.Width = 1281 }, "even"},
		{"no codecs", func(c *Config) { c.Export.Codecs = nil }, "codecs"},
		{"ducking above one", func(c *Config) { c.Audio.DuckingAmount = 1.5 }, "ducking_amount"},
		{"no workers", func(c *Config) { c.Batch.Workers = 0 }, "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
