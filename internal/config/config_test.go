package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "rekognition", cfg.Detection.Backend)
	assert.Equal(t, 10, cfg.Detection.MaxLabels)
	assert.Equal(t, 70.0, cfg.Detection.MinConfidence)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Detection.Backend = "azure" }},
		{"zero labels", func(c *Config) { c.Detection.MaxLabels = 0 }},
		{"confidence above 100", func(c *Config) { c.Detection.MinConfidence = 101 }},
		{"negative alpha", func(c *Config) { c.Render.CaptionAlpha = -0.1 }},
		{"bad color", func(c *Config) { c.Render.BoxColor = "red" }},
		{"bad format", func(c *Config) { c.Output.DefaultFormat = "tiff" }},
		{"bad quality", func(c *Config) { c.Output.Quality = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"detection":{"backend":"gcp","max_labels":5}}`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "gcp", cfg.Detection.Backend)
	assert.Equal(t, 5, cfg.Detection.MaxLabels)
	assert.Equal(t, 70.0, cfg.Detection.MinConfidence)
	assert.Equal(t, "_labels", cfg.Output.Suffix)
}

func TestSaveToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.AWS.Region = "eu-west-1"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LABELVIZ_MODEL=llava:13b\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("LABELVIZ_MODEL") })

	t.Setenv("LABELVIZ_BACKEND", "OLLAMA")
	t.Setenv("LABELVIZ_MIN_CONFIDENCE", "55.5")
	t.Setenv("AWS_REGION", "us-west-2")

	cfg := Default()
	require.NoError(t, cfg.LoadEnv(envFile))
	assert.Equal(t, "ollama", cfg.Detection.Backend)
	assert.Equal(t, "llava:13b", cfg.Detection.Model)
	assert.Equal(t, 55.5, cfg.Detection.MinConfidence)
	assert.Equal(t, "us-west-2", cfg.AWS.Region)
}

func TestLoadEnvMissingFileIgnored(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.LoadEnv(filepath.Join(t.TempDir(), "nope.env")))
}

func TestLoadEnvBadNumber(t *testing.T) {
	t.Setenv("LABELVIZ_MAX_LABELS", "ten")
	cfg := Default()
	assert.Error(t, cfg.LoadEnv(filepath.Join(t.TempDir(), "nope.env")))
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#ff0000")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, c)

	c, err = ParseHexColor("0af")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{0, 170, 255, 255}, c)

	_, err = ParseHexColor("#12345")
	assert.Error(t, err)
	_, err = ParseHexColor("#gggggg")
	assert.Error(t, err)
}
