package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/threat-augment/internal/composite"
	"github.com/ironsheep/threat-augment/internal/dataset"
	"github.com/ironsheep/threat-augment/internal/imaging"
	"github.com/ironsheep/threat-augment/internal/segment"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Empty(t, cfg.Category, "every category by default")
	assert.Equal(t, dataset.MinSize{Height: 99, Width: 50}, cfg.Filter.MinSize())
	assert.Equal(t, segment.DefaultRange, cfg.Segmentation.Range)
	assert.Equal(t, segment.BackendNative, cfg.Segmentation.Backend)
	assert.Equal(t, composite.PlacementFixed, cfg.Composite.Placement)
	assert.Equal(t, composite.DefaultOffset, cfg.Composite.Offset())
	assert.Equal(t, imaging.DefaultQuality, cfg.Composite.Quality)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
  "paths": {"output_root": "/data/out"},
  "category": "Knife",
  "filter": {"min_height": 40},
  "segmentation": {"range": {"low": {"h": 10, "s": 20, "v": 30}, "high": {"h": 90, "s": 200, "v": 250}}, "negate": true},
  "composite": {"placement": "random"},
  "seed": 7
}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/out", cfg.Paths.OutputRoot)
	assert.Equal(t, "Knife", cfg.Category)
	assert.Equal(t, 40, cfg.Filter.MinHeight)
	assert.Equal(t, 50, cfg.Filter.MinWidth, "unset fields keep defaults")
	assert.Equal(t, imaging.HSV{H: 10, S: 20, V: 30}, cfg.Segmentation.Range.Low)
	assert.True(t, cfg.Segmentation.Negate)
	assert.Equal(t, composite.PlacementRandom, cfg.Composite.Placement)
	assert.Equal(t, uint64(7), cfg.Seed)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Category = "Pliers"
	cfg.Composite.Preview = true

	path := filepath.Join(t.TempDir(), "nested", "config.json")
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		EnvPrefix + "OUTPUT_ROOT":       "/tmp/out",
		EnvPrefix + "CATEGORY":          "Knife",
		EnvPrefix + "MIN_HEIGHT":        " 120 ",
		EnvPrefix + "SEED":              "42",
		EnvPrefix + "FORCE_CALIBRATION": "true",
		EnvPrefix + "PLACEMENT":         "center",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/out", cfg.Paths.OutputRoot)
	assert.Equal(t, "Knife", cfg.Category)
	assert.Equal(t, 120, cfg.Filter.MinHeight)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.True(t, cfg.Calibration.Force)
	assert.Equal(t, composite.PlacementCentered, cfg.Composite.Placement)
}

func TestApplyEnv_BadValues(t *testing.T) {
	tests := map[string]string{
		"MIN_WIDTH":         "wide",
		"SEED":              "-",
		"FORCE_CALIBRATION": "maybe",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			cfg := Default()
			err := cfg.ApplyEnv(envMap(map[string]string{EnvPrefix + key: value}))
			assert.ErrorContains(t, err, EnvPrefix+key)
		})
	}
}

func TestRequireCategory(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.RequireCategory())

	cfg.Category = "Gun"
	assert.NoError(t, cfg.RequireCategory())
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, Default().SaveToFile(path))
	t.Setenv(EnvPrefix+"MIN_WIDTH", "77")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 77, cfg.Filter.MinWidth)
	assert.Equal(t, 99, cfg.Filter.MinHeight)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv(EnvPrefix+"CATEGORY", "Shuriken")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "Shuriken", cfg.Category)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"category with separator", func(c *Config) { c.Category = "a/b" }},
		{"negative minimum", func(c *Config) { c.Filter.MinWidth = -1 }},
		{"inverted range", func(c *Config) { c.Segmentation.Range.Low.H = 150 }},
		{"unknown backend", func(c *Config) { c.Segmentation.Backend = "cuda" }},
		{"unknown placement", func(c *Config) { c.Composite.Placement = "corner" }},
		{"negative offset", func(c *Config) { c.Composite.OffsetY = -5 }},
		{"unknown format", func(c *Config) { c.Composite.Format = "xcf" }},
		{"quality too high", func(c *Config) { c.Composite.Quality = 101 }},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidatePaths(t *testing.T) {
	cfg := Default()
	err := cfg.ValidatePaths(true, true, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output_root")
	assert.Contains(t, err.Error(), "image_root")
	assert.Contains(t, err.Error(), "negatives_dir")
	assert.Contains(t, err.Error(), "annotation_path")

	cfg.Paths.OutputRoot = "/out"
	assert.NoError(t, cfg.ValidatePaths(false, false, false))
	assert.Error(t, cfg.ValidatePaths(false, true, false))
}
