// Package config holds the settings of a synthesis run.
//
// Settings come from three layers, later ones winning: Default(), an optional
// JSON file, and THREAT_AUGMENT_* environment variables (a .env file in the
// working directory is loaded first when present). The CLI applies its flags
// on top.
package config

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/ironsheep/threat-augment/internal/composite"
	"github.com/ironsheep/threat-augment/internal/dataset"
	"github.com/ironsheep/threat-augment/internal/imaging"
	"github.com/ironsheep/threat-augment/internal/logging"
	"github.com/ironsheep/threat-augment/internal/segment"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "THREAT_AUGMENT_"

// Config holds the application configuration
type Config struct {
	Paths        PathsConfig        `json:"paths"`
	Filter       FilterConfig       `json:"filter"`
	Calibration  CalibrationConfig  `json:"calibration"`
	Segmentation SegmentationConfig `json:"segmentation"`
	Composite    CompositeConfig    `json:"composite"`

	// Category selects one object category; empty means every category in
	// the annotation file.
	Category string `json:"category"`

	// Seed seeds every random draw; 0 seeds from the clock.
	Seed     uint64 `json:"seed"`
	LogLevel string `json:"log_level"`
}

// PathsConfig locates the inputs and outputs of a run.
type PathsConfig struct {
	ImageRoot      string `json:"image_root"`
	NegativesDir   string `json:"negatives_dir"`
	AnnotationPath string `json:"annotation_path"`
	OutputRoot     string `json:"output_root"`
}

// FilterConfig holds the chip size floor
type FilterConfig struct {
	MinHeight int `json:"min_height"`
	MinWidth  int `json:"min_width"`
}

// MinSize returns the floor as a dataset.MinSize.
func (f FilterConfig) MinSize() dataset.MinSize {
	return dataset.MinSize{Height: f.MinHeight, Width: f.MinWidth}
}

// CalibrationConfig controls the size ratio cache
type CalibrationConfig struct {
	Force bool `json:"force"`
}

// SegmentationConfig holds the color range of the category
type SegmentationConfig struct {
	Backend string        `json:"backend"`
	Range   segment.Range `json:"range"`
	Negate  bool          `json:"negate"`
}

// CompositeConfig controls placement and output of composites
type CompositeConfig struct {
	Placement string `json:"placement"`
	OffsetX   int    `json:"offset_x"`
	OffsetY   int    `json:"offset_y"`
	Format    string `json:"format"`
	Quality   int    `json:"quality"`
	// Preview additionally writes each composite with its box outlined.
	Preview bool `json:"preview"`
}

// Offset returns the fixed placement origin.
func (c CompositeConfig) Offset() image.Point {
	return image.Pt(c.OffsetX, c.OffsetY)
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Filter: FilterConfig{
			MinHeight: 99,
			MinWidth:  50,
		},
		Segmentation: SegmentationConfig{
			Backend: segment.BackendNative,
			Range:   segment.DefaultRange,
		},
		Composite: CompositeConfig{
			Placement: composite.PlacementFixed,
			OffsetX:   composite.DefaultOffset.X,
			OffsetY:   composite.DefaultOffset.Y,
			Format:    "jpg",
			Quality:   imaging.DefaultQuality,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, the JSON file at path (skipped
// when path is empty) and the environment. The result is not validated, so
// callers can layer flags on top before calling Validate.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load .env")
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a JSON file over the defaults
func LoadFromFile(filename string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(filename); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides settings from environment variables read via lookup.
//
// Recognised variables (all prefixed with THREAT_AUGMENT_): IMAGE_ROOT,
// NEGATIVES_DIR, ANNOTATION_PATH, OUTPUT_ROOT, CATEGORY, SEED, LOG_LEVEL,
// MIN_HEIGHT, MIN_WIDTH, FORCE_CALIBRATION, BACKEND, PLACEMENT, FORMAT.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"IMAGE_ROOT":      &c.Paths.ImageRoot,
		"NEGATIVES_DIR":   &c.Paths.NegativesDir,
		"ANNOTATION_PATH": &c.Paths.AnnotationPath,
		"OUTPUT_ROOT":     &c.Paths.OutputRoot,
		"CATEGORY":        &c.Category,
		"LOG_LEVEL":       &c.LogLevel,
		"BACKEND":         &c.Segmentation.Backend,
		"PLACEMENT":       &c.Composite.Placement,
		"FORMAT":          &c.Composite.Format,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MIN_HEIGHT": &c.Filter.MinHeight,
		"MIN_WIDTH":  &c.Filter.MinWidth,
	}
	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := cast.ToIntE(strings.TrimSpace(v))
			if err != nil {
				return errors.Wrapf(err, "%s%s", EnvPrefix, key)
			}
			*dst = n
		}
	}

	if v, ok := lookup(EnvPrefix + "SEED"); ok {
		n, err := cast.ToUint64E(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "%sSEED", EnvPrefix)
		}
		c.Seed = n
	}
	if v, ok := lookup(EnvPrefix + "FORCE_CALIBRATION"); ok {
		b, err := cast.ToBoolE(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "%sFORCE_CALIBRATION", EnvPrefix)
		}
		c.Calibration.Force = b
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.ContainsAny(c.Category, `/\`) {
		return fmt.Errorf("category %q must not contain path separators", c.Category)
	}

	if c.Filter.MinHeight < 0 || c.Filter.MinWidth < 0 {
		return fmt.Errorf("filter minimums must not be negative")
	}

	if err := c.Segmentation.Range.Validate(); err != nil {
		return fmt.Errorf("segmentation.range: %w", err)
	}
	switch c.Segmentation.Backend {
	case "", segment.BackendNative, segment.BackendGoCV:
	default:
		return fmt.Errorf("segmentation.backend must be %q or %q", segment.BackendNative, segment.BackendGoCV)
	}

	if _, err := composite.NewPlacement(c.Composite.Placement, c.Composite.Offset()); err != nil {
		return fmt.Errorf("composite.placement: %w", err)
	}
	if c.Composite.OffsetX < 0 || c.Composite.OffsetY < 0 {
		return fmt.Errorf("composite offset must not be negative")
	}
	if !imaging.CanEncode(c.Composite.Format) {
		return fmt.Errorf("composite.format %q cannot be encoded", c.Composite.Format)
	}
	if c.Composite.Quality < 1 || c.Composite.Quality > 100 {
		return fmt.Errorf("composite.quality must be between 1 and 100")
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// RequireCategory reports an error when no single category is selected.
func (c *Config) RequireCategory() error {
	if strings.TrimSpace(c.Category) == "" {
		return fmt.Errorf("category cannot be empty")
	}
	return nil
}

// ValidatePaths checks that the paths a stage needs are set. Each argument
// names a path that must be non-empty.
func (c *Config) ValidatePaths(imageRoot, negatives, annotations bool) error {
	missing := []string{}
	if c.Paths.OutputRoot == "" {
		missing = append(missing, "output_root")
	}
	if imageRoot && c.Paths.ImageRoot == "" {
		missing = append(missing, "image_root")
	}
	if negatives && c.Paths.NegativesDir == "" {
		missing = append(missing, "negatives_dir")
	}
	if annotations && c.Paths.AnnotationPath == "" {
		missing = append(missing, "annotation_path")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing paths: %s", strings.Join(missing, ", "))
	}
	return nil
}
