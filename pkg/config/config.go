// Package config provides configuration loading and management for emdfusion.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"emdfusion/internal/models"
	"emdfusion/pkg/fusion"
	"emdfusion/pkg/imageio"
	"emdfusion/pkg/variance"
)

// DefaultFileName is the configuration file looked up in the home directory
const DefaultFileName = ".emdfusion.yaml"

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumWorkers bounds the goroutines used by per-pixel loops; 0 uses all CPUs
		NumWorkers int `yaml:"numWorkers"`
	} `yaml:"processing"`

	// Fusion parameters
	Fusion struct {
		// WindowSize is the side of the square local-variance window, odd
		WindowSize int `yaml:"windowSize"`

		// VarianceMode is "reference" (bit-compatible, may go slightly
		// negative) or "twopass" (never negative)
		VarianceMode string `yaml:"varianceMode"`

		// ExtremaCapacity caps each extrema set; 0 grows with the image
		ExtremaCapacity int `yaml:"extremaCapacity"`

		// Stretch rescales the fused image to the full 0..255 range
		Stretch bool `yaml:"stretch"`
	} `yaml:"fusion"`

	// Input parameters
	Input struct {
		// MaxWidth and MaxHeight bound accepted source images; 0 disables
		MaxWidth  int `yaml:"maxWidth"`
		MaxHeight int `yaml:"maxHeight"`

		// FitOversized shrinks larger sources instead of rejecting them
		FitOversized bool `yaml:"fitOversized"`
	} `yaml:"input"`

	// Output parameters
	Output struct {
		// SaveIntermediaryResults determines whether to save intermediary processing results
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// IntermediaryDir is where intermediary results are written
		IntermediaryDir string `yaml:"intermediaryDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// PreviewFormat is the extension used for previews when none is given
		PreviewFormat string `yaml:"previewFormat"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumWorkers = runtime.NumCPU() // Use all available cores by default

	// Set default fusion parameters
	cfg.Fusion.WindowSize = variance.DefaultWindow
	cfg.Fusion.VarianceMode = variance.ModeReference.String()
	cfg.Fusion.ExtremaCapacity = 0
	cfg.Fusion.Stretch = true

	// Set default input parameters
	cfg.Input.MaxWidth = models.DefaultMaxWidth
	cfg.Input.MaxHeight = models.DefaultMaxHeight
	cfg.Input.FitOversized = false

	// Set default output parameters
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.IntermediaryDir = "intermediary_results"
	cfg.Output.Verbose = true
	cfg.Output.PreviewFormat = "png"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks value ranges that YAML parsing cannot
func (c *Config) Validate() error {
	if c.Processing.NumWorkers < 0 {
		return fmt.Errorf("%w: numWorkers must not be negative, got %d", ErrInvalidConfig, c.Processing.NumWorkers)
	}
	if c.Fusion.WindowSize < 1 || c.Fusion.WindowSize%2 == 0 {
		return fmt.Errorf("%w: windowSize must be odd and positive, got %d", ErrInvalidConfig, c.Fusion.WindowSize)
	}
	if _, err := variance.ParseMode(c.Fusion.VarianceMode); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Fusion.ExtremaCapacity < 0 {
		return fmt.Errorf("%w: extremaCapacity must not be negative, got %d", ErrInvalidConfig, c.Fusion.ExtremaCapacity)
	}
	if c.Input.MaxWidth < 0 || c.Input.MaxHeight < 0 {
		return fmt.Errorf("%w: maximum dimensions must not be negative", ErrInvalidConfig)
	}
	return nil
}

// FusionParams converts the configuration into pipeline parameters
func (c *Config) FusionParams() (*fusion.Params, error) {
	mode, err := variance.ParseMode(c.Fusion.VarianceMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &fusion.Params{
		WindowSize:              c.Fusion.WindowSize,
		VarianceMode:            mode,
		ExtremaCapacity:         c.Fusion.ExtremaCapacity,
		NumWorkers:              c.Processing.NumWorkers,
		Stretch:                 c.Fusion.Stretch,
		MaxWidth:                c.Input.MaxWidth,
		MaxHeight:               c.Input.MaxHeight,
		SaveIntermediaryResults: c.Output.SaveIntermediaryResults,
		IntermediaryDir:         c.Output.IntermediaryDir,
		Verbose:                 c.Output.Verbose,
	}, nil
}

// LoadOptions converts the input section into image loading options
func (c *Config) LoadOptions() imageio.LoadOptions {
	return imageio.LoadOptions{
		MaxWidth:     c.Input.MaxWidth,
		MaxHeight:    c.Input.MaxHeight,
		FitOversized: c.Input.FitOversized,
	}
}
