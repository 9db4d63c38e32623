// Package config provides configuration loading and management for
// cosmx-align. It handles loading configuration from YAML files and provides
// default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/cosmx-align/internal/align"
	"github.com/ironsheep/cosmx-align/internal/imaging"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// MaxSize bounds the longer side of both working images, in pixels
		MaxSize int `yaml:"maxSize"`

		// Workers is the number of orientation trials run in parallel; 0 uses
		// every CPU
		Workers int `yaml:"workers"`
	} `yaml:"processing"`

	// Mask extraction thresholds and morphology radii
	Mask imaging.MaskOptions `yaml:"mask"`

	// Coverage classification ratios
	Coverage align.CoverageThresholds `yaml:"coverage"`

	// Orientation search parameters
	Search struct {
		align.SearchOptions `yaml:",inline"`

		// FallbackThreshold triggers the template-matching retry for
		// full-coverage slides scoring below it
		FallbackThreshold float64 `yaml:"fallbackThreshold"`

		// ReviewThreshold flags results scoring below it for manual review
		ReviewThreshold float64 `yaml:"reviewThreshold"`
	} `yaml:"search"`

	// Local translation refinement
	Refine align.RefineOptions `yaml:"refine"`

	// Output parameters
	Output struct {
		// Debug writes an overlay image next to every transform record
		Debug bool `yaml:"debug"`

		// MetricsFile, when set, receives Prometheus text-format metrics
		// after a batch run
		MetricsFile string `yaml:"metricsFile"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.MaxSize = imaging.DefaultMaxSize
	cfg.Processing.Workers = 0

	cfg.Mask = imaging.DefaultMaskOptions()
	cfg.Coverage = align.DefaultCoverageThresholds()

	opts := align.DefaultOptions()
	cfg.Search.SearchOptions = opts.Search
	cfg.Search.FallbackThreshold = opts.FallbackThreshold
	cfg.Search.ReviewThreshold = opts.ReviewThreshold

	cfg.Refine = align.DefaultRefineOptions()

	cfg.Output.Debug = false
	cfg.Output.MetricsFile = ""

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration. Keys
// missing from the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Processing.MaxSize <= 0 {
		return fmt.Errorf("processing.maxSize must be positive, got %d", c.Processing.MaxSize)
	}
	if c.Processing.Workers < 0 {
		return fmt.Errorf("processing.workers must not be negative, got %d", c.Processing.Workers)
	}
	if len(c.Search.Scales) == 0 {
		return fmt.Errorf("search.scales must not be empty")
	}
	for _, s := range c.Search.Scales {
		if s <= 0 {
			return fmt.Errorf("search.scales must be positive, got %v", s)
		}
	}
	if c.Search.MinTemplateSize < 1 {
		return fmt.Errorf("search.minTemplateSize must be at least 1, got %d", c.Search.MinTemplateSize)
	}
	for name, v := range map[string]float64{
		"search.fallbackThreshold": c.Search.FallbackThreshold,
		"search.reviewThreshold":   c.Search.ReviewThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, v)
		}
	}
	if c.Coverage.MinTissueRatio > c.Coverage.MaxTissueRatio {
		return fmt.Errorf("coverage.minTissueRatio (%v) exceeds coverage.maxTissueRatio (%v)",
			c.Coverage.MinTissueRatio, c.Coverage.MaxTissueRatio)
	}
	if c.Mask.CosMxDilateIterations < 0 {
		return fmt.Errorf("mask.cosmxDilateIterations must not be negative, got %d", c.Mask.CosMxDilateIterations)
	}
	if c.Refine.Radius < 0 || c.Refine.Step <= 0 {
		return fmt.Errorf("refine.radius must be >= 0 and refine.step > 0, got %d/%d", c.Refine.Radius, c.Refine.Step)
	}
	return nil
}

// AlignOptions converts the configuration into aligner options.
func (c *Config) AlignOptions() align.Options {
	search := c.Search.SearchOptions
	search.Workers = c.Processing.Workers
	return align.Options{
		Coverage:          c.Coverage,
		Search:            search,
		Refine:            c.Refine,
		FallbackThreshold: c.Search.FallbackThreshold,
		ReviewThreshold:   c.Search.ReviewThreshold,
	}
}
