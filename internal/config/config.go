package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/serpstudy/internal/focus"
	"github.com/harrison/serpstudy/internal/logger"
	"github.com/harrison/serpstudy/internal/timing"
)

// StoreConfig represents run history configuration
type StoreConfig struct {
	// Enabled records every processing run in the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the history database, relative to the home directory
	DBPath string `yaml:"db_path"`
}

// OutputConfig represents metrics table output defaults
type OutputConfig struct {
	// Format is one of csv, json, markdown, html
	Format string `yaml:"format"`

	// Path is the default output file (empty writes to stdout)
	Path string `yaml:"path"`
}

// Config represents serpstudy configuration options
type Config struct {
	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs will be written
	LogDir string `yaml:"log_dir"`

	// Workers bounds concurrent session processing (0 = one per CPU)
	Workers int `yaml:"workers"`

	// DurationSource selects session length: markers or timing
	DurationSource string `yaml:"duration_source"`

	// DwellFallback is the dwell rate reported for sessions without away intervals
	DwellFallback float64 `yaml:"dwell_fallback"`

	// LateTolerance is the grace period after a time constraint before a
	// submission is reported as late
	LateTolerance time.Duration `yaml:"late_tolerance"`

	// MetricsFile receives run counters in textfile format when set
	MetricsFile string `yaml:"metrics_file"`

	Output OutputConfig `yaml:"output"`
	Store  StoreConfig  `yaml:"store"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		LogLevel:       "info",
		LogDir:         "logs",
		Workers:        0,
		DurationSource: "markers",
		DwellFallback:  focus.DefaultFallbackRate,
		LateTolerance:  timing.DefaultLateTolerance,
		Output: OutputConfig{
			Format: "csv",
		},
		Store: StoreConfig{
			Enabled: false,
			DBPath:  "history.db",
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// durations are strings in YAML
	type yamlConfig struct {
		LogLevel       string       `yaml:"log_level"`
		LogDir         string       `yaml:"log_dir"`
		Workers        int          `yaml:"workers"`
		DurationSource string       `yaml:"duration_source"`
		DwellFallback  *float64     `yaml:"dwell_fallback"`
		LateTolerance  string       `yaml:"late_tolerance"`
		MetricsFile    string       `yaml:"metrics_file"`
		Output         OutputConfig `yaml:"output"`
		Store          StoreConfig  `yaml:"store"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(yamlCfg.LogLevel)
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.Workers != 0 {
		cfg.Workers = yamlCfg.Workers
	}
	if yamlCfg.DurationSource != "" {
		cfg.DurationSource = strings.ToLower(yamlCfg.DurationSource)
	}
	if yamlCfg.DwellFallback != nil {
		cfg.DwellFallback = *yamlCfg.DwellFallback
	}
	if yamlCfg.LateTolerance != "" {
		tolerance, err := time.ParseDuration(yamlCfg.LateTolerance)
		if err != nil {
			return nil, fmt.Errorf("invalid late_tolerance format %q: %w", yamlCfg.LateTolerance, err)
		}
		cfg.LateTolerance = tolerance
	}
	if yamlCfg.MetricsFile != "" {
		cfg.MetricsFile = yamlCfg.MetricsFile
	}
	if yamlCfg.Output.Format != "" {
		cfg.Output.Format = strings.ToLower(yamlCfg.Output.Format)
	}
	if yamlCfg.Output.Path != "" {
		cfg.Output.Path = yamlCfg.Output.Path
	}

	// store keys are merged only when present so "enabled: false" and an
	// empty db_path can be set explicitly
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if section, ok := rawMap["store"].(map[string]interface{}); ok {
			if _, exists := section["enabled"]; exists {
				cfg.Store.Enabled = yamlCfg.Store.Enabled
			}
			if _, exists := section["db_path"]; exists {
				cfg.Store.DBPath = yamlCfg.Store.DBPath
			}
		}
	}

	return cfg, nil
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(logLevel *string, logDir *string, workers *int, durationSource *string, format *string, output *string, storeEnabled *bool, metricsFile *string) {
	if logLevel != nil {
		c.LogLevel = strings.ToLower(*logLevel)
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
	if workers != nil {
		c.Workers = *workers
	}
	if durationSource != nil {
		c.DurationSource = strings.ToLower(*durationSource)
	}
	if format != nil {
		c.Output.Format = strings.ToLower(*format)
	}
	if output != nil {
		c.Output.Path = *output
	}
	if storeEnabled != nil {
		c.Store.Enabled = *storeEnabled
	}
	if metricsFile != nil {
		c.MetricsFile = *metricsFile
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}

	if c.DurationSource != "markers" && c.DurationSource != "timing" {
		return fmt.Errorf("invalid duration_source %q, must be one of: markers, timing", c.DurationSource)
	}

	if c.DwellFallback < 0 || c.DwellFallback > 60 {
		return fmt.Errorf("dwell_fallback must be between 0 and 60, got %v", c.DwellFallback)
	}

	if c.LateTolerance < 0 {
		return fmt.Errorf("late_tolerance must be >= 0, got %v", c.LateTolerance)
	}

	switch c.Output.Format {
	case "csv", "json", "markdown", "md", "html":
	default:
		return fmt.Errorf("invalid output.format %q, must be one of: csv, json, markdown, html", c.Output.Format)
	}

	if c.Store.Enabled && c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path cannot be empty when the store is enabled")
	}

	return nil
}
