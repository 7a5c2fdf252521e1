package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies default configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.DurationSource != "markers" {
		t.Errorf("DurationSource = %q, want markers", cfg.DurationSource)
	}
	if cfg.DwellFallback != 60 {
		t.Errorf("DwellFallback = %v, want 60", cfg.DwellFallback)
	}
	if cfg.LateTolerance != 5*time.Second {
		t.Errorf("LateTolerance = %v, want 5s", cfg.LateTolerance)
	}
	if cfg.Output.Format != "csv" {
		t.Errorf("Output.Format = %q, want csv", cfg.Output.Format)
	}
	if cfg.Store.Enabled {
		t.Error("Store should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestLoadConfigValidFile tests loading a valid YAML config file
func TestLoadConfigValidFile(t *testing.T) {
	path := writeConfig(t, `log_level: DEBUG
log_dir: /tmp/serp-logs
workers: 4
duration_source: timing
dwell_fallback: 0
late_tolerance: 10s
metrics_file: /tmp/serpstudy.prom
output:
  format: md
  path: out/metrics.md
store:
  enabled: true
  db_path: runs.db
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.LogDir != "/tmp/serp-logs" {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d", cfg.Workers)
	}
	if cfg.DurationSource != "timing" {
		t.Errorf("DurationSource = %q", cfg.DurationSource)
	}
	if cfg.DwellFallback != 0 {
		t.Errorf("explicit dwell_fallback 0 should be kept, got %v", cfg.DwellFallback)
	}
	if cfg.LateTolerance != 10*time.Second {
		t.Errorf("LateTolerance = %v", cfg.LateTolerance)
	}
	if cfg.Output.Format != "md" || cfg.Output.Path != "out/metrics.md" {
		t.Errorf("Output = %+v", cfg.Output)
	}
	if !cfg.Store.Enabled || cfg.Store.DBPath != "runs.db" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.MetricsFile != "/tmp/serpstudy.prom" {
		t.Errorf("MetricsFile = %q", cfg.MetricsFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

// TestLoadConfigPartial verifies unspecified keys keep their defaults
func TestLoadConfigPartial(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "workers: 2\n"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	defaults := DefaultConfig()
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d", cfg.Workers)
	}
	if cfg.LogLevel != defaults.LogLevel || cfg.DwellFallback != defaults.DwellFallback || cfg.Store != defaults.Store {
		t.Errorf("defaults not preserved: %+v", cfg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := map[string]string{
		"malformed yaml":    "log_level: [unclosed\n",
		"invalid tolerance": "late_tolerance: soon\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()
	level := "WARN"
	workers := 8
	format := "json"
	enabled := true

	cfg.MergeWithFlags(&level, nil, &workers, nil, &format, nil, &enabled, nil)

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d", cfg.Workers)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("Output.Format = %q", cfg.Output.Format)
	}
	if !cfg.Store.Enabled {
		t.Error("Store.Enabled should be overridden")
	}
	if cfg.DurationSource != "markers" || cfg.Output.Path != "" {
		t.Error("nil flags must not override config")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers"},
		{"bad duration source", func(c *Config) { c.DurationSource = "clock" }, "duration_source"},
		{"fallback above 60", func(c *Config) { c.DwellFallback = 61 }, "dwell_fallback"},
		{"negative tolerance", func(c *Config) { c.LateTolerance = -time.Second }, "late_tolerance"},
		{"bad format", func(c *Config) { c.Output.Format = "xlsx" }, "output.format"},
		{"store without path", func(c *Config) { c.Store.Enabled = true; c.Store.DBPath = "" }, "store.db_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("expected error containing %q, got %v", tt.errSub, err)
			}
		})
	}
}

func TestGetHomeAndResolvePaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeEnv, home)

	got, err := GetHome()
	if err != nil || got != home {
		t.Fatalf("GetHome() = %q, %v", got, err)
	}
	path, err := DefaultConfigPath()
	if err != nil || path != filepath.Join(home, "config.yaml") {
		t.Errorf("DefaultConfigPath() = %q, %v", path, err)
	}

	cfg := DefaultConfig()
	cfg.ResolvePaths(home)
	if cfg.LogDir != filepath.Join(home, "logs") {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if cfg.Store.DBPath != filepath.Join(home, "history.db") {
		t.Errorf("DBPath = %q", cfg.Store.DBPath)
	}

	cfg.Store.DBPath = ":memory:"
	cfg.ResolvePaths(home)
	if cfg.Store.DBPath != ":memory:" {
		t.Error(":memory: must not be rewritten")
	}
}

func TestLoadConfigFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log_level: error\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFromDir(dir)
	if err != nil {
		t.Fatalf("LoadConfigFromDir() error = %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want error", cfg.LogLevel)
	}
}
