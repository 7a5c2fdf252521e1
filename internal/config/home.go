package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the working directory used for config, logs and history.
const HomeEnv = "SERPSTUDY_HOME"

// homeDirName is created under the current directory when HomeEnv is unset.
const homeDirName = ".serpstudy"

// GetHome returns the serpstudy working directory.
// Priority order:
//  1. SERPSTUDY_HOME environment variable (if set)
//  2. .serpstudy in the current working directory
func GetHome() (string, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		return home, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return filepath.Join(cwd, homeDirName), nil
}

// DefaultConfigPath returns <home>/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config.yaml"), nil
}

// ResolvePaths makes relative log and history paths absolute under home.
// Paths already absolute are left alone.
func (c *Config) ResolvePaths(home string) {
	if c.LogDir != "" && !filepath.IsAbs(c.LogDir) {
		c.LogDir = filepath.Join(home, c.LogDir)
	}
	if c.Store.DBPath != "" && c.Store.DBPath != ":memory:" && !filepath.IsAbs(c.Store.DBPath) {
		c.Store.DBPath = filepath.Join(home, c.Store.DBPath)
	}
}

// LoadConfigFromDir loads config.yaml from dir, returning defaults when the
// file is absent.
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, "config.yaml"))
}
