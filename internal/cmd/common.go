package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/harrison/serpstudy/internal/config"
	"github.com/harrison/serpstudy/internal/logger"
)

// loadConfig reads --config when given, otherwise <home>/config.yaml, and
// resolves relative log and history paths against the home directory.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	home, err := config.GetHome()
	if err != nil {
		return nil, err
	}

	var cfg *config.Config
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(home)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg.ResolvePaths(home)
	return cfg, nil
}

// buildLogger returns a console logger on the command's stderr, plus a run
// log file when a log directory is configured. The returned func closes the
// file.
func buildLogger(cmd *cobra.Command, cfg *config.Config) (logger.Logger, func(), error) {
	console := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if cfg.LogDir == "" {
		return console, func() {}, nil
	}

	fileLogger, err := logger.NewFileLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create run log: %w", err)
	}
	console.LogDebug(fmt.Sprintf("run log: %s", fileLogger.Path()))
	return logger.NewMultiLogger(console, fileLogger), func() { fileLogger.Close() }, nil
}

// colorEnabled reports whether w is a terminal.
func colorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// stringFlag returns a pointer to the flag value when it was set explicitly.
func stringFlag(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func intFlag(cmd *cobra.Command, name string) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetInt(name)
	return &v
}

func boolFlag(cmd *cobra.Command, name string) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetBool(name)
	return &v
}
