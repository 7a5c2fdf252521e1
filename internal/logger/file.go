package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileLogger writes a structured JSON log of one run to
// <logDir>/run-YYYYMMDD-HHMMSS.log and points <logDir>/latest.log at it.
type FileLogger struct {
	logDir   string
	runFile  string
	file     *os.File
	zap      *zap.Logger
	logLevel string
}

// NewFileLogger opens a run log in logDir, creating the directory if needed.
func NewFileLogger(logDir, logLevel string) (*FileLogger, error) {
	return NewFileLoggerWithClock(logDir, logLevel, clock.New())
}

// NewFileLoggerWithClock is NewFileLogger with an explicit time source for the
// file name and record timestamps.
func NewFileLoggerWithClock(logDir, logLevel string, clk clock.Clock) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", clk.Now().Format("20060102-150405")))
	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(file), zapcore.DebugLevel)

	fl := &FileLogger{
		logDir:   logDir,
		runFile:  runFile,
		file:     file,
		zap:      zap.New(core, zap.WithClock(zapClock{clk})),
		logLevel: normalizeLogLevel(logLevel),
	}
	fl.zap.Info("run log opened", zap.String("path", runFile))
	return fl, nil
}

// zapClock adapts a clock.Clock to zapcore.Clock.
type zapClock struct {
	clock.Clock
}

func (c zapClock) NewTicker(d time.Duration) *time.Ticker {
	return time.NewTicker(d)
}

// Path returns the run log path.
func (fl *FileLogger) Path() string {
	return fl.runFile
}

// LogTrace logs a trace-level message. zap has no trace level, so these are
// written at debug with trace=true.
func (fl *FileLogger) LogTrace(message string) {
	if shouldLog(fl.logLevel, "trace") {
		fl.zap.Debug(message, zap.Bool("trace", true))
	}
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	if shouldLog(fl.logLevel, "debug") {
		fl.zap.Debug(message)
	}
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	if shouldLog(fl.logLevel, "info") {
		fl.zap.Info(message)
	}
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	if shouldLog(fl.logLevel, "warn") {
		fl.zap.Warn(message)
	}
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	if shouldLog(fl.logLevel, "error") {
		fl.zap.Error(message)
	}
}

// LogSummary writes the run summary as one structured record.
func (fl *FileLogger) LogSummary(s RunSummary) {
	if !shouldLog(fl.logLevel, "info") {
		return
	}
	fl.zap.Info("run summary",
		zap.String("run_id", s.RunID),
		zap.String("input", s.Input),
		zap.String("output", s.Output),
		zap.Int("events", s.Events),
		zap.Int("sessions", s.Sessions),
		zap.Strings("excluded", s.Excluded),
		zap.Int("warnings", s.Warnings),
		zap.Int("late_submissions", s.LateCount),
		zap.Duration("duration", s.Duration),
	)
}

// Close flushes and closes the run log.
func (fl *FileLogger) Close() error {
	if err := fl.zap.Sync(); err != nil {
		fl.file.Close()
		return fmt.Errorf("failed to flush run log: %w", err)
	}
	if err := fl.file.Close(); err != nil {
		return fmt.Errorf("failed to close run log: %w", err)
	}
	return nil
}
