// Package logger provides the run loggers used by serpstudy.
//
// ConsoleLogger writes human-readable progress lines, FileLogger keeps a
// structured per-run log on disk, and MultiLogger fans out to several
// loggers. All implementations are safe for concurrent use.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fatih/color"
)

// Logger is the logging surface used across the pipeline.
type Logger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogSummary(summary RunSummary)
}

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// RunSummary describes the outcome of one processing run.
type RunSummary struct {
	Input     string
	Output    string
	Events    int
	Sessions  int
	Excluded  []string
	Warnings  int
	LateCount int
	Duration  time.Duration
	RunID     string
}

// ConsoleLogger writes "[HH:MM:SS] [LEVEL] message" lines with level
// filtering. Color is used when writing to a terminal.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
	clock       clock.Clock
}

// NewConsoleLogger creates a ConsoleLogger writing to writer. A nil writer
// discards everything. Unknown levels fall back to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return NewConsoleLoggerWithClock(writer, logLevel, clock.New())
}

// NewConsoleLoggerWithClock is NewConsoleLogger with an explicit time source.
func NewConsoleLoggerWithClock(writer io.Writer, logLevel string, clk clock.Clock) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
		clock:       clk,
	}
}

// isTerminal reports whether w is stdout or stderr and color is enabled.
// fatih/color already disables itself for non-TTYs and NO_COLOR.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout || w == os.Stderr {
		return !color.NoColor
	}
	return false
}

// normalizeLogLevel lowercases level and defaults unknown values to "info".
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	default:
		return "info"
	}
}

// ValidLevel reports whether level is a recognised log level.
func ValidLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "error":
		return true
	}
	return false
}

func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func shouldLog(configured, message string) bool {
	return logLevelToInt(message) >= logLevelToInt(configured)
}

// LogTrace logs a trace-level message.
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !shouldLog(cl.logLevel, strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := cl.timestamp()
	var formatted string
	if cl.colorOutput {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, colorLevel(level), message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}
	cl.writer.Write([]byte(formatted))
}

func colorLevel(level string) string {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		return color.New(color.FgCyan).Sprint(level)
	case "INFO":
		return color.New(color.FgBlue).Sprint(level)
	case "WARN":
		return color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		return color.New(color.FgRed).Sprint(level)
	default:
		return level
	}
}

// LogSummary prints the run summary at INFO level.
func (cl *ConsoleLogger) LogSummary(summary RunSummary) {
	if cl.writer == nil || !shouldLog(cl.logLevel, "info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := cl.timestamp()
	var sb strings.Builder
	for _, line := range summaryLines(summary, cl.colorOutput) {
		sb.WriteString(fmt.Sprintf("[%s] %s\n", ts, line))
	}
	cl.writer.Write([]byte(sb.String()))
}

func (cl *ConsoleLogger) timestamp() string {
	return cl.clock.Now().Format("15:04:05")
}

// formatDuration renders d as "5s", "1m30s" or "2h15m".
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		minutes := (d % time.Hour) / time.Minute
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case d >= time.Minute:
		minutes := d / time.Minute
		seconds := (d % time.Minute) / time.Second
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d >= time.Second:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogTrace(message string)       {}
func (n *NoOpLogger) LogDebug(message string)       {}
func (n *NoOpLogger) LogInfo(message string)        {}
func (n *NoOpLogger) LogWarn(message string)        {}
func (n *NoOpLogger) LogError(message string)       {}
func (n *NoOpLogger) LogSummary(summary RunSummary) {}
