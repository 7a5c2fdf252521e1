package logger

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// colorScheme holds the colors used in summaries.
// Green: produced output, Yellow: advisories, Red: excluded data, Cyan: labels.
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	header  *color.Color
}

func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		header:  color.New(color.Bold),
	}
}

// maxListedExclusions caps how many excluded ids are printed inline.
const maxListedExclusions = 5

// summaryLines renders a RunSummary, one entry per output line.
func summaryLines(s RunSummary, useColor bool) []string {
	scheme := newColorScheme()
	paint := func(c *color.Color, text string) string {
		if !useColor {
			return text
		}
		return c.Sprint(text)
	}
	field := func(label string, value interface{}) string {
		return fmt.Sprintf("%s: %v", paint(scheme.label, label), value)
	}

	lines := []string{paint(scheme.header, "=== Run Summary ===")}
	if s.RunID != "" {
		lines = append(lines, field("Run", s.RunID))
	}
	lines = append(lines,
		field("Input", s.Input),
		field("Events", s.Events),
		paint(scheme.success, fmt.Sprintf("Sessions: %d", s.Sessions)),
	)

	if n := len(s.Excluded); n > 0 {
		listed := s.Excluded
		suffix := ""
		if n > maxListedExclusions {
			listed = listed[:maxListedExclusions]
			suffix = fmt.Sprintf(" (+%d more)", n-maxListedExclusions)
		}
		lines = append(lines, paint(scheme.fail,
			fmt.Sprintf("Excluded (no start marker): %d [%s]%s", n, strings.Join(listed, ", "), suffix)))
	} else {
		lines = append(lines, "Excluded (no start marker): 0")
	}

	if s.Warnings > 0 {
		lines = append(lines, paint(scheme.warn, fmt.Sprintf("Warnings: %d", s.Warnings)))
	}
	if s.LateCount > 0 {
		lines = append(lines, paint(scheme.warn, fmt.Sprintf("Late submissions: %d", s.LateCount)))
	}
	if s.Output != "" {
		lines = append(lines, field("Output", s.Output))
	}
	lines = append(lines, field("Duration", formatDuration(s.Duration)))
	return lines
}
