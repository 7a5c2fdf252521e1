// Package export renders session metrics tables.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/harrison/serpstudy/internal/filelock"
	"github.com/harrison/serpstudy/internal/metrics"
)

// Supported output formats.
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Columns is the header of the metrics table.
var Columns = []string{
	"prolificId",
	"queriesIssued",
	"queryRate",
	"avgQueryLengthWords",
	"avgQueryLengthChars",
	"serpsVisited",
	"noOfResultsClicked",
	"deepestRankVisitedResults",
	"avgRankVisitedResults",
	"dwellTimePerMinute",
	"timeUsed",
}

// ParseFormat normalises a format name. "md" is accepted for markdown.
func ParseFormat(format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "", FormatCSV:
		return FormatCSV, nil
	case "md", FormatMarkdown:
		return FormatMarkdown, nil
	case FormatJSON, FormatHTML:
		return format, nil
	default:
		return "", fmt.Errorf("invalid format '%s': must be one of: csv, json, markdown (or md), html", format)
	}
}

// Exporter writes a metrics table in one format.
type Exporter interface {
	Export(w io.Writer, rows []metrics.SessionMetrics) error
}

// New returns the exporter for a format.
func New(format string) (Exporter, error) {
	format, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatJSON:
		return &JSONExporter{Pretty: true}, nil
	case FormatMarkdown:
		return &MarkdownExporter{}, nil
	case FormatHTML:
		return &HTMLExporter{}, nil
	default:
		return &CSVExporter{}, nil
	}
}

// FormatNumber renders a metric as plain decimal text with the shortest
// representation that round-trips.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Values returns the row's fields in column order.
func Values(m metrics.SessionMetrics) []string {
	return []string{
		m.ProlificID,
		strconv.Itoa(m.QueriesIssued),
		FormatNumber(m.QueryRate),
		FormatNumber(m.AvgQueryLengthWords),
		FormatNumber(m.AvgQueryLengthChars),
		strconv.Itoa(m.SerpsVisited),
		strconv.Itoa(m.NoOfResultsClicked),
		strconv.Itoa(m.DeepestRankVisitedResults),
		FormatNumber(m.AvgRankVisitedResults),
		FormatNumber(m.DwellTimePerMinute),
		FormatNumber(m.TimeUsed),
	}
}

// CSVExporter writes the comma separated table. Ids are written verbatim.
type CSVExporter struct{}

// Export implements Exporter.
func (ce *CSVExporter) Export(w io.Writer, rows []metrics.SessionMetrics) error {
	if _, err := io.WriteString(w, strings.Join(Columns, ",")+"\n"); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := io.WriteString(w, strings.Join(Values(row), ",")+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// JSONExporter writes rows as a JSON array.
type JSONExporter struct {
	Pretty bool
}

// Export implements Exporter.
func (je *JSONExporter) Export(w io.Writer, rows []metrics.SessionMetrics) error {
	if rows == nil {
		rows = []metrics.SessionMetrics{}
	}
	enc := json.NewEncoder(w)
	if je.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return nil
}

// MarkdownExporter writes a report with a summary and the metrics table.
type MarkdownExporter struct {
	// GeneratedAt is printed in the header when set.
	GeneratedAt time.Time
}

// Export implements Exporter.
func (me *MarkdownExporter) Export(w io.Writer, rows []metrics.SessionMetrics) error {
	var sb strings.Builder

	sb.WriteString("# Session Metrics Report\n\n")
	if !me.GeneratedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("**Generated**: %s\n\n", me.GeneratedAt.Format("2006-01-02 15:04:05")))
	}

	s := Summarize(rows)
	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Sessions**: %d\n", s.Sessions))
	sb.WriteString(fmt.Sprintf("- **Queries Issued**: %d\n", s.Queries))
	sb.WriteString(fmt.Sprintf("- **Results Clicked**: %d\n", s.Clicks))
	sb.WriteString(fmt.Sprintf("- **Mean Query Rate**: %.2f/min\n", s.MeanQueryRate))
	sb.WriteString(fmt.Sprintf("- **Mean Dwell Time**: %.2f s/min\n", s.MeanDwell))
	sb.WriteString("\n")

	if len(rows) > 0 {
		sb.WriteString("## Sessions\n\n")
		sb.WriteString("| " + strings.Join(Columns, " | ") + " |\n")
		sb.WriteString("|" + strings.Repeat("---|", len(Columns)) + "\n")
		for _, row := range rows {
			sb.WriteString("| " + strings.Join(Values(row), " | ") + " |\n")
		}
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// HTMLExporter renders the markdown report to HTML.
type HTMLExporter struct {
	GeneratedAt time.Time
}

// Export implements Exporter.
func (he *HTMLExporter) Export(w io.Writer, rows []metrics.SessionMetrics) error {
	var src bytes.Buffer
	md := &MarkdownExporter{GeneratedAt: he.GeneratedAt}
	if err := md.Export(&src, rows); err != nil {
		return err
	}

	renderer := goldmark.New(goldmark.WithExtensions(extension.Table))
	if err := renderer.Convert(src.Bytes(), w); err != nil {
		return fmt.Errorf("failed to render HTML: %w", err)
	}
	return nil
}

// ExportToString renders rows in the given format.
func ExportToString(rows []metrics.SessionMetrics, format string) (string, error) {
	exporter, err := New(format)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := exporter.Export(&sb, rows); err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}
	return sb.String(), nil
}

// ExportToFile renders rows into path, replacing it atomically while holding
// the file's lock.
func ExportToFile(ctx context.Context, rows []metrics.SessionMetrics, path, format string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	exporter, err := New(format)
	if err != nil {
		return err
	}
	return filelock.LockAndWrite(ctx, path, func(w io.Writer) error {
		if err := exporter.Export(w, rows); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		return nil
	})
}
