package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/harrison/serpstudy/internal/focus"
	"github.com/harrison/serpstudy/internal/metrics"
	"github.com/harrison/serpstudy/internal/pipeline"
	"github.com/harrison/serpstudy/internal/session"
	"github.com/harrison/serpstudy/internal/timing"
)

// NewSessionsCommand creates the sessions command
func NewSessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions <log-file>",
		Short: "List the sessions reconstructed from a log export",
		Long: `List every reconstructed participant session with its event count,
bounds, queries, result clicks and time away from the search page.

Participants excluded for lacking a start marker are listed below the table.`,
		Args: cobra.ExactArgs(1),
		RunE: runSessions,
	}

	cmd.Flags().String("config", "", "Path to config file (default: $SERPSTUDY_HOME/config.yaml)")
	cmd.Flags().String("timing", "", "Timing file (.csv or JSON lines) supplying elapsed time per participant")
	cmd.Flags().String("duration-source", "", "Session duration source: markers or timing (default from config)")
	cmd.Flags().Int("workers", 0, "Sessions processed concurrently (0 = one per CPU)")

	return cmd
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.MergeWithFlags(nil, nil, intFlag(cmd, "workers"), stringFlag(cmd, "duration-source"), nil, nil, nil, nil)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	source, err := metrics.ParseDurationSource(cfg.DurationSource)
	if err != nil {
		return err
	}

	opts := metrics.Options{
		DurationSource:    source,
		FallbackDwellRate: cfg.DwellFallback,
	}
	timingPath, _ := cmd.Flags().GetString("timing")
	if timingPath != "" {
		table, err := timing.LoadFile(timingPath)
		if err != nil {
			return err
		}
		opts.Timing = table
	} else if source == metrics.DurationTiming {
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning: duration source is timing but no timing file was given, using markers")
	}

	p := pipeline.NewProcessor(nil)
	grouping, _, err := p.Prepare(args[0])
	if err != nil {
		return err
	}

	results, err := metrics.ProcessAll(cmd.Context(), grouping.Sessions, opts, cfg.Workers)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No sessions found")
	} else if err := renderSessions(out, results); err != nil {
		return err
	}
	printExcluded(out, grouping, colorEnabled(out))
	return nil
}

func renderSessions(w io.Writer, results []*metrics.Result) error {
	table := tablewriter.NewWriter(w)
	table.Header("Participant", "Events", "Start", "Stop", "Duration", "Queries", "Clicks", "Away")
	for _, r := range results {
		stop := r.Stop.Format(time.RFC3339)
		if r.StopInferred {
			stop += " *"
		}
		away := fmt.Sprintf("%s (%d)", focus.AwayTime(r.Intervals).Round(time.Millisecond), len(r.Intervals))
		if err := table.Append(
			r.Session.ParticipantID,
			strconv.Itoa(len(r.Session.Events)),
			r.Start.Format(time.RFC3339),
			stop,
			r.Duration.Round(time.Millisecond).String(),
			strconv.Itoa(r.Metrics.QueriesIssued),
			strconv.Itoa(r.Metrics.NoOfResultsClicked),
			away,
		); err != nil {
			return fmt.Errorf("render sessions: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render sessions: %w", err)
	}
	for _, r := range results {
		if r.StopInferred {
			fmt.Fprintln(w, "* stop marker missing, end inferred")
			break
		}
	}
	return nil
}

func printExcluded(w io.Writer, grouping *session.GroupResult, useColor bool) {
	if len(grouping.Unanchored) == 0 {
		return
	}
	line := fmt.Sprintf("Excluded (no start marker): %s", strings.Join(grouping.Unanchored, ", "))
	if useColor {
		line = color.New(color.FgYellow).Sprint(line)
	}
	fmt.Fprintln(w, line)
}
