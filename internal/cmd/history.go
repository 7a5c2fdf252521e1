package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/harrison/serpstudy/internal/config"
	"github.com/harrison/serpstudy/internal/export"
	"github.com/harrison/serpstudy/internal/store"
)

// NewHistoryCommand creates the 'serpstudy history' command group
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded processing runs",
		Long: `Inspect runs recorded with 'serpstudy process --store' (or store.enabled
in the config file). Runs live in $SERPSTUDY_HOME/history.db by default.`,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: $SERPSTUDY_HOME/config.yaml)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistoryList,
	}
	list.Flags().Int("limit", 20, "Maximum number of runs to show (0 = all)")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the metrics table of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow,
	}
	show.Flags().StringP("format", "f", "csv", "Output format: csv, json, markdown (md), html")

	cmd.AddCommand(list, show)
	return cmd
}

// openHistory opens the configured history database. ok is false when no
// database has been created yet.
func openHistory(cmd *cobra.Command) (s *store.Store, dbPath string, ok bool, err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, fmt.Errorf("invalid configuration: %w", err)
	}
	dbPath = cfg.Store.DBPath
	if dbPath == "" {
		dbPath = config.DefaultConfig().Store.DBPath
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, dbPath, false, nil
	}
	s, err = store.NewStore(dbPath)
	if err != nil {
		return nil, dbPath, false, fmt.Errorf("open history store: %w", err)
	}
	return s, dbPath, true, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	s, dbPath, ok, err := openHistory(cmd)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(out, "No runs recorded yet\nDatabase path: %s\n", dbPath)
		return nil
	}
	defer s.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := s.ListRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("Run", "Created", "Input", "Timing", "Duration Source", "Sessions", "Excluded")
	for _, r := range runs {
		if err := table.Append(
			r.ID,
			r.CreatedAt.Local().Format(time.DateTime),
			r.InputPath,
			r.TimingPath,
			r.DurationSource,
			strconv.Itoa(r.SessionCount),
			strconv.Itoa(r.ExcludedCount),
		); err != nil {
			return fmt.Errorf("render runs: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render runs: %w", err)
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	exporter, err := export.New(format)
	if err != nil {
		return err
	}

	s, dbPath, ok, err := openHistory(cmd)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no history database at %s", dbPath)
	}
	defer s.Close()

	rows, err := s.GetRunMetrics(cmd.Context(), args[0])
	if errors.Is(err, store.ErrRunNotFound) {
		return fmt.Errorf("run %s not found", args[0])
	}
	if err != nil {
		return fmt.Errorf("load run metrics: %w", err)
	}
	return exporter.Export(cmd.OutOrStdout(), rows)
}
