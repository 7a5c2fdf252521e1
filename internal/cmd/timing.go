package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/serpstudy/internal/timing"
)

// NewTimingCommand creates the timing command
func NewTimingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timing <file>",
		Short: "Validate a timing file and report late submissions",
		Long: `Read a timing source (a .csv table or one JSON submission per line) and
report every participant whose submission came after the time constraint
plus the tolerance.`,
		Args: cobra.ExactArgs(1),
		RunE: runTiming,
	}

	cmd.Flags().String("config", "", "Path to config file (default: $SERPSTUDY_HOME/config.yaml)")
	cmd.Flags().Duration("tolerance", 0, "Grace period after the time constraint (default from config, 5s)")

	return cmd
}

func runTiming(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tolerance := cfg.LateTolerance
	if cmd.Flags().Changed("tolerance") {
		tolerance, _ = cmd.Flags().GetDuration("tolerance")
	}
	if tolerance < 0 {
		return fmt.Errorf("tolerance must be >= 0, got %v", tolerance)
	}

	table, err := timing.LoadFile(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	late := table.Late(tolerance)
	fmt.Fprintf(out, "%d submissions, %d late (tolerance %s)\n", table.Len(), len(late), tolerance)
	for _, s := range late {
		fmt.Fprintf(out, "  - %s\n", timing.LateMessage(s, tolerance))
	}
	return nil
}
