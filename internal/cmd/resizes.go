package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/serpstudy/internal/export"
	"github.com/harrison/serpstudy/internal/pipeline"
)

// NewResizesCommand creates the resizes command
func NewResizesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resizes <log-file>",
		Short: "Export viewport resizes as prolificId,width,height",
		Args:  cobra.ExactArgs(1),
		RunE:  runResizes,
	}

	cmd.Flags().StringP("output", "o", "", "Write the table to this file instead of stdout")

	return cmd
}

func runResizes(cmd *cobra.Command, args []string) error {
	grouping, _, err := pipeline.NewProcessor(nil).Prepare(args[0])
	if err != nil {
		return err
	}

	resizes, skipped := export.CollectResizes(grouping.Sessions)
	if skipped > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %d resize events without a readable resolution\n", skipped)
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		return export.WriteResizes(cmd.OutOrStdout(), resizes)
	}
	if err := export.WriteResizesFile(cmd.Context(), resizes, output); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d resizes to %s\n", len(resizes), output)
	return nil
}
