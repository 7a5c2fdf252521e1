package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for serpstudy
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serpstudy",
		Short: "Search behaviour metrics from user-study interaction logs",
		Long: `serpstudy turns the interaction log export of a search user study into
one row of search behaviour metrics per participant session.

It groups events by participant, reconstructs each session from its start
marker, derives queries and result page depths from navigation, counts
ranked result clicks and measures how long the search page kept focus.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewProcessCommand())
	cmd.AddCommand(NewSessionsCommand())
	cmd.AddCommand(NewResizesCommand())
	cmd.AddCommand(NewTimingCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
