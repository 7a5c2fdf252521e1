package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/serpstudy/internal/metrics"
	"github.com/harrison/serpstudy/internal/pipeline"
	"github.com/harrison/serpstudy/internal/store"
)

// NewProcessCommand creates the process command
func NewProcessCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <log-file>",
		Short: "Compute per-session search metrics from an interaction log export",
		Long: `Compute one row of search behaviour metrics per participant session.

The log export may be a JSON array or one JSON object per line. Participants
without a session start marker are excluded and reported. The metrics table
is written to stdout unless --output is given.

Configuration is loaded from $SERPSTUDY_HOME/config.yaml (default
.serpstudy/config.yaml) if present. CLI flags override configuration file
settings.

Examples:
  serpstudy process logs.json
  serpstudy process logs.json -o metrics.csv
  serpstudy process logs.json --timing args.json --duration-source timing
  serpstudy process logs.json -f md -o report.md --store
  serpstudy process logs.json --resizes resizes.csv --metrics-file run.prom`,
		Args: cobra.ExactArgs(1),
		RunE: runProcess,
	}

	cmd.Flags().String("config", "", "Path to config file (default: $SERPSTUDY_HOME/config.yaml)")
	cmd.Flags().StringP("output", "o", "", "Write the metrics table to this file instead of stdout")
	cmd.Flags().StringP("format", "f", "", "Output format: csv, json, markdown (md), html")
	cmd.Flags().String("timing", "", "Timing source file (.csv or one JSON submission per line)")
	cmd.Flags().String("duration-source", "", "Session duration source: markers or timing")
	cmd.Flags().Int("workers", 0, "Sessions processed concurrently (0 = one per CPU)")
	cmd.Flags().Bool("store", false, "Record the run in the history database")
	cmd.Flags().String("metrics-file", "", "Write run counters in Prometheus textfile format")
	cmd.Flags().String("resizes", "", "Also write the viewport resize table to this file")
	cmd.Flags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.Flags().String("log-dir", "", "Directory for run log files")

	return cmd
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	cfg.MergeWithFlags(
		stringFlag(cmd, "log-level"),
		stringFlag(cmd, "log-dir"),
		intFlag(cmd, "workers"),
		stringFlag(cmd, "duration-source"),
		stringFlag(cmd, "format"),
		stringFlag(cmd, "output"),
		boolFlag(cmd, "store"),
		stringFlag(cmd, "metrics-file"),
	)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	source, err := metrics.ParseDurationSource(cfg.DurationSource)
	if err != nil {
		return err
	}

	log, closeLog, err := buildLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	timingPath, _ := cmd.Flags().GetString("timing")
	resizesPath, _ := cmd.Flags().GetString("resizes")

	opts := pipeline.Options{
		InputPath:         args[0],
		TimingPath:        timingPath,
		DurationSource:    source,
		FallbackDwellRate: cfg.DwellFallback,
		LateTolerance:     cfg.LateTolerance,
		Workers:           cfg.Workers,
		Format:            cfg.Output.Format,
		OutputPath:        cfg.Output.Path,
		Output:            cmd.OutOrStdout(),
		ResizesPath:       resizesPath,
		MetricsFile:       cfg.MetricsFile,
		HandleSignals:     true,
	}

	if cfg.Store.Enabled {
		s, err := store.NewStore(cfg.Store.DBPath)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer s.Close()
		opts.Store = s
	}

	start := time.Now()
	res, err := pipeline.NewProcessor(log).Run(cmd.Context(), opts)
	if err != nil {
		log.LogError(err.Error())
		return err
	}

	log.LogDebug(fmt.Sprintf("processed %d sessions in %s", len(res.Rows), time.Since(start).Round(time.Millisecond)))
	return nil
}
