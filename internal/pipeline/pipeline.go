// Package pipeline runs one end-to-end processing pass: ingest, grouping,
// per-session metrics, export and the optional history and telemetry sinks.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/harrison/serpstudy/internal/events"
	"github.com/harrison/serpstudy/internal/export"
	"github.com/harrison/serpstudy/internal/logger"
	"github.com/harrison/serpstudy/internal/metrics"
	"github.com/harrison/serpstudy/internal/session"
	"github.com/harrison/serpstudy/internal/store"
	"github.com/harrison/serpstudy/internal/telemetry"
	"github.com/harrison/serpstudy/internal/timing"
)

// Stage names used for duration telemetry.
const (
	StageLoad    = "load"
	StageGroup   = "group"
	StageTiming  = "timing"
	StageProcess = "process"
	StageExport  = "export"
	StageStore   = "store"
)

// Options describes one run.
type Options struct {
	InputPath  string
	TimingPath string

	DurationSource    metrics.DurationSource
	FallbackDwellRate float64
	LateTolerance     time.Duration
	Workers           int

	// Format is an export format name accepted by export.ParseFormat.
	Format string
	// OutputPath receives the table. When empty the table goes to Output.
	OutputPath string
	Output     io.Writer
	// ResizesPath additionally receives the viewport resize table when set.
	ResizesPath string

	// Store records the run when non-nil. The caller owns it.
	Store       *store.Store
	MetricsFile string

	// HandleSignals cancels the run on SIGINT/SIGTERM.
	HandleSignals bool
}

// Result summarises a completed run.
type Result struct {
	Events   int
	Grouping *session.GroupResult
	Sessions []*metrics.Result
	Rows     []metrics.SessionMetrics
	Late     []timing.Submission
	Warnings []string
	RunID    string
	Duration time.Duration
}

// Processor runs the pipeline.
type Processor struct {
	logger    logger.Logger
	telemetry *telemetry.Recorder
	clock     clock.Clock
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock overrides the clock used for stage timings.
func WithClock(c clock.Clock) Option {
	return func(p *Processor) {
		p.clock = c
	}
}

// WithTelemetry uses rec instead of a fresh recorder.
func WithTelemetry(rec *telemetry.Recorder) Option {
	return func(p *Processor) {
		p.telemetry = rec
	}
}

// NewProcessor creates a Processor. A nil logger discards all output.
func NewProcessor(log logger.Logger, opts ...Option) *Processor {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	p := &Processor{logger: log, clock: clock.New()}
	for _, opt := range opts {
		opt(p)
	}
	if p.telemetry == nil {
		p.telemetry = telemetry.New()
	}
	return p
}

// Telemetry returns the recorder the processor reports into.
func (p *Processor) Telemetry() *telemetry.Recorder {
	return p.telemetry
}

// Prepare loads the event export at path and groups it into sessions.
func (p *Processor) Prepare(path string) (*session.GroupResult, int, error) {
	started := p.clock.Now()
	evs, err := events.LoadFile(path)
	if err != nil {
		return nil, 0, err
	}
	p.telemetry.ObserveIngest(events.CountByCategory(evs))
	p.stage(StageLoad, started)
	p.logger.LogDebug(fmt.Sprintf("loaded %d events from %s", len(evs), path))

	started = p.clock.Now()
	grouping := session.Group(evs)
	p.stage(StageGroup, started)

	p.telemetry.SessionsBuilt.Add(float64(grouping.Len()))
	p.telemetry.EventsDiscarded.Add(float64(grouping.Discarded))
	p.telemetry.ParticipantsExcluded.Add(float64(len(grouping.Unanchored)))
	for _, id := range grouping.Unanchored {
		p.logger.LogWarn(fmt.Sprintf("participant %s has no session start marker, excluded", id))
	}
	if grouping.Discarded > 0 {
		p.logger.LogDebug(fmt.Sprintf("discarded %d events outside any session", grouping.Discarded))
	}
	return grouping, len(evs), nil
}

// Run executes the whole pipeline.
func (p *Processor) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.InputPath == "" {
		return nil, fmt.Errorf("input path cannot be empty")
	}
	format, err := export.ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	if opts.OutputPath == "" && opts.Output == nil {
		return nil, fmt.Errorf("no output destination")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if opts.HandleSignals {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		go func() {
			select {
			case <-sigChan:
				p.logger.LogWarn("received interrupt signal, stopping")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	runStart := p.clock.Now()
	res := &Result{}

	grouping, count, err := p.Prepare(opts.InputPath)
	if err != nil {
		return nil, err
	}
	res.Events = count
	res.Grouping = grouping

	metricOpts := metrics.Options{
		DurationSource:    opts.DurationSource,
		FallbackDwellRate: opts.FallbackDwellRate,
	}
	if opts.TimingPath != "" {
		started := p.clock.Now()
		table, err := timing.LoadFile(opts.TimingPath)
		if err != nil {
			return nil, err
		}
		metricOpts.Timing = table
		res.Late = table.Late(opts.LateTolerance)
		p.telemetry.LateSubmissions.Add(float64(len(res.Late)))
		for _, s := range res.Late {
			p.logger.LogWarn(timing.LateMessage(s, opts.LateTolerance))
		}
		p.stage(StageTiming, started)
	} else if opts.DurationSource == metrics.DurationTiming {
		p.logger.LogWarn("duration source is timing but no timing file was given, using markers")
	}

	started := p.clock.Now()
	results, err := metrics.ProcessAll(ctx, grouping.Sessions, metricOpts, opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("processing interrupted: %w", err)
	}
	p.stage(StageProcess, started)
	res.Sessions = results
	res.Rows = metrics.Rows(results)
	p.observeSessions(res)

	started = p.clock.Now()
	if err := p.export(ctx, opts, format, grouping, res.Rows); err != nil {
		return nil, err
	}
	p.stage(StageExport, started)

	if opts.Store != nil {
		started = p.clock.Now()
		run := &store.Run{
			InputPath:      opts.InputPath,
			TimingPath:     opts.TimingPath,
			DurationSource: string(opts.DurationSource),
			ExcludedCount:  len(grouping.Unanchored),
		}
		if err := opts.Store.RecordRun(ctx, run, res.Rows); err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
		res.RunID = run.ID
		p.stage(StageStore, started)
		p.logger.LogDebug(fmt.Sprintf("recorded run %s", run.ID))
	}

	if opts.MetricsFile != "" {
		if err := p.telemetry.WriteTextfile(opts.MetricsFile); err != nil {
			p.logger.LogWarn(err.Error())
		}
	}

	res.Duration = p.clock.Since(runStart)
	output := opts.OutputPath
	if output == "" {
		output = "stdout"
	}
	p.logger.LogSummary(logger.RunSummary{
		Input:     opts.InputPath,
		Output:    output,
		Events:    res.Events,
		Sessions:  grouping.Len(),
		Excluded:  grouping.Unanchored,
		Warnings:  len(res.Warnings),
		LateCount: len(res.Late),
		Duration:  res.Duration,
		RunID:     res.RunID,
	})
	return res, nil
}

func (p *Processor) observeSessions(res *Result) {
	for _, r := range res.Sessions {
		for _, o := range r.Navigation.Observations {
			if !o.Decision.Records() {
				p.telemetry.NavigationSkipped.WithLabelValues(o.Decision.String()).Inc()
			}
		}
		p.telemetry.ClicksUnranked.Add(float64(r.UnrankedClicks))
		if r.StopInferred {
			p.telemetry.StopMarkersMissing.Inc()
		}
		for _, w := range r.Warnings {
			p.logger.LogWarn(w)
			res.Warnings = append(res.Warnings, w)
		}
		if skipped := r.Navigation.Skipped(); skipped > 0 {
			p.logger.LogTrace(fmt.Sprintf("participant %s: %d navigation events skipped", r.Session.ParticipantID, skipped))
		}
		if r.UnrankedClicks > 0 {
			p.logger.LogDebug(fmt.Sprintf("participant %s: %d clicks without a rank", r.Session.ParticipantID, r.UnrankedClicks))
		}
	}
}

func (p *Processor) export(ctx context.Context, opts Options, format string, grouping *session.GroupResult, rows []metrics.SessionMetrics) error {
	if opts.OutputPath != "" {
		if err := export.ExportToFile(ctx, rows, opts.OutputPath, format); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.OutputPath, err)
		}
	} else {
		exporter, err := export.New(format)
		if err != nil {
			return err
		}
		if err := exporter.Export(opts.Output, rows); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
	}

	if opts.ResizesPath != "" {
		resizes, skipped := export.CollectResizes(grouping.Sessions)
		if skipped > 0 {
			p.logger.LogWarn(fmt.Sprintf("%d resize events without a readable resolution skipped", skipped))
		}
		if err := export.WriteResizesFile(ctx, resizes, opts.ResizesPath); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.ResizesPath, err)
		}
	}
	return nil
}

func (p *Processor) stage(name string, started time.Time) {
	d := p.clock.Since(started)
	p.telemetry.ObserveStage(name, d)
	p.logger.LogTrace(fmt.Sprintf("stage %s took %s", name, d))
}
