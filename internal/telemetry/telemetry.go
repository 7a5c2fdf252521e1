// Package telemetry counts what a processing run saw and dropped, and writes
// the counters in the node exporter textfile format.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/harrison/serpstudy/internal/events"
)

// Recorder holds the counters of one run on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	EventsIngested       *prometheus.CounterVec
	EventsDiscarded      prometheus.Counter
	SessionsBuilt        prometheus.Counter
	ParticipantsExcluded prometheus.Counter
	NavigationSkipped    *prometheus.CounterVec
	ClicksUnranked       prometheus.Counter
	StopMarkersMissing   prometheus.Counter
	LateSubmissions      prometheus.Counter
	StageDuration        *prometheus.HistogramVec
}

// New registers a fresh set of counters.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Recorder{
		registry: reg,
		EventsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "serpstudy_events_ingested_total",
			Help: "Events read from the log export by category",
		}, []string{"category"}),
		EventsDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "serpstudy_events_discarded_total",
			Help: "Events without a participant or preceding the participant's session start",
		}),
		SessionsBuilt: factory.NewCounter(prometheus.CounterOpts{
			Name: "serpstudy_sessions_reconstructed_total",
			Help: "Sessions reconstructed from start markers",
		}),
		ParticipantsExcluded: factory.NewCounter(prometheus.CounterOpts{
			Name: "serpstudy_participants_excluded_total",
			Help: "Participants seen without a session start marker",
		}),
		NavigationSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "serpstudy_navigation_skipped_total",
			Help: "Navigation events that produced no result page observation",
		}, []string{"reason"}),
		ClicksUnranked: factory.NewCounter(prometheus.CounterOpts{
			Name: "serpstudy_clicks_unranked_total",
			Help: "Clicks without a readable result rank",
		}),
		StopMarkersMissing: factory.NewCounter(prometheus.CounterOpts{
			Name: "serpstudy_stop_markers_missing_total",
			Help: "Sessions whose end was inferred",
		}),
		LateSubmissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "serpstudy_late_submissions_total",
			Help: "Submissions made after the time constraint plus tolerance",
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "serpstudy_stage_duration_seconds",
			Help:    "Wall time per pipeline stage",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		}, []string{"stage"}),
	}

	for _, c := range events.Categories {
		r.EventsIngested.WithLabelValues(string(c))
	}
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveIngest records per-category event counts.
func (r *Recorder) ObserveIngest(counts map[events.Category]int) {
	for c, n := range counts {
		r.EventsIngested.WithLabelValues(string(c)).Add(float64(n))
	}
}

// ObserveStage records how long a stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// WriteTextfile writes all counters to path for the node exporter textfile
// collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
