// Package metrics derives the per-session search behaviour summary.
package metrics

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/harrison/serpstudy/internal/focus"
	"github.com/harrison/serpstudy/internal/navigation"
	"github.com/harrison/serpstudy/internal/session"
	"github.com/harrison/serpstudy/internal/timing"
)

// DurationSource selects where a session's length comes from.
type DurationSource string

const (
	// DurationMarkers measures from the first start to the last stop marker.
	DurationMarkers DurationSource = "markers"
	// DurationTiming uses the timing source when the participant has an
	// entry and falls back to the markers otherwise.
	DurationTiming DurationSource = "timing"
)

// ParseDurationSource validates a duration source name.
func ParseDurationSource(s string) (DurationSource, error) {
	switch DurationSource(strings.ToLower(strings.TrimSpace(s))) {
	case "", DurationMarkers:
		return DurationMarkers, nil
	case DurationTiming:
		return DurationTiming, nil
	default:
		return "", fmt.Errorf("invalid duration source %q: must be one of: markers, timing", s)
	}
}

// SessionMetrics is the output record of one session. Field order matches the
// exported table.
type SessionMetrics struct {
	ProlificID                string  `json:"prolificId"`
	QueriesIssued             int     `json:"queriesIssued"`
	QueryRate                 float64 `json:"queryRate"`
	AvgQueryLengthWords       float64 `json:"avgQueryLengthWords"`
	AvgQueryLengthChars       float64 `json:"avgQueryLengthChars"`
	SerpsVisited              int     `json:"serpsVisited"`
	NoOfResultsClicked        int     `json:"noOfResultsClicked"`
	DeepestRankVisitedResults int     `json:"deepestRankVisitedResults"`
	AvgRankVisitedResults     float64 `json:"avgRankVisitedResults"`
	DwellTimePerMinute        float64 `json:"dwellTimePerMinute"`
	TimeUsed                  float64 `json:"timeUsed"`
}

// Options configures metric computation.
type Options struct {
	DurationSource DurationSource
	Timing         timing.Source
	// FallbackDwellRate is reported when a session has no away interval.
	FallbackDwellRate float64
}

// DefaultOptions returns marker-based durations with the standard dwell
// fallback.
func DefaultOptions() Options {
	return Options{
		DurationSource:    DurationMarkers,
		FallbackDwellRate: focus.DefaultFallbackRate,
	}
}

// Result carries the metrics of one session together with the intermediate
// derivations they were computed from.
type Result struct {
	Metrics        SessionMetrics
	Session        *session.Session
	Navigation     *navigation.Result
	Ranks          []int
	UnrankedClicks int
	Intervals      []focus.Interval
	Start          time.Time
	Stop           time.Time
	Duration       time.Duration

	// StopInferred is set when the session had no stop marker.
	StopInferred bool
	Warnings     []string
}

// Compute derives the metrics of one session.
func Compute(s *session.Session, opts Options) *Result {
	s = s.Bounded()
	parts := s.Partition()
	res := &Result{Session: s, Start: s.StartTime()}

	var elapsed time.Duration
	var hasElapsed bool
	if opts.Timing != nil {
		elapsed, hasElapsed = opts.Timing.Elapsed(s.ParticipantID)
	}

	if stop, ok := s.StopTime(); ok {
		res.Stop = stop
	} else {
		res.StopInferred = true
		if hasElapsed {
			res.Stop = res.Start.Add(elapsed)
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"participant %s has no stop marker, using timing source (%s)", s.ParticipantID, elapsed))
		} else {
			res.Stop = s.LastEventTime()
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"participant %s has no stop marker, using last event", s.ParticipantID))
		}
	}
	markerDuration := res.Stop.Sub(res.Start)

	res.Duration = markerDuration
	if opts.DurationSource == DurationTiming && hasElapsed {
		res.Duration = elapsed
	}

	res.Navigation = navigation.Parse(parts.Navigations)

	for _, c := range parts.Clicks {
		rank, ok := c.Rank()
		if !ok {
			res.UnrankedClicks++
			continue
		}
		res.Ranks = append(res.Ranks, rank)
	}

	intervals, err := focus.Reconstruct(parts.Focus, res.Start, res.Stop)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("participant %s: %v", s.ParticipantID, err))
	}
	res.Intervals = intervals

	queries := res.Navigation.Queries
	minutes := res.Duration.Minutes()
	res.Metrics = SessionMetrics{
		ProlificID:                s.ParticipantID,
		QueriesIssued:             len(queries),
		QueryRate:                 ratio(float64(len(queries)), minutes),
		AvgQueryLengthWords:       meanBy(queries, func(q string) float64 { return float64(len(strings.Fields(q))) }),
		AvgQueryLengthChars:       meanBy(queries, func(q string) float64 { return float64(utf8.RuneCountInString(q)) }),
		SerpsVisited:              len(res.Navigation.Depths),
		NoOfResultsClicked:        len(res.Ranks),
		DeepestRankVisitedResults: maxOrZero(res.Ranks),
		AvgRankVisitedResults:     meanBy(res.Ranks, func(r int) float64 { return float64(r) }),
		DwellTimePerMinute:        focus.DwellPerMinute(intervals, markerDuration, opts.FallbackDwellRate),
		TimeUsed:                  res.Duration.Seconds(),
	}
	return res
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

func meanBy[T any](items []T, value func(T) float64) float64 {
	if len(items) == 0 {
		return 0
	}
	return lo.SumBy(items, value) / float64(len(items))
}

func maxOrZero(values []int) int {
	if len(values) == 0 {
		return 0
	}
	return lo.Max(values)
}
