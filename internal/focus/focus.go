// Package focus reconstructs away-from-page intervals from viewport focus
// changes and derives dwell time on the results page.
package focus

import (
	"errors"
	"time"

	"github.com/harrison/serpstudy/internal/events"
)

// ErrMissingBounds is returned when a session lacks a start or stop bound.
var ErrMissingBounds = errors.New("session has no start or stop bound")

// DefaultFallbackRate is the dwell rate reported for sessions without any
// away interval. It is a fixed approximation: a session that never lost focus
// and one that recorded no focus data both report it.
const DefaultFallbackRate = 60.0

// Interval is an away-from-page period [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns the interval length.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

type state int

const (
	focused state = iota
	unfocused
)

// machine walks focus transitions between two sentinel bounds.
type machine struct {
	state     state
	last      time.Time
	stop      time.Time
	intervals []Interval
}

func (m *machine) begin(start time.Time) {
	m.state = focused
	m.last = start
}

func (m *machine) transition(at time.Time, hasFocus bool) {
	if at.After(m.stop) {
		at = m.stop
	}
	if !hasFocus {
		m.close(m.last, at)
	}
	m.last = at
	if hasFocus {
		m.state = focused
	} else {
		m.state = unfocused
	}
}

func (m *machine) end() {
	if m.state == unfocused {
		m.close(m.last, m.stop)
	}
}

func (m *machine) close(from, to time.Time) {
	if !to.After(from) {
		return
	}
	m.intervals = append(m.intervals, Interval{Start: from, End: to})
}

// Reconstruct returns the away intervals of a session bounded by start and
// stop. Focus events are expected in arrival order; events without a focus
// flag are ignored. A focus loss closes the interval since the previous
// boundary, and a session ending unfocused closes a final interval at stop.
func Reconstruct(focusEvents []*events.Event, start, stop time.Time) ([]Interval, error) {
	if start.IsZero() || stop.IsZero() || stop.Before(start) {
		return nil, ErrMissingBounds
	}

	m := &machine{stop: stop}
	m.begin(start)
	for _, e := range focusEvents {
		if e == nil || e.Details.HasFocus == nil {
			continue
		}
		at := e.Timestamp
		if at.Before(m.last) {
			at = m.last
		}
		m.transition(at, *e.Details.HasFocus)
	}
	m.end()

	return m.intervals, nil
}

// AwayTime sums the interval durations.
func AwayTime(intervals []Interval) time.Duration {
	var total time.Duration
	for _, iv := range intervals {
		total += iv.Duration()
	}
	return total
}

// DwellPerMinute returns seconds of retained focus per minute of session.
// Sessions without intervals report fallback; zero-length sessions report 0.
func DwellPerMinute(intervals []Interval, duration time.Duration, fallback float64) float64 {
	if len(intervals) == 0 {
		return fallback
	}
	durationMs := float64(duration.Milliseconds())
	if durationMs <= 0 {
		return 0
	}
	awayMs := float64(AwayTime(intervals).Milliseconds())
	return ((durationMs - awayMs) / 1000) / (durationMs / 60000)
}
