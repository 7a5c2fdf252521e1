// Package eventtest builds in-memory events for tests.
package eventtest

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/harrison/serpstudy/internal/events"
)

// Base is the instant all millisecond offsets are relative to.
var Base = time.Date(2021, 5, 10, 9, 0, 0, 0, time.UTC)

// At returns Base shifted by ms milliseconds.
func At(ms int64) time.Time {
	return Base.Add(time.Duration(ms) * time.Millisecond)
}

// Option customises an event built by New.
type Option func(*events.Event)

// New returns an event of the given subtype at offset ms for participant.
func New(participant, typ string, ms int64, opts ...Option) *events.Event {
	e := &events.Event{
		EventType:     typ,
		Details:       events.Details{Type: typ},
		ParticipantID: participant,
		Timestamp:     At(ms),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start returns a session start marker.
func Start(participant string, ms int64) *events.Event {
	return New(participant, "started", ms)
}

// Stop returns a session stop marker.
func Stop(participant string, ms int64) *events.Event {
	return New(participant, "stopped", ms)
}

// Focus returns a viewport focus change.
func Focus(participant string, ms int64, hasFocus bool) *events.Event {
	return New(participant, "viewportFocusChange", ms, func(e *events.Event) {
		e.Details.HasFocus = &hasFocus
	})
}

// Nav returns a URL change between two addresses.
func Nav(participant string, ms int64, previous, next string) *events.Event {
	return New(participant, "URLChange", ms, func(e *events.Event) {
		e.Details.PreviousURL = previous
		e.Details.NewURL = next
	})
}

// Click returns a result click carrying rank at metadata index 0.
func Click(participant string, ms int64, rank int) *events.Event {
	return New(participant, "click", ms, WithMetadata(strconv.Itoa(rank)))
}

// Resize returns a viewport resize with the given resolution.
func Resize(participant string, ms int64, resolution string) *events.Event {
	return New(participant, "viewportResize", ms, func(e *events.Event) {
		e.Details.ViewportResolution = resolution
	})
}

// WithMetadata appends JSON-encoded values to the metadata list. Values that
// are valid JSON numbers are stored as numbers, the rest as strings.
func WithMetadata(values ...string) Option {
	return func(e *events.Event) {
		for _, v := range values {
			raw := json.RawMessage(v)
			if !json.Valid(raw) {
				quoted, _ := json.Marshal(v)
				raw = quoted
			}
			e.Metadata = append(e.Metadata, events.MetadataField{Value: raw})
		}
	}
}
