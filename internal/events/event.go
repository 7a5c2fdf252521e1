// Package events models the raw interaction records exported by the study
// instrument and classifies them into the categories the session pipeline
// works with.
package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Details carries the type-specific payload of an event.
type Details struct {
	Type               string `json:"type"`
	Name               string `json:"name,omitempty"`
	NewURL             string `json:"newURL,omitempty"`
	PreviousURL        string `json:"previousURL,omitempty"`
	HasFocus           *bool  `json:"hasFocus,omitempty"`
	ViewportResolution string `json:"viewportResolution,omitempty"`
	StringRepr         string `json:"stringRepr,omitempty"`
}

// MetadataField is one positional entry of an event's metadata list.
// Value is kept raw because the instrument emits both numbers and strings.
type MetadataField struct {
	Name  string          `json:"name,omitempty"`
	Value json.RawMessage `json:"value"`
}

// String returns the value as text. JSON strings are unquoted, anything else
// is returned verbatim.
func (m MetadataField) String() string {
	var s string
	if err := json.Unmarshal(m.Value, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(m.Value))
}

// Int parses the value as an integer. Numeric strings and integral floats
// ("3", 3, 3.0) are accepted.
func (m MetadataField) Int() (int, error) {
	text := m.String()
	if n, err := strconv.Atoi(text); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("metadata value %q is not numeric", text)
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("metadata value %q is not an integer", text)
	}
	return int(f), nil
}

// Event is one interaction record. Events are never modified after loading;
// sessions and derived structures hold pointers into the loaded slice.
type Event struct {
	EventType     string
	Details       Details
	ParticipantID string
	Timestamp     time.Time
	Metadata      []MetadataField

	// Index is the position of the record in the input file.
	Index int
}

// Type returns the fine-grained subtype, falling back to the coarse event
// type when the instrument left the subtype empty.
func (e *Event) Type() string {
	if e.Details.Type != "" {
		return e.Details.Type
	}
	return e.EventType
}

// HasParticipant reports whether the event carries a non-null participant id.
func (e *Event) HasParticipant() bool {
	return e.ParticipantID != ""
}

// Millis returns the event timestamp in Unix milliseconds.
func (e *Event) Millis() int64 {
	return e.Timestamp.UnixMilli()
}

// Rank returns the clicked result rank stored at metadata index 0.
func (e *Event) Rank() (int, bool) {
	if len(e.Metadata) == 0 {
		return 0, false
	}
	rank, err := e.Metadata[0].Int()
	if err != nil {
		return 0, false
	}
	return rank, true
}

// Resolution parses the viewport resolution of a resize event. Both the
// "WIDTHxHEIGHT" detail string and metadata entries [width, height] are
// understood.
func (e *Event) Resolution() (width, height int, ok bool) {
	if res := strings.TrimSpace(e.Details.ViewportResolution); res != "" {
		parts := strings.FieldsFunc(res, func(r rune) bool {
			return r == 'x' || r == 'X' || r == ',' || r == ' '
		})
		if len(parts) == 2 {
			w, errW := strconv.Atoi(parts[0])
			h, errH := strconv.Atoi(parts[1])
			if errW == nil && errH == nil {
				return w, h, true
			}
		}
	}
	if len(e.Metadata) >= 2 {
		w, errW := e.Metadata[0].Int()
		h, errH := e.Metadata[1].Int()
		if errW == nil && errH == nil {
			return w, h, true
		}
	}
	return 0, 0, false
}
