// Package session reconstructs per-participant sessions from an export-wide
// event stream.
package session

import (
	"time"

	"github.com/harrison/serpstudy/internal/events"
)

// Session is the ordered event sequence of one participant, beginning at the
// participant's first start marker. Events are shared with the loader and
// must not be modified.
type Session struct {
	ParticipantID string
	Events        []*events.Event
}

// Partition holds a session's events split by category, each in arrival order.
type Partition struct {
	Starts      []*events.Event
	Stops       []*events.Event
	Navigations []*events.Event
	Clicks      []*events.Event
	Focus       []*events.Event
	Resizes     []*events.Event
	Ignored     []*events.Event
}

// Partition splits the session by event category.
func (s *Session) Partition() Partition {
	var p Partition
	for _, e := range s.Events {
		switch events.Classify(e) {
		case events.CategorySessionStart:
			p.Starts = append(p.Starts, e)
		case events.CategorySessionStop:
			p.Stops = append(p.Stops, e)
		case events.CategoryNavigation:
			p.Navigations = append(p.Navigations, e)
		case events.CategoryClick:
			p.Clicks = append(p.Clicks, e)
		case events.CategoryFocusChange:
			p.Focus = append(p.Focus, e)
		case events.CategoryViewportResize:
			p.Resizes = append(p.Resizes, e)
		default:
			p.Ignored = append(p.Ignored, e)
		}
	}
	return p
}

// StartTime is the timestamp of the session anchor.
func (s *Session) StartTime() time.Time {
	if len(s.Events) == 0 {
		return time.Time{}
	}
	return s.Events[0].Timestamp
}

// StopTime returns the timestamp of the last stop marker.
func (s *Session) StopTime() (time.Time, bool) {
	for i := len(s.Events) - 1; i >= 0; i-- {
		if events.Classify(s.Events[i]) == events.CategorySessionStop {
			return s.Events[i].Timestamp, true
		}
	}
	return time.Time{}, false
}

// Bounded returns the session cut at its last stop marker. Events after that
// marker are outside the session. A session without a stop marker is
// returned unchanged.
func (s *Session) Bounded() *Session {
	for i := len(s.Events) - 1; i >= 0; i-- {
		if events.Classify(s.Events[i]) == events.CategorySessionStop {
			if i == len(s.Events)-1 {
				return s
			}
			return &Session{ParticipantID: s.ParticipantID, Events: s.Events[:i+1:i+1]}
		}
	}
	return s
}

// LastEventTime is the timestamp of the final event in the session.
func (s *Session) LastEventTime() time.Time {
	if len(s.Events) == 0 {
		return time.Time{}
	}
	return s.Events[len(s.Events)-1].Timestamp
}
