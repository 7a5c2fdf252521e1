package session

import (
	"github.com/harrison/serpstudy/internal/events"
)

// GroupResult is the outcome of one grouping pass.
type GroupResult struct {
	// Sessions are ordered by the position of each participant's anchor.
	Sessions []*Session

	// Unanchored lists participants that appear in the export but never
	// emitted a start marker, in order of first appearance.
	Unanchored []string

	// Discarded counts events dropped because they preceded their
	// participant's anchor or had no participant id.
	Discarded int

	byID map[string]*Session
}

// Get returns the session of a participant.
func (r *GroupResult) Get(participantID string) (*Session, bool) {
	s, ok := r.byID[participantID]
	return s, ok
}

// Len returns the number of reconstructed sessions.
func (r *GroupResult) Len() int {
	return len(r.Sessions)
}

// Group scans evs in file order and builds one session per anchored
// participant. A participant's session starts at its first start marker;
// events for that participant seen earlier are discarded. Events without a
// participant id never belong to a session.
func Group(evs []*events.Event) *GroupResult {
	result := &GroupResult{byID: make(map[string]*Session)}
	seen := make(map[string]bool)
	var seenOrder []string

	for _, e := range evs {
		if e == nil {
			continue
		}
		if !e.HasParticipant() {
			result.Discarded++
			continue
		}
		id := e.ParticipantID
		if !seen[id] {
			seen[id] = true
			seenOrder = append(seenOrder, id)
		}

		s, ok := result.byID[id]
		if !ok {
			if events.Classify(e) != events.CategorySessionStart {
				result.Discarded++
				continue
			}
			s = &Session{ParticipantID: id}
			result.byID[id] = s
			result.Sessions = append(result.Sessions, s)
		}
		s.Events = append(s.Events, e)
	}

	for _, id := range seenOrder {
		if _, ok := result.byID[id]; !ok {
			result.Unanchored = append(result.Unanchored, id)
		}
	}

	return result
}
