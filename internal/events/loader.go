package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ErrInvalidTimestamp is returned when an event timestamp cannot be parsed.
// It is fatal for a run.
var ErrInvalidTimestamp = errors.New("invalid event timestamp")

// maxLineSize bounds a single NDJSON record.
const maxLineSize = 10 * 1024 * 1024

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// rawEvent is the wire shape of one exported record.
type rawEvent struct {
	EventType               string          `json:"eventType"`
	EventDetails            Details         `json:"eventDetails"`
	ApplicationSpecificData struct {
		ProlificID *string `json:"prolificID"`
	} `json:"applicationSpecificData"`
	Timestamps struct {
		EventTimestamp string `json:"eventTimestamp"`
	} `json:"timestamps"`
	Metadata []MetadataField `json:"metadata"`
}

// ParseTimestamp parses an ISO-8601 event timestamp. Timestamps without a
// zone are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

func (r *rawEvent) toEvent(index int) (*Event, error) {
	ts, err := ParseTimestamp(r.Timestamps.EventTimestamp)
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", index, err)
	}
	var participant string
	if r.ApplicationSpecificData.ProlificID != nil {
		participant = strings.TrimSpace(*r.ApplicationSpecificData.ProlificID)
	}
	return &Event{
		EventType:     r.EventType,
		Details:       r.EventDetails,
		ParticipantID: participant,
		Timestamp:     ts,
		Metadata:      r.Metadata,
		Index:         index,
	}, nil
}

// LoadFile reads every event from path. The format (JSON array or one object
// per line) is detected from the first non-blank byte.
func LoadFile(path string) ([]*Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	evs, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return evs, nil
}

// Load reads every event from r.
func Load(r io.Reader) ([]*Event, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if first == '[' {
		return loadArray(br)
	}
	return loadLines(br)
}

// utf8BOM is skipped when it prefixes the input.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	if prefix, _ := br.Peek(len(utf8BOM)); bytes.Equal(prefix, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return 0, err
		}
	}
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}

func loadArray(r io.Reader) ([]*Event, error) {
	var raws []rawEvent
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return nil, fmt.Errorf("failed to decode event array: %w", err)
	}
	evs := make([]*Event, 0, len(raws))
	for i := range raws {
		e, err := raws[i].toEvent(i)
		if err != nil {
			return nil, err
		}
		evs = append(evs, e)
	}
	return evs, nil
}

func loadLines(r io.Reader) ([]*Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var evs []*Event
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var raw rawEvent
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, fmt.Errorf("line %d: failed to decode event: %w", lineNum, err)
		}
		e, err := raw.toEvent(len(evs))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		evs = append(evs, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan input: %w", err)
	}
	return evs, nil
}
