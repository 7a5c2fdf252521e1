// Package timing loads per-participant elapsed time from the study's
// argument submission export.
package timing

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// DefaultLateTolerance is how far past the time constraint a submission may
// arrive before it is flagged.
const DefaultLateTolerance = 5 * time.Second

// Source maps a participant id to the time the participant used.
type Source interface {
	Elapsed(participantID string) (time.Duration, bool)
}

// Submission is one participant's timing record.
type Submission struct {
	ParticipantID  string
	TimeConstraint time.Duration
	TimeUsed       time.Duration

	// HasConstraint is false for sources that only carry elapsed time.
	HasConstraint bool
}

// Overrun is how far the submission went past its time constraint.
func (s Submission) Overrun() time.Duration {
	if !s.HasConstraint {
		return 0
	}
	return s.TimeUsed - s.TimeConstraint
}

// Table is an in-memory timing source.
type Table struct {
	submissions []Submission
	byID        map[string]int
}

// NewTable builds a table. A later submission for the same participant
// replaces the earlier one.
func NewTable(subs []Submission) *Table {
	t := &Table{byID: make(map[string]int, len(subs))}
	for _, s := range subs {
		if i, ok := t.byID[s.ParticipantID]; ok {
			t.submissions[i] = s
			continue
		}
		t.byID[s.ParticipantID] = len(t.submissions)
		t.submissions = append(t.submissions, s)
	}
	return t
}

// Elapsed implements Source.
func (t *Table) Elapsed(participantID string) (time.Duration, bool) {
	if t == nil {
		return 0, false
	}
	i, ok := t.byID[participantID]
	if !ok {
		return 0, false
	}
	return t.submissions[i].TimeUsed, true
}

// Len returns the number of participants in the table.
func (t *Table) Len() int {
	return len(t.submissions)
}

// Submissions returns the records in load order.
func (t *Table) Submissions() []Submission {
	return t.submissions
}

// Late returns submissions whose overrun exceeds tolerance.
func (t *Table) Late(tolerance time.Duration) []Submission {
	return lo.Filter(t.submissions, func(s Submission, _ int) bool {
		return s.HasConstraint && s.Overrun() > tolerance
	})
}

// LateMessage formats the advisory printed for a late submission.
func LateMessage(s Submission, tolerance time.Duration) string {
	return fmt.Sprintf("participant %s's submission was not made within %s after time was up (overrun %s)",
		s.ParticipantID, tolerance, s.Overrun())
}

// LoadFile reads a timing source. Files ending in .csv are read as
// "prolificId,timeUsed" tables, anything else as the argument submission
// export with one JSON object per line.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open timing file: %w", err)
	}
	defer f.Close()

	var subs []Submission
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		subs, err = readCSV(f)
	} else {
		subs, err = readSubmissions(f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return NewTable(subs), nil
}

type submissionRecord struct {
	ID             string   `json:"_id"`
	TimeConstraint *float64 `json:"timeConstraint"`
	TimeUsed       *float64 `json:"timeUsed"`
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func readSubmissions(r io.Reader) ([]Submission, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var subs []Submission
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec submissionRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if rec.ID == "" {
			return nil, fmt.Errorf("line %d: missing _id", lineNum)
		}
		if rec.TimeUsed == nil {
			return nil, fmt.Errorf("line %d: missing timeUsed for %s", lineNum, rec.ID)
		}
		sub := Submission{ParticipantID: rec.ID, TimeUsed: seconds(*rec.TimeUsed)}
		if rec.TimeConstraint != nil {
			sub.TimeConstraint = seconds(*rec.TimeConstraint)
			sub.HasConstraint = true
		}
		subs = append(subs, sub)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

func readCSV(r io.Reader) ([]Submission, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	idCol, usedCol, constraintCol := -1, -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "prolificId", "_id":
			idCol = i
		case "timeUsed":
			usedCol = i
		case "timeConstraint":
			constraintCol = i
		}
	}
	if idCol < 0 || usedCol < 0 {
		return nil, fmt.Errorf("header must contain prolificId and timeUsed columns, got %v", header)
	}

	var subs []Submission
	for row := 2; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		used, err := strconv.ParseFloat(strings.TrimSpace(record[usedCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid timeUsed %q", row, record[usedCol])
		}
		sub := Submission{ParticipantID: strings.TrimSpace(record[idCol]), TimeUsed: seconds(used)}
		if constraintCol >= 0 && strings.TrimSpace(record[constraintCol]) != "" {
			c, err := strconv.ParseFloat(strings.TrimSpace(record[constraintCol]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid timeConstraint %q", row, record[constraintCol])
			}
			sub.TimeConstraint = seconds(c)
			sub.HasConstraint = true
		}
		subs = append(subs, sub)
	}
	return subs, nil
}
