package export

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/harrison/serpstudy/internal/filelock"
	"github.com/harrison/serpstudy/internal/session"
)

// Resize is one viewport resize of a participant.
type Resize struct {
	ParticipantID string
	Width         int
	Height        int
}

// CollectResizes lists the resizes of every session in session order, up to
// its last stop marker. Resize events without a readable resolution are
// skipped and counted.
func CollectResizes(sessions []*session.Session) ([]Resize, int) {
	var out []Resize
	skipped := 0
	for _, s := range sessions {
		for _, e := range s.Bounded().Partition().Resizes {
			w, h, ok := e.Resolution()
			if !ok {
				skipped++
				continue
			}
			out = append(out, Resize{ParticipantID: s.ParticipantID, Width: w, Height: h})
		}
	}
	return out, skipped
}

// WriteResizes writes the "prolificId,width,height" table.
func WriteResizes(w io.Writer, resizes []Resize) error {
	if _, err := io.WriteString(w, "prolificId,width,height\n"); err != nil {
		return err
	}
	for _, r := range resizes {
		line := r.ParticipantID + "," + strconv.Itoa(r.Width) + "," + strconv.Itoa(r.Height) + "\n"
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}

// WriteResizesFile writes the resize table to path atomically.
func WriteResizesFile(ctx context.Context, resizes []Resize, path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	return filelock.LockAndWrite(ctx, path, func(w io.Writer) error {
		return WriteResizes(w, resizes)
	})
}
