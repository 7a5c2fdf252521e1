package events

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const arrayExport = `[
  {
    "eventType": "session",
    "eventDetails": {"type": "started"},
    "applicationSpecificData": {"prolificID": "p1"},
    "timestamps": {"eventTimestamp": "2021-05-10T09:00:01.250Z"},
    "metadata": []
  },
  {
    "eventType": "mouse",
    "eventDetails": {"type": "click", "name": "SEARCH_RESULT_CLICKED"},
    "applicationSpecificData": {"prolificID": "p1"},
    "timestamps": {"eventTimestamp": "2021-05-10T09:00:03.000Z"},
    "metadata": [{"value": 4}, {"value": "https://example.org/a"}]
  },
  {
    "eventType": "viewport",
    "eventDetails": {"type": "viewportFocusChange", "hasFocus": false},
    "applicationSpecificData": {"prolificID": null},
    "timestamps": {"eventTimestamp": "2021-05-10T09:00:04.000Z"}
  }
]`

func TestLoad_Array(t *testing.T) {
	evs, err := Load(strings.NewReader(arrayExport))
	require.NoError(t, err)
	require.Len(t, evs, 3)

	assert.Equal(t, "started", evs[0].Type())
	assert.Equal(t, "p1", evs[0].ParticipantID)
	assert.Equal(t, time.Date(2021, 5, 10, 9, 0, 1, 250_000_000, time.UTC), evs[0].Timestamp)
	assert.Equal(t, 0, evs[0].Index)

	rank, ok := evs[1].Rank()
	assert.True(t, ok)
	assert.Equal(t, 4, rank)
	assert.Equal(t, "https://example.org/a", evs[1].Metadata[1].String())
	assert.Equal(t, "SEARCH_RESULT_CLICKED", evs[1].Details.Name)

	assert.False(t, evs[2].HasParticipant())
	require.NotNil(t, evs[2].Details.HasFocus)
	assert.False(t, *evs[2].Details.HasFocus)
}

func TestLoad_Lines(t *testing.T) {
	input := `{"eventType":"session","eventDetails":{"type":"started"},"applicationSpecificData":{"prolificID":"p1"},"timestamps":{"eventTimestamp":"2021-05-10T09:00:00.000Z"}}

{"eventType":"navigation","eventDetails":{"type":"URLChange","newURL":"http://localhost/?#1-cats","previousURL":"http://localhost/"},"applicationSpecificData":{"prolificID":"p1"},"timestamps":{"eventTimestamp":"2021-05-10T09:00:02.5Z"}}
`
	evs, err := Load(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, evs, 2)

	assert.Equal(t, "URLChange", evs[1].Type())
	assert.Equal(t, "http://localhost/?#1-cats", evs[1].Details.NewURL)
	assert.Equal(t, int64(2500), evs[1].Millis()-evs[0].Millis())
	assert.Equal(t, 1, evs[1].Index)
}

func TestLoad_Empty(t *testing.T) {
	evs, err := Load(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestLoad_ByteOrderMark(t *testing.T) {
	evs, err := Load(strings.NewReader("\xEF\xBB\xBF" + arrayExport))
	require.NoError(t, err)
	assert.Len(t, evs, 3)

	_, err = Load(strings.NewReader("\xBB" + arrayExport))
	assert.Error(t, err, "a lone BOM byte is not skipped")
}

func TestLoad_InvalidTimestampIsFatal(t *testing.T) {
	input := `[{"eventDetails":{"type":"started"},"applicationSpecificData":{"prolificID":"p1"},"timestamps":{"eventTimestamp":"yesterday"}}]`

	_, err := Load(strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTimestamp))
	assert.Contains(t, err.Error(), "record 0")
}

func TestLoad_MalformedLine(t *testing.T) {
	input := "{\"eventDetails\":{\"type\":\"started\"},\"timestamps\":{\"eventTimestamp\":\"2021-05-10T09:00:00Z\"}}\n{not json}\n"

	_, err := Load(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs.json")
	require.NoError(t, os.WriteFile(path, []byte(arrayExport), 0644))

	evs, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, evs, 3)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2021-05-10T09:00:00.123Z", time.Date(2021, 5, 10, 9, 0, 0, 123_000_000, time.UTC)},
		{"2021-05-10T11:00:00.000+02:00", time.Date(2021, 5, 10, 9, 0, 0, 0, time.UTC)},
		{"2021-05-10T09:00:00.5", time.Date(2021, 5, 10, 9, 0, 0, 500_000_000, time.UTC)},
		{"2021-05-10 09:00:00", time.Date(2021, 5, 10, 9, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := ParseTimestamp("")
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}
