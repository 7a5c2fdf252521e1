package telemetry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/serpstudy/internal/events"
)

func TestObserveIngest(t *testing.T) {
	r := New()

	r.ObserveIngest(map[events.Category]int{
		events.CategoryClick:      3,
		events.CategoryNavigation: 2,
	})
	r.ObserveIngest(map[events.Category]int{events.CategoryClick: 1})

	assert.Equal(t, 4.0, testutil.ToFloat64(r.EventsIngested.WithLabelValues("click")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.EventsIngested.WithLabelValues("navigation")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.EventsIngested.WithLabelValues("viewport-resize")))
}

func TestRecordersAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.SessionsBuilt.Add(3)

	assert.Equal(t, 3.0, testutil.ToFloat64(a.SessionsBuilt))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SessionsBuilt))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.SessionsBuilt.Add(2)
	r.ParticipantsExcluded.Inc()
	r.NavigationSkipped.WithLabelValues("unparseable").Inc()
	r.ObserveStage("load", 15*time.Millisecond)

	path := filepath.Join(t.TempDir(), "textfile", "serpstudy.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "serpstudy_sessions_reconstructed_total 2")
	assert.Contains(t, content, "serpstudy_participants_excluded_total 1")
	assert.Contains(t, content, `serpstudy_navigation_skipped_total{reason="unparseable"} 1`)
	assert.Contains(t, content, `serpstudy_stage_duration_seconds_count{stage="load"} 1`)
}
