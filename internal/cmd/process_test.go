package cmd

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	studyLog   = "testdata/study.ndjson"
	timingFile = "testdata/timing.ndjson"
)

func TestProcessCommand_Stdout(t *testing.T) {
	home := t.TempDir()
	stdout, stderr, err := executeCommand(t, home, "process", studyLog)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "prolificId,queriesIssued,queryRate,avgQueryLengthWords,avgQueryLengthChars,serpsVisited,noOfResultsClicked,deepestRankVisitedResults,avgRankVisitedResults,dwellTimePerMinute,timeUsed", lines[0])
	assert.Equal(t, "p1,1,1,2,14,2,1,2,2,40,60", lines[1])

	assert.Contains(t, stderr, "participant ghost has no session start marker")
	assert.Contains(t, stderr, "=== Run Summary ===")

	logs, err := filepath.Glob(filepath.Join(home, "logs", "run-*.log"))
	require.NoError(t, err)
	assert.Len(t, logs, 1, "a run log should be written under the home directory")
}

func TestProcessCommand_FileWithTimingAndStore(t *testing.T) {
	home := t.TempDir()
	out := filepath.Join(t.TempDir(), "metrics.json")

	stdout, stderr, err := executeCommand(t, home,
		"process", studyLog,
		"-o", out, "-f", "json",
		"--timing", timingFile,
		"--duration-source", "timing",
		"--store",
		"--log-level", "warn",
	)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "participant p2's submission was not made within 5s")
	assert.NotContains(t, stderr, "Run Summary", "summary is suppressed above info")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"prolificId": "p2"`)

	listOut, _, err := executeCommand(t, home, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, listOut, studyLog)

	runID := regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`).FindString(listOut)
	require.NotEmpty(t, runID, "history list should show the run id")

	showOut, _, err := executeCommand(t, home, "history", "show", runID)
	require.NoError(t, err)
	assert.Contains(t, showOut, "p1,1,1,2,14,2,1,2,2,40,60")
}

func TestProcessCommand_ConfigFile(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("output:\n  format: md\n"), 0644))

	stdout, _, err := executeCommand(t, home, "process", studyLog)
	require.NoError(t, err)
	assert.Contains(t, stdout, "# Session Metrics Report")
}

func TestProcessCommand_Errors(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		errSub string
	}{
		{"no args", []string{"process"}, "accepts 1 arg"},
		{"bad format", []string{"process", studyLog, "-f", "xlsx"}, "output.format"},
		{"bad duration source", []string{"process", studyLog, "--duration-source", "clock"}, "duration_source"},
		{"missing file", []string{"process", "testdata/absent.json"}, "failed to open log file"},
		{"missing config", []string{"process", studyLog, "--config", "testdata/absent.yaml", "--log-level", "loud"}, "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, t.TempDir(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestHistoryCommand_Empty(t *testing.T) {
	home := t.TempDir()
	stdout, _, err := executeCommand(t, home, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No runs recorded yet")

	_, _, err = executeCommand(t, home, "history", "show", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no history database")
}

func TestHistoryCommand_UnknownRun(t *testing.T) {
	home := t.TempDir()
	_, _, err := executeCommand(t, home, "process", studyLog, "--store", "-o", filepath.Join(t.TempDir(), "m.csv"))
	require.NoError(t, err)

	_, _, err = executeCommand(t, home, "history", "show", "not-a-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not-a-run not found")
}
