package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readRecords(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open run log: %v", err)
	}
	defer f.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("run log line is not JSON: %q", scanner.Text())
		}
		records = append(records, rec)
	}
	return records
}

func TestFileLogger_CreatesRunLogAndSymlink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	fl, err := NewFileLoggerWithClock(dir, "info", mockClock())
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	wantPath := filepath.Join(dir, "run-20210510-143005.log")
	if fl.Path() != wantPath {
		t.Errorf("expected %s, got %s", wantPath, fl.Path())
	}

	target, err := os.Readlink(filepath.Join(dir, "latest.log"))
	if err != nil {
		t.Fatalf("latest.log: %v", err)
	}
	if target != "run-20210510-143005.log" {
		t.Errorf("latest.log points to %s", target)
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestFileLogger_StructuredRecords(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLoggerWithClock(dir, "info", mockClock())
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	fl.LogDebug("filtered out")
	fl.LogWarn("participant p1 has no stop marker")
	fl.LogSummary(RunSummary{Input: "logs.json", Sessions: 3, Excluded: []string{"x"}, Duration: 2 * time.Second})
	if err := fl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	records := readRecords(t, fl.Path())
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d: %v", len(records), records)
	}
	if records[0]["msg"] != "run log opened" {
		t.Errorf("unexpected first record %v", records[0])
	}
	if records[1]["level"] != "warn" || records[1]["msg"] != "participant p1 has no stop marker" {
		t.Errorf("unexpected warn record %v", records[1])
	}
	if records[1]["ts"] != "2021-05-10T14:30:05.000Z" {
		t.Errorf("timestamp should come from the injected clock, got %v", records[1]["ts"])
	}
	summary := records[2]
	if summary["msg"] != "run summary" || summary["sessions"] != 3.0 || summary["input"] != "logs.json" {
		t.Errorf("unexpected summary record %v", summary)
	}
}

func TestFileLogger_ReplacesSymlink(t *testing.T) {
	dir := t.TempDir()
	clk := mockClock()

	first, err := NewFileLoggerWithClock(dir, "info", clk)
	if err != nil {
		t.Fatal(err)
	}
	first.Close()

	clk.Add(time.Minute)
	second, err := NewFileLoggerWithClock(dir, "info", clk)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	target, _ := os.Readlink(filepath.Join(dir, "latest.log"))
	if target != filepath.Base(second.Path()) {
		t.Errorf("latest.log should follow the newest run, got %s", target)
	}
}
