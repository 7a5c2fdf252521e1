// Package store keeps a history of processing runs and their metrics tables
// in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/serpstudy/internal/metrics"
)

//go:embed schema.sql
var schemaSQL string

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded processing run.
type Run struct {
	ID             string
	InputPath      string
	TimingPath     string
	DurationSource string
	SessionCount   int
	ExcludedCount  int
	CreatedAt      time.Time
}

// Store manages the run history database.
type Store struct {
	db     *sql.DB
	dbPath string
	clock  clock.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for run timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// NewStore opens (creating if needed) the database at dbPath. ":memory:"
// opens a private in-memory database.
func NewStore(dbPath string, opts ...Option) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// each pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, dbPath: dbPath, clock: clock.New()}
	for _, opt := range opts {
		opt(s)
	}

	if err := execWithRetry(db, schemaSQL, 5, 10*time.Millisecond); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// execWithRetry executes a statement, backing off on "database is locked".
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores a run and its rows in one transaction. The run's ID and
// CreatedAt are assigned here.
func (s *Store) RecordRun(ctx context.Context, run *Run, rows []metrics.SessionMetrics) error {
	run.ID = uuid.NewString()
	run.CreatedAt = s.clock.Now().UTC()
	run.SessionCount = len(rows)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, input_path, timing_path, duration_source, session_count, excluded_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.InputPath, run.TimingPath, run.DurationSource, run.SessionCount, run.ExcludedCount, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO session_metrics
		(run_id, position, prolific_id, queries_issued, query_rate, avg_query_length_words, avg_query_length_chars,
		 serps_visited, results_clicked, deepest_rank, avg_rank, dwell_time_per_minute, time_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare metrics insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range rows {
		_, err := stmt.ExecContext(ctx, run.ID, i, m.ProlificID, m.QueriesIssued, m.QueryRate,
			m.AvgQueryLengthWords, m.AvgQueryLengthChars, m.SerpsVisited, m.NoOfResultsClicked,
			m.DeepestRankVisitedResults, m.AvgRankVisitedResults, m.DwellTimePerMinute, m.TimeUsed)
		if err != nil {
			return fmt.Errorf("insert metrics for %s: %w", m.ProlificID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, input_path, timing_path, duration_source, session_count, excluded_count, created_at
		FROM runs ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, input_path, timing_path, duration_source, session_count, excluded_count, created_at
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// GetRunMetrics returns the rows of a run in their original order.
func (s *Store) GetRunMetrics(ctx context.Context, id string) ([]metrics.SessionMetrics, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT prolific_id, queries_issued, query_rate, avg_query_length_words,
		avg_query_length_chars, serps_visited, results_clicked, deepest_rank, avg_rank, dwell_time_per_minute, time_used
		FROM session_metrics WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var out []metrics.SessionMetrics
	for rows.Next() {
		var m metrics.SessionMetrics
		if err := rows.Scan(&m.ProlificID, &m.QueriesIssued, &m.QueryRate, &m.AvgQueryLengthWords,
			&m.AvgQueryLengthChars, &m.SerpsVisited, &m.NoOfResultsClicked, &m.DeepestRankVisitedResults,
			&m.AvgRankVisitedResults, &m.DwellTimePerMinute, &m.TimeUsed); err != nil {
			return nil, fmt.Errorf("scan metrics: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var timingPath sql.NullString
	if err := row.Scan(&run.ID, &run.InputPath, &timingPath, &run.DurationSource,
		&run.SessionCount, &run.ExcludedCount, &run.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.TimingPath = timingPath.String
	return run, nil
}
