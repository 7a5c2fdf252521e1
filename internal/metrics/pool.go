package metrics

import (
	"context"
	"runtime"
	"sync"

	"github.com/harrison/serpstudy/internal/session"
)

// ProcessAll computes every session's metrics with at most workers sessions
// in flight. Sessions share no state, so results are written by index and
// come back in input order. workers <= 0 uses one worker per CPU.
// A cancelled context stops dispatch and returns the context error.
func ProcessAll(ctx context.Context, sessions []*session.Session, opts Options, workers int) ([]*Result, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(sessions) {
		workers = len(sessions)
	}
	if workers == 0 {
		workers = 1
	}

	results := make([]*Result, len(sessions))
	semaphore := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var launchErr error

launch:
	for i, s := range sessions {
		if err := ctx.Err(); err != nil {
			launchErr = err
			break
		}

		select {
		case <-ctx.Done():
			launchErr = ctx.Err()
			break launch
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, s *session.Session) {
			defer wg.Done()
			defer func() { <-semaphore }()
			results[i] = Compute(s, opts)
		}(i, s)
	}

	wg.Wait()
	if launchErr != nil {
		return nil, launchErr
	}
	return results, nil
}

// Rows extracts the output records from results.
func Rows(results []*Result) []SessionMetrics {
	rows := make([]SessionMetrics, 0, len(results))
	for _, r := range results {
		rows = append(rows, r.Metrics)
	}
	return rows
}
