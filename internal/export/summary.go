package export

import (
	"github.com/samber/lo"

	"github.com/harrison/serpstudy/internal/metrics"
)

// Summary aggregates a metrics table.
type Summary struct {
	Sessions      int
	Queries       int
	Clicks        int
	MeanQueryRate float64
	MeanDwell     float64
}

// Summarize computes study-wide totals and means.
func Summarize(rows []metrics.SessionMetrics) Summary {
	s := Summary{
		Sessions: len(rows),
		Queries:  lo.SumBy(rows, func(m metrics.SessionMetrics) int { return m.QueriesIssued }),
		Clicks:   lo.SumBy(rows, func(m metrics.SessionMetrics) int { return m.NoOfResultsClicked }),
	}
	if len(rows) > 0 {
		n := float64(len(rows))
		s.MeanQueryRate = lo.SumBy(rows, func(m metrics.SessionMetrics) float64 { return m.QueryRate }) / n
		s.MeanDwell = lo.SumBy(rows, func(m metrics.SessionMetrics) float64 { return m.DwellTimePerMinute }) / n
	}
	return s
}
