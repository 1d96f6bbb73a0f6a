package domain

import "time"

// Result is the output bundle of a backtest. All slices are aligned with the
// time-sorted input and have the same length.
type Result struct {
	Timestamps []time.Time `json:"timestamps"`
	Equity     []float64   `json:"equity"`    // cumulative equity curve
	Returns    []float64   `json:"returns"`   // per-bar net returns, full precision
	Positions  []Position  `json:"positions"` // committed positions
	Trades     int         `json:"trades"`    // sum of |position change| after bar 0
}

// Len returns the number of bars in the result.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Positions)
}

// FinalEquity returns the last equity value, or equity0 when there are no bars.
func (r *Result) FinalEquity(equity0 float64) float64 {
	if r.Len() == 0 {
		return equity0
	}
	return r.Equity[len(r.Equity)-1]
}

// EquityPoints converts the result into storable per-bar rows.
func (r *Result) EquityPoints(runID string) []*EquityPoint {
	points := make([]*EquityPoint, 0, r.Len())
	for i := range r.Positions {
		points = append(points, &EquityPoint{
			RunID:       runID,
			BarIndex:    i,
			TimestampMs: r.Timestamps[i].UnixMilli(),
			Position:    r.Positions[i],
			NetReturn:   r.Returns[i],
			Equity:      r.Equity[i],
		})
	}
	return points
}

// RunRecord represents a persisted backtest run.
// Corresponds to backtest_runs table in PostgreSQL.
type RunRecord struct {
	RunID     string         `json:"run_id"`    // deterministic hash
	SeriesID  string         `json:"series_id"` // input series
	Config    BacktestConfig `json:"config"`
	Summary   Summary        `json:"summary"`
	StartTime int64          `json:"start_time_ms"` // first bar timestamp (ms)
	EndTime   int64          `json:"end_time_ms"`   // last bar timestamp (ms)
	CreatedAt time.Time      `json:"created_at"`
}
