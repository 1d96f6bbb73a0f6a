package reporting

import (
	"time"

	"quantbrain/internal/domain"
)

// Report represents one backtest run ready for rendering.
type Report struct {
	// Metadata
	GeneratedAt time.Time

	// The run being reported
	Run *domain.RunRecord

	// Per-bar output, ordered by bar index
	Equity []EquityRow

	// All runs of the same series, ordered by created_at
	SeriesRuns []*domain.RunRecord
}

// EquityRow represents one bar of the equity curve.
type EquityRow struct {
	BarIndex    int
	TimestampMs int64 // Unix ms
	Position    domain.Position
	NetReturn   float64
	Equity      float64
}

// PositionChangeRow represents a bar where the committed position changed.
type PositionChangeRow struct {
	BarIndex    int
	TimestampMs int64
	From        domain.Position
	To          domain.Position
	Equity      float64
}

// FromResult builds a report straight from an engine result, without stores.
func FromResult(run *domain.RunRecord, res *domain.Result, generatedAt time.Time) *Report {
	return &Report{
		GeneratedAt: generatedAt,
		Run:         run,
		Equity:      rowsFromPoints(res.EquityPoints(run.RunID)),
		SeriesRuns:  []*domain.RunRecord{run},
	}
}

// PositionChanges lists the bars where the position differs from the prior
// bar. Bar 0 counts as a change when it is not flat.
func (r *Report) PositionChanges() []PositionChangeRow {
	var out []PositionChangeRow
	prev := domain.Flat
	for _, row := range r.Equity {
		if row.Position != prev {
			out = append(out, PositionChangeRow{
				BarIndex:    row.BarIndex,
				TimestampMs: row.TimestampMs,
				From:        prev,
				To:          row.Position,
				Equity:      row.Equity,
			})
		}
		prev = row.Position
	}
	return out
}

func rowsFromPoints(points []*domain.EquityPoint) []EquityRow {
	rows := make([]EquityRow, 0, len(points))
	for _, p := range points {
		rows = append(rows, EquityRow{
			BarIndex:    p.BarIndex,
			TimestampMs: p.TimestampMs,
			Position:    p.Position,
			NetReturn:   p.NetReturn,
			Equity:      p.Equity,
		})
	}
	return rows
}
