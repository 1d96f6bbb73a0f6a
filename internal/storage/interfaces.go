package storage

import (
	"context"

	"quantbrain/internal/domain"
)

// BarStore provides access to bars storage.
type BarStore interface {
	// InsertBulk adds multiple bars. Fails entire batch on duplicate (series_id, timestamp_ms).
	InsertBulk(ctx context.Context, bars []*domain.Bar) error

	// GetBySeries retrieves all bars of a series, ordered by timestamp ASC.
	GetBySeries(ctx context.Context, seriesID string) ([]*domain.Bar, error)

	// GetByTimeRange retrieves bars of a series within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, seriesID string, start, end int64) ([]*domain.Bar, error)
}

// RunStore provides access to backtest_runs storage.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// GetBySeries retrieves all runs of a series, ordered by created_at ASC.
	GetBySeries(ctx context.Context, seriesID string) ([]*domain.RunRecord, error)
}

// EquityStore provides access to equity_curve storage.
type EquityStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (run_id, bar_index).
	InsertBulk(ctx context.Context, points []*domain.EquityPoint) error

	// GetByRunID retrieves the equity curve of a run, ordered by bar_index ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.EquityPoint, error)
}
