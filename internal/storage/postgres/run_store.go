package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"quantbrain/internal/domain"
	"quantbrain/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, series_id,
	price_column, signal_column, fee_bps, slippage_bps, hold, min_hold_bars, equity0,
	summary, start_time, end_time, created_at
`

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO backtest_runs (` + runColumns + `) VALUES (
			$1, $2,
			$3, $4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.SeriesID,
		r.Config.PriceColumn, r.Config.SignalColumn, r.Config.FeeBps, r.Config.SlippageBps,
		r.Config.Hold.String(), r.Config.MinHoldBars, r.Config.Equity0,
		r.Summary, r.StartTime, r.EndTime, r.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs WHERE run_id = $1`

	r, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run by id: %w", err)
	}
	return r, nil
}

// GetBySeries retrieves all runs of a series, ordered by created_at ASC.
func (s *RunStore) GetBySeries(ctx context.Context, seriesID string) ([]*domain.RunRecord, error) {
	query := `
		SELECT ` + runColumns + `
		FROM backtest_runs
		WHERE series_id = $1
		ORDER BY created_at ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, seriesID)
	if err != nil {
		return nil, fmt.Errorf("get backtest runs by series: %w", err)
	}
	defer rows.Close()

	var runs []*domain.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}

	return runs, nil
}

// scanRun scans a single row into a RunRecord.
func scanRun(row pgx.Row) (*domain.RunRecord, error) {
	var r domain.RunRecord
	var hold string

	err := row.Scan(
		&r.RunID, &r.SeriesID,
		&r.Config.PriceColumn, &r.Config.SignalColumn, &r.Config.FeeBps, &r.Config.SlippageBps,
		&hold, &r.Config.MinHoldBars, &r.Config.Equity0,
		&r.Summary, &r.StartTime, &r.EndTime, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Config.Hold, err = domain.ParseHold(hold)
	if err != nil {
		return nil, fmt.Errorf("decode hold %q: %w", hold, err)
	}
	r.CreatedAt = r.CreatedAt.UTC()

	return &r, nil
}
