package clickhouse

import (
	"context"
	"fmt"

	"quantbrain/internal/domain"
	"quantbrain/internal/storage"
)

// EquityStore implements storage.EquityStore using ClickHouse.
type EquityStore struct {
	conn *Conn
}

// NewEquityStore creates a new EquityStore.
func NewEquityStore(conn *Conn) *EquityStore {
	return &EquityStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EquityStore = (*EquityStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (run_id, bar_index).
func (s *EquityStore) InsertBulk(ctx context.Context, points []*domain.EquityPoint) error {
	if len(points) == 0 {
		return nil
	}

	type key struct {
		runID    string
		barIndex int
	}
	seen := make(map[key]struct{}, len(points))
	runs := make(map[string]struct{})
	for _, p := range points {
		if p == nil || p.RunID == "" || p.BarIndex < 0 {
			return storage.ErrInvalidInput
		}
		k := key{p.RunID, p.BarIndex}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		runs[p.RunID] = struct{}{}
	}

	// Equity curves are written once per run; any stored row for the run is a clash.
	for runID := range runs {
		exists, err := s.exists(ctx, runID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO equity_curve (
			run_id, bar_index, timestamp_ms, position, net_return, equity
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.RunID, uint32(p.BarIndex), p.TimestampMs,
			int8(p.Position), p.NetReturn, p.Equity,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves the equity curve of a run, ordered by bar_index ASC.
func (s *EquityStore) GetByRunID(ctx context.Context, runID string) ([]*domain.EquityPoint, error) {
	query := `
		SELECT run_id, bar_index, timestamp_ms, position, net_return, equity
		FROM equity_curve
		WHERE run_id = ?
		ORDER BY bar_index ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	return scanEquityPoints(rows)
}

func (s *EquityStore) exists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM equity_curve WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanEquityPoints(rows chRows) ([]*domain.EquityPoint, error) {
	var points []*domain.EquityPoint

	for rows.Next() {
		var p domain.EquityPoint
		var barIndex uint32
		var position int8

		err := rows.Scan(&p.RunID, &barIndex, &p.TimestampMs, &position, &p.NetReturn, &p.Equity)
		if err != nil {
			return nil, fmt.Errorf("scan equity row: %w", err)
		}

		p.BarIndex = int(barIndex)
		p.Position = domain.Position(position)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity rows: %w", err)
	}

	return points, nil
}
