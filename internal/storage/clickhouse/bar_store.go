package clickhouse

import (
	"context"
	"fmt"

	"quantbrain/internal/domain"
	"quantbrain/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

type barKey struct {
	seriesID    string
	timestampMs int64
}

// InsertBulk adds multiple bars. Fails entire batch on duplicate (series_id, timestamp_ms).
// MergeTree does not enforce uniqueness, so duplicates are checked before the insert.
func (s *BarStore) InsertBulk(ctx context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	// Intra-batch duplicates, tracking the time span per series
	type span struct{ min, max int64 }
	spans := make(map[string]*span)
	seen := make(map[barKey]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.SeriesID == "" {
			return storage.ErrInvalidInput
		}
		k := barKey{b.SeriesID, b.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}

		sp, ok := spans[b.SeriesID]
		if !ok {
			spans[b.SeriesID] = &span{b.TimestampMs, b.TimestampMs}
			continue
		}
		sp.min = min(sp.min, b.TimestampMs)
		sp.max = max(sp.max, b.TimestampMs)
	}

	// Duplicates against existing rows
	for seriesID, sp := range spans {
		existing, err := s.timestamps(ctx, seriesID, sp.min, sp.max)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		for _, ts := range existing {
			if _, clash := seen[barKey{seriesID, ts}]; clash {
				return storage.ErrDuplicateKey
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bars (
			series_id, timestamp_ms, price, signal, signal_integral
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(b.SeriesID, b.TimestampMs, b.Price, b.Signal, b.SignalIntegral)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySeries retrieves all bars of a series, ordered by timestamp ASC.
func (s *BarStore) GetBySeries(ctx context.Context, seriesID string) ([]*domain.Bar, error) {
	query := `
		SELECT series_id, timestamp_ms, price, signal, signal_integral
		FROM bars
		WHERE series_id = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, seriesID)
	if err != nil {
		return nil, fmt.Errorf("query by series id: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetByTimeRange retrieves bars of a series within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(ctx context.Context, seriesID string, start, end int64) ([]*domain.Bar, error) {
	query := `
		SELECT series_id, timestamp_ms, price, signal, signal_integral
		FROM bars
		WHERE series_id = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, seriesID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// timestamps lists stored timestamps of a series within [start, end].
func (s *BarStore) timestamps(ctx context.Context, seriesID string, start, end int64) ([]int64, error) {
	query := `
		SELECT timestamp_ms FROM bars
		WHERE series_id = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
	`

	rows, err := s.conn.Query(ctx, query, seriesID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// scanBars scans multiple rows.
func scanBars(rows chRows) ([]*domain.Bar, error) {
	var bars []*domain.Bar

	for rows.Next() {
		var b domain.Bar
		err := rows.Scan(&b.SeriesID, &b.TimestampMs, &b.Price, &b.Signal, &b.SignalIntegral)
		if err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}

	return bars, nil
}
