package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"quantbrain/internal/domain"
	"quantbrain/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Bar // keyed by (series_id, timestamp_ms)
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string]*domain.Bar),
	}
}

func barKey(seriesID string, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", seriesID, timestampMs)
}

// InsertBulk adds multiple bars. Fails entire batch on duplicate.
func (s *BarStore) InsertBulk(_ context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(bars))

	// First pass: check for duplicates (existing + intra-batch)
	for _, b := range bars {
		if b == nil || b.SeriesID == "" {
			return storage.ErrInvalidInput
		}
		key := barKey(b.SeriesID, b.TimestampMs)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, b := range bars {
		barCopy := *b
		s.data[barKey(b.SeriesID, b.TimestampMs)] = &barCopy
	}

	return nil
}

// GetBySeries retrieves all bars of a series, ordered by timestamp ASC.
func (s *BarStore) GetBySeries(_ context.Context, seriesID string) ([]*domain.Bar, error) {
	return s.filter(func(b *domain.Bar) bool {
		return b.SeriesID == seriesID
	}), nil
}

// GetByTimeRange retrieves bars of a series within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(_ context.Context, seriesID string, start, end int64) ([]*domain.Bar, error) {
	return s.filter(func(b *domain.Bar) bool {
		return b.SeriesID == seriesID && b.TimestampMs >= start && b.TimestampMs <= end
	}), nil
}

func (s *BarStore) filter(match func(*domain.Bar) bool) []*domain.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bar
	for _, b := range s.data {
		if match(b) {
			barCopy := *b
			result = append(result, &barCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result
}

var _ storage.BarStore = (*BarStore)(nil)
