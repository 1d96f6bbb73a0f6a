package memory

import (
	"context"
	"sort"
	"sync"

	"quantbrain/internal/domain"
	"quantbrain/internal/storage"
)

type equityKey struct {
	runID    string
	barIndex int
}

// EquityStore is an in-memory implementation of storage.EquityStore.
type EquityStore struct {
	mu   sync.RWMutex
	data map[equityKey]*domain.EquityPoint
}

// NewEquityStore creates a new in-memory equity store.
func NewEquityStore() *EquityStore {
	return &EquityStore{
		data: make(map[equityKey]*domain.EquityPoint),
	}
}

// InsertBulk adds multiple points. Fails entire batch on duplicate.
func (s *EquityStore) InsertBulk(_ context.Context, points []*domain.EquityPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[equityKey]struct{}, len(points))

	for _, p := range points {
		if p == nil || p.RunID == "" || p.BarIndex < 0 {
			return storage.ErrInvalidInput
		}
		key := equityKey{p.RunID, p.BarIndex}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range points {
		pointCopy := *p
		s.data[equityKey{p.RunID, p.BarIndex}] = &pointCopy
	}

	return nil
}

// GetByRunID retrieves the equity curve of a run, ordered by bar_index ASC.
func (s *EquityStore) GetByRunID(_ context.Context, runID string) ([]*domain.EquityPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EquityPoint
	for k, p := range s.data {
		if k.runID == runID {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].BarIndex < result[j].BarIndex
	})

	return result, nil
}

var _ storage.EquityStore = (*EquityStore)(nil)
