package memory

import (
	"context"
	"sort"
	"sync"

	"fx-backtester/internal/domain"
	"fx-backtester/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]domain.Bar // symbol -> time -> bar
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string]map[int64]domain.Bar),
	}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds bars atomically. Fails entire batch on any duplicate.
func (s *BarStore) InsertBulk(_ context.Context, symbol string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	if symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[symbol]
	batchKeys := make(map[int64]struct{}, len(bars))
	for _, b := range bars {
		if _, exists := existing[b.Time]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[b.Time]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[b.Time] = struct{}{}
	}

	if existing == nil {
		existing = make(map[int64]domain.Bar, len(bars))
		s.data[symbol] = existing
	}
	for _, b := range bars {
		existing[b.Time] = b
	}
	return nil
}

// GetByRange retrieves bars within [start, end] (inclusive).
func (s *BarStore) GetByRange(_ context.Context, symbol string, start, end int64) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Bar
	for t, b := range s.data[symbol] {
		if t >= start && t <= end {
			out = append(out, b)
		}
	}
	sortBars(out)
	return out, nil
}

// GetAll retrieves every bar of a symbol.
func (s *BarStore) GetAll(_ context.Context, symbol string) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Bar, 0, len(s.data[symbol]))
	for _, b := range s.data[symbol] {
		out = append(out, b)
	}
	sortBars(out)
	return out, nil
}

func sortBars(bars []domain.Bar) {
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Time < bars[j].Time
	})
}
