package memory

import (
	"context"
	"sort"
	"sync"

	"fx-backtester/internal/domain"
	"fx-backtester/internal/storage"
)

// ReportStore is an in-memory implementation of storage.ReportStore.
type ReportStore struct {
	mu      sync.RWMutex
	sweeps  map[string]*storage.Sweep
	reports map[string]map[string]*domain.Report // sweep_id -> report_id -> report
}

// NewReportStore creates a new in-memory report store.
func NewReportStore() *ReportStore {
	return &ReportStore{
		sweeps:  make(map[string]*storage.Sweep),
		reports: make(map[string]map[string]*domain.Report),
	}
}

// Compile-time interface check.
var _ storage.ReportStore = (*ReportStore)(nil)

// InsertSweep adds a sweep. Returns ErrDuplicateKey if the id exists.
func (s *ReportStore) InsertSweep(_ context.Context, sw *storage.Sweep) error {
	if sw == nil || sw.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sweeps[sw.ID]; exists {
		return storage.ErrDuplicateKey
	}
	c := *sw
	s.sweeps[sw.ID] = &c
	s.reports[sw.ID] = make(map[string]*domain.Report)
	return nil
}

// InsertReport adds a report to a sweep.
func (s *ReportStore) InsertReport(_ context.Context, sweepID string, r *domain.Report) error {
	if r == nil || r.ID == "" || sweepID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reports, ok := s.reports[sweepID]
	if !ok {
		return storage.ErrNotFound
	}
	if _, exists := reports[r.ID]; exists {
		return storage.ErrDuplicateKey
	}
	reports[r.ID] = r.Clone()
	return nil
}

// GetReport retrieves a report. Returns ErrNotFound if not exists.
func (s *ReportStore) GetReport(_ context.Context, sweepID, reportID string) (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[sweepID][reportID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return r.Clone(), nil
}

// ListBySweep retrieves all reports of a sweep, ordered by assignment id ASC.
func (s *ReportStore) ListBySweep(_ context.Context, sweepID string) ([]*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Report
	for _, r := range s.reports[sweepID] {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Assignment.ID < out[j].Assignment.ID
	})
	return out, nil
}
