package storage

import (
	"context"
	"time"

	"fx-backtester/internal/domain"
)

// Sweep identifies one backtest run and the settings it was started with.
type Sweep struct {
	ID        string // uuid
	Strategy  string
	Pair      string
	Period    int
	Tasks     int
	StartedAt time.Time
}

// ReportStore persists sweep reports and their trades.
type ReportStore interface {
	// InsertSweep adds a sweep. Returns ErrDuplicateKey if the id exists.
	InsertSweep(ctx context.Context, s *Sweep) error

	// InsertReport adds a report with its trades to a sweep.
	// Returns ErrDuplicateKey if (sweep_id, report_id) exists and ErrNotFound if the sweep does not.
	InsertReport(ctx context.Context, sweepID string, r *domain.Report) error

	// GetReport retrieves a report with its trades. Returns ErrNotFound if not exists.
	GetReport(ctx context.Context, sweepID, reportID string) (*domain.Report, error)

	// ListBySweep retrieves all reports of a sweep, ordered by assignment id ASC.
	ListBySweep(ctx context.Context, sweepID string) ([]*domain.Report, error)
}

// BarStore provides access to 1-minute bars per symbol.
type BarStore interface {
	// InsertBulk adds bars. Fails entire batch on duplicate (symbol, time).
	InsertBulk(ctx context.Context, symbol string, bars []domain.Bar) error

	// GetByRange retrieves bars within [start, end] (inclusive, epoch seconds), ordered by time ASC.
	GetByRange(ctx context.Context, symbol string, start, end int64) ([]domain.Bar, error)

	// GetAll retrieves every bar of a symbol, ordered by time ASC.
	GetAll(ctx context.Context, symbol string) ([]domain.Bar, error)
}
