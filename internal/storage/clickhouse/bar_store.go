package clickhouse

import (
	"context"
	"fmt"

	"fx-backtester/internal/domain"
	"fx-backtester/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new ClickHouse bar store.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// chRows is the subset of driver.Rows used by scanBars.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// InsertBulk adds bars in a single batch.
// MergeTree does not enforce uniqueness, so duplicates are checked before insert.
func (s *BarStore) InsertBulk(ctx context.Context, symbol string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	if symbol == "" {
		return storage.ErrInvalidInput
	}

	seen := make(map[int64]struct{}, len(bars))
	minTime, maxTime := bars[0].Time, bars[0].Time
	for _, b := range bars {
		if _, ok := seen[b.Time]; ok {
			return storage.ErrDuplicateKey
		}
		seen[b.Time] = struct{}{}
		if b.Time < minTime {
			minTime = b.Time
		}
		if b.Time > maxTime {
			maxTime = b.Time
		}
	}

	existing, err := s.times(ctx, symbol, minTime, maxTime)
	if err != nil {
		return err
	}
	for _, t := range existing {
		if _, ok := seen[t]; ok {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO bars (symbol, time, open, high, low, close)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		if err := batch.Append(symbol, b.Time, b.Open, b.High, b.Low, b.Close); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRange retrieves bars within [start, end] (inclusive), ordered by time ASC.
func (s *BarStore) GetByRange(ctx context.Context, symbol string, start, end int64) ([]domain.Bar, error) {
	query := `
		SELECT time, open, high, low, close
		FROM bars
		WHERE symbol = ? AND time >= ? AND time <= ?
		ORDER BY time ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetAll retrieves every bar of a symbol, ordered by time ASC.
func (s *BarStore) GetAll(ctx context.Context, symbol string) ([]domain.Bar, error) {
	query := `
		SELECT time, open, high, low, close
		FROM bars
		WHERE symbol = ?
		ORDER BY time ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

func (s *BarStore) times(ctx context.Context, symbol string, start, end int64) ([]int64, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT time FROM bars WHERE symbol = ? AND time >= ? AND time <= ?`,
		symbol, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("check existing bars: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var t int64
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan bar time: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar times: %w", err)
	}
	return out, nil
}

func scanBars(rows chRows) ([]domain.Bar, error) {
	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Valid = true
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bars: %w", err)
	}
	return bars, nil
}
