package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fx-backtester/internal/domain"
	"fx-backtester/internal/idhash"
	"fx-backtester/internal/storage"
)

// ReportStore implements storage.ReportStore using PostgreSQL.
type ReportStore struct {
	pool *Pool
}

// NewReportStore creates a new PostgreSQL report store.
func NewReportStore(pool *Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReportStore = (*ReportStore)(nil)

// InsertSweep adds a sweep. Returns ErrDuplicateKey if the id exists.
func (s *ReportStore) InsertSweep(ctx context.Context, sw *storage.Sweep) error {
	if sw == nil || sw.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO sweeps (id, strategy, pair, period, tasks, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		sw.ID, sw.Strategy, sw.Pair, sw.Period, sw.Tasks, sw.StartedAt.UTC(),
	)
	if err != nil {
		return mapError("insert sweep", err)
	}
	return nil
}

// InsertReport adds a report with its trades in one transaction.
func (s *ReportStore) InsertReport(ctx context.Context, sweepID string, r *domain.Report) error {
	if r == nil || r.ID == "" || sweepID == "" {
		return storage.ErrInvalidInput
	}

	floats, err := json.Marshal(r.Assignment.Floats)
	if err != nil {
		return fmt.Errorf("encode float params: %w", err)
	}
	strs, err := json.Marshal(r.Assignment.Strings)
	if err != nil {
		return fmt.Errorf("encode string params: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// An unknown sweep id fails the foreign key and maps to ErrNotFound.
	_, err = tx.Exec(ctx, `
		INSERT INTO reports (sweep_id, report_id, task_id, strategy, float_params, string_params, failed, error, score)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8, $9)
	`,
		sweepID, r.ID, r.Assignment.ID, r.Strategy, string(floats), string(strs), r.Failed, r.Error, r.Score,
	)
	if err != nil {
		return mapError("insert report", err)
	}

	tradeQuery := `
		INSERT INTO trades (
			trade_id, sweep_id, report_id, seq, direction,
			open_price, close_price, lots, stop_loss, take_profit,
			open_time, close_time, reason, pips, profit_quote, profit_base
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	for i, t := range r.Trades {
		_, err := tx.Exec(ctx, tradeQuery,
			idhash.ComputeTradeID(sweepID, r.ID, i, t.OpenTime), sweepID, r.ID, i, int16(t.Direction),
			t.Open, t.Close, t.Lots, t.SL, t.TP,
			t.OpenTime, t.CloseTime, t.Reason, t.Pips, t.ProfitQuote, t.ProfitBase,
		)
		if err != nil {
			return mapError(fmt.Sprintf("insert trade %d", i), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetReport retrieves a report with its trades. Returns ErrNotFound if not exists.
func (s *ReportStore) GetReport(ctx context.Context, sweepID, reportID string) (*domain.Report, error) {
	query := `
		SELECT report_id, task_id, strategy, float_params, string_params, failed, error, score
		FROM reports
		WHERE sweep_id = $1 AND report_id = $2
	`

	r, err := scanReport(s.pool.QueryRow(ctx, query, sweepID, reportID))
	if err != nil {
		return nil, mapError("get report", err)
	}

	trades, err := s.trades(ctx, sweepID, reportID)
	if err != nil {
		return nil, err
	}
	r.Trades = trades
	return r, nil
}

// ListBySweep retrieves all reports of a sweep, ordered by task id ASC.
func (s *ReportStore) ListBySweep(ctx context.Context, sweepID string) ([]*domain.Report, error) {
	query := `
		SELECT report_id, task_id, strategy, float_params, string_params, failed, error, score
		FROM reports
		WHERE sweep_id = $1
		ORDER BY task_id ASC
	`

	rows, err := s.pool.Query(ctx, query, sweepID)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var reports []*domain.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}

	for _, r := range reports {
		trades, err := s.trades(ctx, sweepID, r.ID)
		if err != nil {
			return nil, err
		}
		r.Trades = trades
	}
	return reports, nil
}

func (s *ReportStore) trades(ctx context.Context, sweepID, reportID string) ([]domain.Trade, error) {
	query := `
		SELECT direction, open_price, close_price, lots, stop_loss, take_profit,
		       open_time, close_time, reason, pips, profit_quote, profit_base
		FROM trades
		WHERE sweep_id = $1 AND report_id = $2
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, sweepID, reportID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var direction int16
		err := rows.Scan(
			&direction, &t.Open, &t.Close, &t.Lots, &t.SL, &t.TP,
			&t.OpenTime, &t.CloseTime, &t.Reason, &t.Pips, &t.ProfitQuote, &t.ProfitBase,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Direction = domain.Status(direction)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return trades, nil
}

// scanReport scans a single report row without trades.
func scanReport(row pgx.Row) (*domain.Report, error) {
	var (
		r       domain.Report
		floats  []byte
		strs    []byte
		taskID  int
		errText string
	)
	err := row.Scan(&r.ID, &taskID, &r.Strategy, &floats, &strs, &r.Failed, &errText, &r.Score)
	if err != nil {
		return nil, err
	}

	r.Assignment = domain.NewAssignment()
	r.Assignment.ID = taskID
	r.Error = errText
	if err := json.Unmarshal(floats, &r.Assignment.Floats); err != nil {
		return nil, fmt.Errorf("decode float params: %w", err)
	}
	if err := json.Unmarshal(strs, &r.Assignment.Strings); err != nil {
		return nil, fmt.Errorf("decode string params: %w", err)
	}
	return &r, nil
}
