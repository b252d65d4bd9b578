package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-backtester/internal/domain"
	"fx-backtester/internal/storage"
)

func newSweep() *storage.Sweep {
	return &storage.Sweep{
		ID:        uuid.NewString(),
		Strategy:  "MaCross",
		Pair:      "EURUSD",
		Period:    1,
		Tasks:     2,
		StartedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func newReport(id string, task int) *domain.Report {
	a := domain.NewAssignment()
	a.ID = task
	a.Floats["macFastMa"] = 5
	a.Floats["macSlowMa"] = 20
	a.Strings["tsLog"] = "debug"
	r := domain.NewReport("MaCross", a)
	r.ID = id
	r.Score = 2.5
	r.Trades = []domain.Trade{
		{
			Direction: domain.StatusBuy, Open: 1.2005, Close: 1.2030, Lots: 0.01,
			SL: 1.1990, TP: 1.2030, OpenTime: 1704153600, CloseTime: 1704153660,
			Reason: domain.CloseReasonTakeProfitTop, Pips: 25, ProfitQuote: 2.5, ProfitBase: 2.5 / 1.2030,
		},
		{
			Direction: domain.StatusSell, Open: 1.2030, Close: 1.2045, Lots: 0.01,
			SL: 1.2045, TP: 1.2000, OpenTime: 1704153720, CloseTime: 1704153780,
			Reason: domain.CloseReasonStopLossTop, Pips: -15, ProfitQuote: -1.5, ProfitBase: -1.5 / 1.2045,
		},
	}
	return r
}

func TestReportStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewReportStore(pool)
	ctx := context.Background()

	sweep := newSweep()
	require.NoError(t, store.InsertSweep(ctx, sweep))
	require.NoError(t, store.InsertReport(ctx, sweep.ID, newReport("r1", 1)))

	got, err := store.GetReport(ctx, sweep.ID, "r1")
	require.NoError(t, err)

	assert.Equal(t, "MaCross", got.Strategy)
	assert.Equal(t, 1, got.Assignment.ID)
	assert.Equal(t, 5.0, got.Assignment.Floats["macFastMa"])
	assert.Equal(t, "debug", got.Assignment.Strings["tsLog"])
	assert.Equal(t, 2.5, got.Score)
	require.Len(t, got.Trades, 2)
	assert.Equal(t, domain.StatusBuy, got.Trades[0].Direction)
	assert.Equal(t, domain.CloseReasonStopLossTop, got.Trades[1].Reason)
	assert.Equal(t, -15.0, got.Trades[1].Pips)
}

func TestReportStore_Duplicates(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewReportStore(pool)
	ctx := context.Background()

	sweep := newSweep()
	require.NoError(t, store.InsertSweep(ctx, sweep))
	assert.ErrorIs(t, store.InsertSweep(ctx, sweep), storage.ErrDuplicateKey)

	require.NoError(t, store.InsertReport(ctx, sweep.ID, newReport("r1", 1)))
	assert.ErrorIs(t, store.InsertReport(ctx, sweep.ID, newReport("r1", 1)), storage.ErrDuplicateKey)
}

func TestReportStore_SameReportInTwoSweeps(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewReportStore(pool)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		sweep := newSweep()
		require.NoError(t, store.InsertSweep(ctx, sweep))
		require.NoError(t, store.InsertReport(ctx, sweep.ID, newReport("r1", 1)))
	}
}

func TestReportStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewReportStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.InsertReport(ctx, uuid.NewString(), newReport("r1", 1)), storage.ErrNotFound)

	_, err := store.GetReport(ctx, uuid.NewString(), "r1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReportStore_ListBySweep(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewReportStore(pool)
	ctx := context.Background()

	sweep := newSweep()
	require.NoError(t, store.InsertSweep(ctx, sweep))

	failed := newReport("r2", 2)
	failed.Failed = true
	failed.Error = "unknown strategy"
	failed.Trades = nil
	require.NoError(t, store.InsertReport(ctx, sweep.ID, failed))
	require.NoError(t, store.InsertReport(ctx, sweep.ID, newReport("r1", 1)))

	got, err := store.ListBySweep(ctx, sweep.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "r1", got[0].ID)
	assert.Len(t, got[0].Trades, 2)
	assert.Equal(t, "r2", got[1].ID)
	assert.True(t, got[1].Failed)
	assert.Equal(t, "unknown strategy", got[1].Error)
	assert.Empty(t, got[1].Trades)
}
