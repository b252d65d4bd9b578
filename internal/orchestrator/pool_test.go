package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-backtester/internal/config"
	"fx-backtester/internal/domain"
	"fx-backtester/internal/history"
	"fx-backtester/internal/metrics"
	"fx-backtester/internal/params"
	"fx-backtester/internal/progress"
)

// 2024-01-02 00:00:00 UTC
const t0 int64 = 1704153600

func testHistory(t *testing.T, n int) *history.Store {
	t.Helper()
	bars := make([]domain.Bar, n)
	price := 1.1
	for i := range bars {
		next := price + 0.0001
		if (i/15)%2 == 1 {
			next = price - 0.0001
		}
		o, c := price, next
		hi, lo := o, c
		if c > o {
			hi, lo = c, o
		}
		bars[i] = domain.Bar{Open: o, High: hi + 0.00002, Low: lo - 0.00002, Close: c, Time: t0 + int64(i)*60, Valid: true}
		price = next
	}
	s := history.NewStore(zerolog.Nop())
	_, err := s.LoadBars(bars, 60)
	require.NoError(t, err)
	return s
}

func testSettings() config.Settings {
	return config.Settings{
		Strategy:       "MaCross",
		Pair:           "EURUSD",
		Period:         1,
		Digits:         5,
		Spread:         1,
		MinPriceOffset: 5,
		Deposit:        10000,
	}
}

func sweepGenerator() params.Generator {
	g := params.NewComplete(zerolog.Nop())
	g.AddFloat("macFastMa", 3, 1, 3)
	g.AddFloat("macSlowMa", 10, 5, 4)
	return g
}

type recordingSink struct {
	mu     sync.Mutex
	events []progress.Event
}

func (s *recordingSink) Publish(ev progress.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func TestPool_RunsEveryAssignment(t *testing.T) {
	agg := metrics.NewAggregator(metrics.ProfitRanking{}, zerolog.Nop())
	sink := &recordingSink{}
	pool := New(Options{
		History:      testHistory(t, 300),
		Generator:    sweepGenerator(),
		Aggregator:   agg,
		Settings:     testSettings(),
		Threads:      4,
		Optimization: true,
		SweepID:      "sweep-1",
		Progress:     sink,
		Logger:       zerolog.Nop(),
	})
	require.Equal(t, 4, pool.Threads())

	result, err := pool.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, result.Tasks)
	assert.Equal(t, 12, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, "sweep-1", result.SweepID)

	agg.Run()
	reports := agg.Succeeded()
	require.Len(t, reports, 12)

	ids := make(map[int]bool)
	for _, r := range reports {
		ids[r.Assignment.ID] = true
	}
	assert.Len(t, ids, 12)

	require.Len(t, sink.events, 14)
	assert.Equal(t, progress.KindSweepStarted, sink.events[0].Kind)
	assert.Equal(t, progress.KindSweepFinished, sink.events[13].Kind)
	assert.Equal(t, 12, sink.events[13].Finished)
	for _, ev := range sink.events {
		assert.Equal(t, "sweep-1", ev.SweepID)
	}
}

func TestPool_ResultsIndependentOfThreads(t *testing.T) {
	hist := testHistory(t, 300)

	run := func(threads int) []*domain.Report {
		agg := metrics.NewAggregator(metrics.ProfitRanking{}, zerolog.Nop())
		_, err := New(Options{
			History:      hist,
			Generator:    sweepGenerator(),
			Aggregator:   agg,
			Settings:     testSettings(),
			Threads:      threads,
			Optimization: true,
			Logger:       zerolog.Nop(),
		}).Run(context.Background())
		require.NoError(t, err)
		agg.Run()
		return agg.Succeeded()
	}

	byID := func(reports []*domain.Report) map[int][]domain.Trade {
		out := make(map[int][]domain.Trade)
		for _, r := range reports {
			out[r.Assignment.ID] = r.Trades
		}
		return out
	}

	assert.Equal(t, byID(run(1)), byID(run(5)))
}

// countingSink reads the pool's counters from inside Publish.
type countingSink struct {
	pool *Pool
	seen []int
}

func (s *countingSink) Publish(ev progress.Event) {
	if ev.Kind == progress.KindTaskFinished {
		s.seen = append(s.seen, s.pool.Finished())
	}
}

func TestPool_PublishesOutsideLock(t *testing.T) {
	sink := &countingSink{}
	pool := New(Options{
		History:    testHistory(t, 120),
		Generator:  sweepGenerator(),
		Aggregator: metrics.NewAggregator(nil, zerolog.Nop()),
		Settings:   testSettings(),
		Threads:    1,
		Progress:   sink,
		Logger:     zerolog.Nop(),
	})
	sink.pool = pool

	done := make(chan error, 1)
	go func() {
		_, err := pool.Run(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("pool deadlocked publishing under its lock")
	}
	assert.Equal(t, []int{1}, sink.seen)
	assert.Equal(t, 1, pool.Finished())
}

func TestPool_SingleThreadWithoutOptimization(t *testing.T) {
	agg := metrics.NewAggregator(nil, zerolog.Nop())
	pool := New(Options{
		History:    testHistory(t, 120),
		Generator:  params.FromName("complete", false, zerolog.Nop()),
		Aggregator: agg,
		Settings:   testSettings(),
		Threads:    8,
		Logger:     zerolog.Nop(),
	})
	assert.Equal(t, 1, pool.Threads())

	result, err := pool.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Tasks)
}

func TestPool_FailedReportsCounted(t *testing.T) {
	settings := testSettings()
	settings.Strategy = "NoSuchStrategy"
	agg := metrics.NewAggregator(nil, zerolog.Nop())

	result, err := New(Options{
		History:      testHistory(t, 60),
		Generator:    sweepGenerator(),
		Aggregator:   agg,
		Settings:     settings,
		Threads:      3,
		Optimization: true,
		Logger:       zerolog.Nop(),
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, result.Failed)
	assert.Equal(t, 0, result.Succeeded)
	assert.Nil(t, agg.Run())
	assert.Len(t, agg.Failed(), 12)
}

func TestPool_ConfirmAborts(t *testing.T) {
	var gotTasks, gotThreads int
	_, err := New(Options{
		History:      testHistory(t, 60),
		Generator:    sweepGenerator(),
		Aggregator:   metrics.NewAggregator(nil, zerolog.Nop()),
		Settings:     testSettings(),
		Threads:      2,
		Optimization: true,
		Logger:       zerolog.Nop(),
		Confirm: func(tasks, threads int) bool {
			gotTasks, gotThreads = tasks, threads
			return false
		},
	}).Run(context.Background())

	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, 12, gotTasks)
	assert.Equal(t, 2, gotThreads)
}

func TestPool_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := New(Options{
		History:      testHistory(t, 60),
		Generator:    sweepGenerator(),
		Aggregator:   metrics.NewAggregator(nil, zerolog.Nop()),
		Settings:     testSettings(),
		Threads:      2,
		Optimization: true,
		Logger:       zerolog.Nop(),
	}).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 0, result.Tasks)
}

func TestPool_RequiresInputs(t *testing.T) {
	hist := testHistory(t, 10)
	agg := metrics.NewAggregator(nil, zerolog.Nop())

	_, err := New(Options{Generator: sweepGenerator(), Aggregator: agg}).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoHistory)

	_, err = New(Options{History: hist, Aggregator: agg}).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoGenerator)

	_, err = New(Options{History: hist, Generator: sweepGenerator()}).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoAggregator)
}

func TestFormatETA(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0h 0m 0s"},
		{59 * time.Second, "0h 0m 59s"},
		{3*time.Hour + 25*time.Minute + 7*time.Second, "3h 25m 7s"},
		{-time.Second, "0h 0m 0s"},
	}
	for _, tt := range tests {
		if got := FormatETA(tt.d); got != tt.want {
			t.Errorf("FormatETA(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
