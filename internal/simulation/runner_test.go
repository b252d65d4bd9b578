package simulation

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-backtester/internal/config"
	"fx-backtester/internal/domain"
	"fx-backtester/internal/history"
	"fx-backtester/internal/strategy"
)

// 2024-01-02 00:00:00 UTC
const t0 int64 = 1704153600

func minute(m int64, o, h, l, c float64) domain.Bar {
	return domain.Bar{Open: o, High: h, Low: l, Close: c, Time: t0 + m*60, Valid: true}
}

func flat(m int64, p float64) domain.Bar {
	return minute(m, p, p, p, p)
}

func loadStore(t *testing.T, maxGap int, bars ...domain.Bar) *history.Store {
	t.Helper()
	s := history.NewStore(zerolog.Nop())
	_, err := s.LoadBars(bars, maxGap)
	require.NoError(t, err)
	return s
}

func testSettings() config.Settings {
	return config.Settings{
		Strategy:       "scripted",
		Pair:           "EURUSD",
		Period:         1,
		Digits:         5,
		Spread:         0,
		MinPriceOffset: 5,
		Deposit:        10000,
	}
}

// onceSignal emits one order on its first run.
type onceSignal struct {
	strategy.SignalBase
	out   domain.Output
	fired bool
}

func (s *onceSignal) Run(_ domain.Bar, _, _ float64, out *domain.Output) {
	if s.fired {
		return
	}
	s.fired = true
	*out = s.out
}

// fixedActor emits the same order on every tick.
type fixedActor struct {
	order domain.Order
}

func (a *fixedActor) Name() string { return "fixed" }
func (a *fixedActor) OnStart(strategy.Position, float64, float64) error { return nil }
func (a *fixedActor) OnStop() {}
func (a *fixedActor) OnSl(float64) {}
func (a *fixedActor) OnTp(float64) {}
func (a *fixedActor) Run(_ strategy.Position, _ domain.Bar, _, _ float64, out *domain.Output) {
	out.Order = a.order
}

func scripted(order domain.Output, actorOrder domain.Order) func(string, strategy.Services) (*strategy.Strategy, error) {
	return func(name string, svc strategy.Services) (*strategy.Strategy, error) {
		sig := &onceSignal{SignalBase: strategy.NewSignalBase(name, 0, false), out: order}
		return &strategy.Strategy{
			Name:   name,
			Signal: sig,
			Actor:  strategy.NewActorState(&fixedActor{order: actorOrder}, sig, svc.Log),
		}, nil
	}
}

func newRunner(src *history.Store, settings config.Settings, order domain.Output, actorOrder domain.Order) *Runner {
	return NewRunner(RunnerOptions{
		Source:      src,
		Settings:    settings,
		Logger:      zerolog.Nop(),
		NewStrategy: scripted(order, actorOrder),
	})
}

func buy(sl, tp float64) domain.Output {
	return domain.Output{Order: domain.OrderBuy, Lots: 0.01, SL: sl, TP: tp}
}

func sell(sl, tp float64) domain.Output {
	return domain.Output{Order: domain.OrderSell, Lots: 0.01, SL: sl, TP: tp}
}

func TestRun_BuyClosesAtTakeProfit(t *testing.T) {
	src := loadStore(t, 60,
		flat(0, 1.2005),
		minute(1, 1.2005, 1.2035, 1.2000, 1.2030),
	)
	r := newRunner(src, testSettings(), buy(1.1985, 1.2030), domain.OrderNothing)

	report := r.Run(context.Background(), domain.NewAssignment())

	require.False(t, report.Failed, report.Error)
	require.Len(t, report.Trades, 1)
	tr := report.Trades[0]
	assert.Equal(t, domain.StatusBuy, tr.Direction)
	assert.Equal(t, 1.2005, tr.Open)
	assert.Equal(t, 1.2030, tr.Close)
	assert.Equal(t, domain.CloseReasonTakeProfitTop, tr.Reason)
	assert.InDelta(t, 25.0, tr.Pips, 1e-6)
	assert.InDelta(t, 2.5, tr.ProfitQuote, 1e-6)
	assert.InDelta(t, 2.5/1.2030, tr.ProfitBase, 1e-6)
	assert.Equal(t, t0, tr.OpenTime)
	assert.NotEmpty(t, report.ID)
}

func TestRun_RejectsStopsTooCloseToPrice(t *testing.T) {
	src := loadStore(t, 60,
		flat(0, 1.2005),
		minute(1, 1.2005, 1.2035, 1.1980, 1.2030),
	)

	tests := []struct {
		name  string
		order domain.Output
	}{
		{"sl within min offset", buy(1.2003, 1.2030)},
		{"tp within min offset", buy(1.1985, 1.2008)},
		{"sl above bid", buy(1.2020, 1.2030)},
		{"tp below ask", buy(1.1985, 1.1990)},
		{"zero lots", domain.Output{Order: domain.OrderBuy, Lots: 0, SL: 1.1985, TP: 1.2030}},
		{"close while flat", domain.Output{Order: domain.OrderClose, Lots: 0.01, SL: 1.1985, TP: 1.2030}},
		{"sell tp above bid", sell(1.2030, 1.2020)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := newRunner(src, testSettings(), tt.order, domain.OrderNothing).Run(context.Background(), domain.NewAssignment())
			assert.False(t, report.Failed)
			assert.Empty(t, report.Trades)
		})
	}
}

func TestRun_SellClosesAtStopLoss(t *testing.T) {
	src := loadStore(t, 60,
		flat(0, 1.2005),
		minute(1, 1.2005, 1.2030, 1.2000, 1.2025),
	)
	r := newRunner(src, testSettings(), sell(1.2020, 1.1980), domain.OrderNothing)

	report := r.Run(context.Background(), domain.NewAssignment())

	require.Len(t, report.Trades, 1)
	tr := report.Trades[0]
	assert.Equal(t, domain.StatusSell, tr.Direction)
	assert.Equal(t, 1.2020, tr.Close)
	assert.Equal(t, domain.CloseReasonStopLossTop, tr.Reason)
	assert.InDelta(t, -15.0, tr.Pips, 1e-6)
	assert.InDelta(t, -1.5, tr.ProfitQuote, 1e-6)
}

func TestRun_ActorCloseOrder(t *testing.T) {
	src := loadStore(t, 60,
		flat(0, 1.2005),
		flat(1, 1.2009),
	)
	r := newRunner(src, testSettings(), buy(1.1985, 1.2030), domain.OrderClose)

	report := r.Run(context.Background(), domain.NewAssignment())

	require.Len(t, report.Trades, 1)
	assert.Equal(t, domain.CloseReasonActor, report.Trades[0].Reason)
	assert.Equal(t, 1.2009, report.Trades[0].Close)
	assert.InDelta(t, 4.0, report.Trades[0].Pips, 1e-6)
}

func TestRun_GapClosesAtLastTick(t *testing.T) {
	src := loadStore(t, 0,
		flat(0, 1.2005),
		flat(1, 1.2010),
		flat(3, 1.2050),
	)
	r := newRunner(src, testSettings(), buy(1.1985, 1.2100), domain.OrderNothing)

	report := r.Run(context.Background(), domain.NewAssignment())

	require.Len(t, report.Trades, 1)
	tr := report.Trades[0]
	assert.Equal(t, domain.CloseReasonInterrupt, tr.Reason)
	assert.Equal(t, 1.2010, tr.Close)
	assert.InDelta(t, 5.0, tr.Pips, 1e-6)
}

func TestRun_SpreadAppliesToOpen(t *testing.T) {
	src := loadStore(t, 60,
		flat(0, 1.2005),
		minute(1, 1.2005, 1.2035, 1.2000, 1.2030),
	)
	settings := testSettings()
	settings.Spread = 1

	report := newRunner(src, settings, buy(1.1985, 1.2030), domain.OrderNothing).Run(context.Background(), domain.NewAssignment())

	require.Len(t, report.Trades, 1)
	assert.InDelta(t, 1.2006, report.Trades[0].Open, 1e-9)
	assert.InDelta(t, 24.0, report.Trades[0].Pips, 1e-6)
}

// onceActor emits out on its first tick and nothing afterwards.
type onceActor struct {
	out   domain.Output
	fired bool
}

func (a *onceActor) Name() string { return "once" }
func (a *onceActor) OnStart(strategy.Position, float64, float64) error { return nil }
func (a *onceActor) OnStop() {}
func (a *onceActor) OnSl(float64) {}
func (a *onceActor) OnTp(float64) {}
func (a *onceActor) Run(_ strategy.Position, _ domain.Bar, _, _ float64, out *domain.Output) {
	if a.fired {
		return
	}
	a.fired = true
	*out = a.out
}

func TestRun_OrdersWhileTrading(t *testing.T) {
	// Bar 0 opens a buy at 1.2005 with sl 1.1985 / tp 1.2030. The actor
	// acts on bar 1; bar 2 decides which stop is hit.
	tests := []struct {
		name       string
		actor      domain.Output
		exit       domain.Bar
		wantClose  float64
		wantReason string
		wantSL     float64
		wantTP     float64
	}{
		{
			name:       "valid adjust moves the exit",
			actor:      domain.Output{Order: domain.OrderAdjust, SL: 1.1990, TP: 1.2020},
			exit:       minute(2, 1.2005, 1.2025, 1.2005, 1.2022),
			wantClose:  1.2020,
			wantReason: domain.CloseReasonTakeProfitTop,
			wantSL:     1.1990,
			wantTP:     1.2020,
		},
		{
			name:       "adjust with sl inside the stop level is rejected",
			actor:      domain.Output{Order: domain.OrderAdjust, SL: 1.2003, TP: 1.2030},
			exit:       minute(2, 1.2005, 1.2005, 1.1980, 1.1982),
			wantClose:  1.1985,
			wantReason: domain.CloseReasonStopLossBottom,
			wantSL:     1.1985,
			wantTP:     1.2030,
		},
		{
			name:       "buy while trading is ignored",
			actor:      buy(1.1990, 1.2020),
			exit:       minute(2, 1.2005, 1.2035, 1.2005, 1.2032),
			wantClose:  1.2030,
			wantReason: domain.CloseReasonTakeProfitTop,
			wantSL:     1.1985,
			wantTP:     1.2030,
		},
		{
			name:       "sell while trading is ignored",
			actor:      sell(1.2030, 1.1980),
			exit:       minute(2, 1.2005, 1.2005, 1.1980, 1.1982),
			wantClose:  1.1985,
			wantReason: domain.CloseReasonStopLossBottom,
			wantSL:     1.1985,
			wantTP:     1.2030,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := loadStore(t, 60, flat(0, 1.2005), flat(1, 1.2005), tt.exit)
			actor := &onceActor{out: tt.actor}
			r := NewRunner(RunnerOptions{
				Source:   src,
				Settings: testSettings(),
				Logger:   zerolog.Nop(),
				NewStrategy: func(name string, svc strategy.Services) (*strategy.Strategy, error) {
					sig := &onceSignal{SignalBase: strategy.NewSignalBase(name, 0, false), out: buy(1.1985, 1.2030)}
					return &strategy.Strategy{
						Name:   name,
						Signal: sig,
						Actor:  strategy.NewActorState(actor, sig, svc.Log),
					}, nil
				},
			})

			report := r.Run(context.Background(), domain.NewAssignment())

			require.False(t, report.Failed, report.Error)
			require.True(t, actor.fired)
			require.Len(t, report.Trades, 1)
			tr := report.Trades[0]
			assert.Equal(t, domain.StatusBuy, tr.Direction)
			assert.Equal(t, 1.2005, tr.Open)
			assert.Equal(t, t0, tr.OpenTime)
			assert.InDelta(t, tt.wantClose, tr.Close, 1e-9)
			assert.Equal(t, tt.wantReason, tr.Reason)
			assert.InDelta(t, tt.wantSL, tr.SL, 1e-9)
			assert.InDelta(t, tt.wantTP, tr.TP, 1e-9)
		})
	}
}

func TestRun_PlotSamples(t *testing.T) {
	src := loadStore(t, 60,
		flat(0, 1.2005),
		flat(1, 1.2015),
	)
	settings := testSettings()
	settings.Plot = true

	report := newRunner(src, settings, buy(1.1985, 1.2100), domain.OrderNothing).Run(context.Background(), domain.NewAssignment())

	require.Len(t, report.Plot, 2)
	assert.Equal(t, t0, report.Plot[0].Time)
	assert.Equal(t, 10000.0, report.Plot[0].Balance)
	assert.InDelta(t, 10000.0, report.Plot[0].Equity, 1e-9)
	assert.Equal(t, t0+60, report.Plot[1].Time)
	assert.InDelta(t, 10001.0, report.Plot[1].Equity, 1e-6)
}

func TestRun_UnknownStrategyFails(t *testing.T) {
	src := loadStore(t, 60, flat(0, 1.2005))
	settings := testSettings()
	settings.Strategy = "NoSuchStrategy"

	r := NewRunner(RunnerOptions{Source: src, Settings: settings, Logger: zerolog.Nop()})
	report := r.Run(context.Background(), domain.NewAssignment())

	assert.True(t, report.Failed)
	assert.Contains(t, report.Error, "unknown strategy")
}

func TestRun_CanceledContextFails(t *testing.T) {
	src := loadStore(t, 60, flat(0, 1.2005))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := newRunner(src, testSettings(), buy(1.1985, 1.2030), domain.OrderNothing).Run(ctx, domain.NewAssignment())
	assert.True(t, report.Failed)
}

func TestRun_MaCrossIsDeterministic(t *testing.T) {
	var bars []domain.Bar
	price := 1.1
	for m := int64(0); m < 600; m++ {
		next := 1.1 + 0.002*math.Sin(float64(m)/25)
		o, c := math.Round(price*1e5)/1e5, math.Round(next*1e5)/1e5
		h, l := math.Max(o, c)+0.00005, math.Min(o, c)-0.00005
		bars = append(bars, minute(m, o, math.Round(h*1e5)/1e5, math.Round(l*1e5)/1e5, c))
		price = next
	}
	src := loadStore(t, 60, bars...)

	settings := testSettings()
	settings.Strategy = "MaCross"
	settings.Spread = 1
	a := domain.NewAssignment()
	a.Floats["macFastMa"] = 5
	a.Floats["macSlowMa"] = 20

	run := func() *domain.Report {
		return NewRunner(RunnerOptions{Source: src, Settings: settings, Logger: zerolog.Nop()}).Run(context.Background(), a)
	}
	first, second := run(), run()

	require.False(t, first.Failed, first.Error)
	assert.NotEmpty(t, first.Trades)
	assert.Equal(t, first.Trades, second.Trades)
	for _, tr := range first.Trades {
		assert.True(t, tr.Direction.IsOpen())
		assert.NotEmpty(t, tr.Reason)
	}
}
