// Package simulation runs one strategy over the whole tick stream for a
// single parameter assignment, acting as the broker.
package simulation

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"fx-backtester/internal/config"
	"fx-backtester/internal/controller"
	"fx-backtester/internal/domain"
	"fx-backtester/internal/idhash"
	"fx-backtester/internal/observability"
	"fx-backtester/internal/pricing"
	"fx-backtester/internal/strategy"
	"fx-backtester/internal/ticks"
)

// Runner errors
var (
	ErrNoSource = errors.New("simulation has no tick source")
)

// ctxCheckTicks is how often the tick loop checks for cancellation.
const ctxCheckTicks = 4096

// Runner executes simulations over a private bar source.
// A Runner is used by a single worker and is not safe for concurrent use.
type Runner struct {
	source      ticks.Source
	settings    config.Settings
	precision   pricing.Precision
	newStrategy func(name string, svc strategy.Services) (*strategy.Strategy, error)
	metrics     *observability.Metrics
	log         zerolog.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source   ticks.Source
	Settings config.Settings
	Metrics  *observability.Metrics
	Logger   zerolog.Logger

	// NewStrategy instantiates strategies; defaults to strategy.New.
	NewStrategy func(name string, svc strategy.Services) (*strategy.Strategy, error)
}

// NewRunner creates a simulation runner.
func NewRunner(opts RunnerOptions) *Runner {
	newStrategy := opts.NewStrategy
	if newStrategy == nil {
		newStrategy = strategy.New
	}
	return &Runner{
		source:      opts.Source,
		settings:    opts.Settings,
		precision:   opts.Settings.Precision(),
		newStrategy: newStrategy,
		metrics:     opts.Metrics,
		log:         opts.Logger.With().Str("component", "simulation").Logger(),
	}
}

// Run simulates one assignment and returns its report. Failures are recorded
// in the report instead of being returned.
// Steps:
//  1. Instantiate the strategy with the assignment's parameters
//  2. Synthesize ticks until the history is exhausted
//  3. Before each tick, close on standing stop loss or take profit
//  4. Let the controller decide, then validate and apply its order
//  5. Sample equity on every 60s-aligned tick when plotting
func (r *Runner) Run(ctx context.Context, a domain.Assignment) *domain.Report {
	report := domain.NewReport(r.settings.Strategy, a)
	report.ID = idhash.ComputeReportID(r.settings.Strategy, r.settings.Pair, r.settings.Period, a)

	if r.source == nil {
		return fail(report, ErrNoSource)
	}

	// 1. Instantiate the strategy
	log := r.log.With().Int("task", a.ID).Logger()
	svc := strategy.Services{
		Pair:      r.settings.Pair,
		Period:    r.settings.Period,
		Precision: r.precision,
		Params:    strategy.NewParams(a, log),
		Log:       log,
	}
	strat, err := r.newStrategy(r.settings.Strategy, svc)
	if err != nil {
		log.Error().Err(err).Str("strategy", r.settings.Strategy).Msg("Strategy instantiation failed")
		return fail(report, err)
	}
	strat.Actor.SetLogStartStop(false)

	s := &session{
		settings:  r.settings,
		precision: r.precision,
		ctrl:      controller.New(strat, log),
		report:    report,
		metrics:   r.metrics,
		log:       log,
	}
	s.state.reset()
	s.state.balance = r.settings.Deposit

	// 2. Tick loop
	synth := ticks.New(r.source, r.precision, ticks.Options{
		Period:     r.settings.Period,
		Spread:     r.settings.Spread,
		FewerTicks: r.settings.FewerTicks,
	})

	processed := 0
	for {
		if processed%ctxCheckTicks == 0 && ctx.Err() != nil {
			r.metrics.RecordTicks(processed)
			return fail(report, ctx.Err())
		}

		tick, res := synth.Next()
		if res == ticks.NoMoreTicks {
			break
		}
		if res == ticks.Interruption {
			s.interrupt()
			continue
		}
		processed++
		s.processTick(tick, res == ticks.NewBarTick)
	}
	r.metrics.RecordTicks(processed)

	if s.state.status != domain.StatusNothing {
		log.Warn().Stringer("status", s.state.status).Float64("open", s.state.open).Msg("Position still open at end of history")
	}
	return report
}

func fail(report *domain.Report, err error) *domain.Report {
	report.Failed = true
	report.Error = err.Error()
	return report
}
