// Package orchestrator runs a parameter sweep: a fixed set of workers pull
// assignments, simulate them and submit the reports.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fx-backtester/internal/config"
	"fx-backtester/internal/domain"
	"fx-backtester/internal/history"
	"fx-backtester/internal/metrics"
	"fx-backtester/internal/observability"
	"fx-backtester/internal/params"
	"fx-backtester/internal/progress"
	"fx-backtester/internal/simulation"
	"fx-backtester/internal/strategy"
)

// Pool errors
var (
	ErrAborted      = errors.New("sweep aborted before launch")
	ErrNoHistory    = errors.New("worker pool requires a loaded history")
	ErrNoGenerator  = errors.New("worker pool requires a parameters generator")
	ErrNoAggregator = errors.New("worker pool requires a report aggregator")
)

// ProgressSink receives progress events. progress.Hub implements it.
type ProgressSink interface {
	Publish(ev progress.Event)
}

// Options for creating a Pool.
type Options struct {
	History    *history.Store
	Generator  params.Generator
	Aggregator *metrics.Aggregator
	Settings   config.Settings

	// Threads is forced to 1 when Optimization is off.
	Threads      int
	Optimization bool
	SweepID      string

	Metrics  *observability.Metrics
	Progress ProgressSink
	Logger   zerolog.Logger

	// Confirm is asked before launch. Returning false aborts the sweep.
	Confirm func(tasks, threads int) bool

	// NewStrategy instantiates strategies; defaults to strategy.New.
	NewStrategy func(name string, svc strategy.Services) (*strategy.Strategy, error)
}

// Result summarizes a finished sweep.
type Result struct {
	SweepID   string
	Tasks     int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Pool is the worker pool. All bookkeeping shared by workers is guarded by mu,
// which is never held while a simulation runs.
type Pool struct {
	opts    Options
	threads int
	log     zerolog.Logger

	started time.Time
	total   int

	mu       sync.Mutex
	finished int
	failed   int
}

// New creates a worker pool.
func New(opts Options) *Pool {
	threads := opts.Threads
	if !opts.Optimization || threads < 1 {
		threads = 1
	}
	if threads > config.MaxThreads {
		threads = config.MaxThreads
	}
	return &Pool{
		opts:    opts,
		threads: threads,
		log:     opts.Logger.With().Str("component", "worker_pool").Logger(),
	}
}

// Threads returns the effective worker count.
func (p *Pool) Threads() int {
	return p.threads
}

// Run executes the sweep and blocks until every worker is done.
// Steps:
//  1. Initialize the generator and log the launch recap
//  2. Clone the history once per worker
//  3. Run workers until the generator is exhausted
func (p *Pool) Run(ctx context.Context) (*Result, error) {
	if p.opts.History == nil || p.opts.History.Len() == 0 {
		return nil, ErrNoHistory
	}
	if p.opts.Generator == nil {
		return nil, ErrNoGenerator
	}
	if p.opts.Aggregator == nil {
		return nil, ErrNoAggregator
	}

	// 1. Recap
	gen := p.opts.Generator
	gen.Initialize(p.opts.Optimization)
	total := gen.TotalTasks()
	p.total = total

	if p.opts.Optimization {
		p.log.Info().
			Int("tasks", total).
			Int("threads", p.threads).
			Str("tasks_per_thread", fmt.Sprintf("~%.1f", float64(total)/float64(p.threads))).
			Msg("Optimization mode enabled")
	} else {
		p.log.Info().Msg("Optimization mode disabled (one thread)")
	}

	if p.opts.Confirm != nil && !p.opts.Confirm(total, p.threads) {
		p.log.Error().Msg("Abort")
		return nil, ErrAborted
	}

	// 2. Private history per worker
	runners := make([]*simulation.Runner, p.threads)
	for i := range runners {
		runners[i] = simulation.NewRunner(simulation.RunnerOptions{
			Source:      p.opts.History.Clone(),
			Settings:    p.opts.Settings,
			Metrics:     p.opts.Metrics,
			Logger:      p.opts.Logger.With().Int("worker", i+1).Logger(),
			NewStrategy: p.opts.NewStrategy,
		})
	}

	// 3. Launch
	p.started = time.Now()
	p.opts.Metrics.RecordSweepStart(total, p.threads)
	p.publish(progress.Event{Kind: progress.KindSweepStarted, Total: total})

	var wg sync.WaitGroup
	for i, r := range runners {
		wg.Add(1)
		go func(id int, r *simulation.Runner) {
			defer wg.Done()
			p.work(ctx, id, r)
			p.log.Info().Int("worker", id).Msg("Thread finished")
		}(i+1, r)
	}
	wg.Wait()

	p.opts.Metrics.RecordSweepEnd()

	result := &Result{
		SweepID:   p.opts.SweepID,
		Tasks:     p.finished,
		Succeeded: p.finished - p.failed,
		Failed:    p.failed,
		Duration:  time.Since(p.started),
	}
	p.publish(progress.Event{Kind: progress.KindSweepFinished, Finished: p.finished, Total: total})
	p.log.Info().
		Int("tasks", result.Tasks).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("Sweep completed")

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("sweep interrupted: %w", err)
	}
	return result, nil
}

func (p *Pool) work(ctx context.Context, id int, r *simulation.Runner) {
	for {
		a, ok := p.pull(ctx)
		if !ok {
			return
		}
		start := time.Now()
		report := r.Run(ctx, a)
		p.submit(report, time.Since(start))
	}
}

// pull takes the next assignment from the generator.
func (p *Pool) pull(ctx context.Context) (domain.Assignment, bool) {
	a := domain.NewAssignment()
	if ctx.Err() != nil {
		return a, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return a, p.opts.Generator.Next(&a)
}

// submit records a finished report. The aggregator copies the report before
// taking its own lock; p.mu only guards the counters.
func (p *Pool) submit(report *domain.Report, took time.Duration) {
	p.opts.Aggregator.Add(report)

	p.mu.Lock()
	p.finished++
	if report.Failed {
		p.failed++
	}
	finished := p.finished
	p.mu.Unlock()

	outcome := "success"
	if report.Failed {
		outcome = "failed"
	}
	p.log.Info().Msgf("Task %d report (%s, %d trades) with %s",
		finished, outcome, len(report.Trades), report.Assignment.FloatParamsString())

	var left time.Duration
	if finished >= p.total {
		p.log.Info().Int("task", finished).Msg("Task finished")
	} else {
		elapsed := time.Since(p.started)
		left = elapsed / time.Duration(finished) * time.Duration(p.total-finished)
		p.log.Info().
			Int("task", finished).
			Int("total", p.total).
			Str("eta", FormatETA(left)).
			Msg("Task finished")
	}

	p.opts.Metrics.RecordTask(report.Failed, took, left)
	p.publish(progress.Event{
		Kind:       progress.KindTaskFinished,
		SweepID:    p.opts.SweepID,
		Task:       report.Assignment.ID,
		Finished:   finished,
		Total:      p.total,
		Failed:     report.Failed,
		Trades:     len(report.Trades),
		Params:     report.Assignment.FloatParamsString(),
		ETASeconds: left.Seconds(),
	})
}

// Finished returns the number of reports submitted so far.
func (p *Pool) Finished() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished
}

func (p *Pool) publish(ev progress.Event) {
	if p.opts.Progress == nil {
		return
	}
	if ev.SweepID == "" {
		ev.SweepID = p.opts.SweepID
	}
	p.opts.Progress.Publish(ev)
}

// FormatETA renders d as "<h>h <m>m <s>s".
func FormatETA(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	h := secs / 3600
	m := (secs - h*3600) / 60
	s := secs - h*3600 - m*60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
