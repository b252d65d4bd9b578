// Package pipeline wires one backtest end to end: history load, parameter
// sweep, ranking, report files and the optional database sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fx-backtester/internal/config"
	"fx-backtester/internal/domain"
	"fx-backtester/internal/history"
	"fx-backtester/internal/metrics"
	"fx-backtester/internal/observability"
	"fx-backtester/internal/orchestrator"
	"fx-backtester/internal/params"
	"fx-backtester/internal/reporting"
	"fx-backtester/internal/storage"
	"fx-backtester/internal/verification"
)

// Pipeline errors
var (
	// ErrNoBarStore is returned when the clickhouse history format is selected
	// without a bar store.
	ErrNoBarStore = errors.New("clickhouse history requires a bar store")

	// ErrNoReportStore is returned when verification runs without a report store.
	ErrNoReportStore = errors.New("verification requires a report store")
)

// Outcome is what a finished sweep produced.
type Outcome struct {
	SweepID string
	Result  *orchestrator.Result
	Report  *reporting.Report
	Files   []string
}

// Sweep runs a configured backtest.
type Sweep struct {
	cfg     *config.Config
	log     zerolog.Logger
	sweepID string
	clock   func() time.Time

	bars     storage.BarStore    // history source for the clickhouse format
	reports  storage.ReportStore // optional sink
	metrics  *observability.Metrics
	progress orchestrator.ProgressSink
	confirm  func(tasks, threads int) bool
}

// NewSweep creates a sweep with a fresh id.
func NewSweep(cfg *config.Config, logger zerolog.Logger) *Sweep {
	return &Sweep{
		cfg:     cfg,
		log:     logger.With().Str("component", "pipeline").Logger(),
		sweepID: uuid.NewString(),
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// WithSweepID overrides the generated sweep id.
func (s *Sweep) WithSweepID(id string) *Sweep {
	s.sweepID = id
	return s
}

// WithClock sets a custom clock function for deterministic output.
func (s *Sweep) WithClock(clock func() time.Time) *Sweep {
	s.clock = clock
	return s
}

// WithBarStore sets the source used by the clickhouse history format.
func (s *Sweep) WithBarStore(bars storage.BarStore) *Sweep {
	s.bars = bars
	return s
}

// WithReportStore persists every report of the sweep after it finished.
func (s *Sweep) WithReportStore(reports storage.ReportStore) *Sweep {
	s.reports = reports
	return s
}

// WithMetrics sets the Prometheus metrics.
func (s *Sweep) WithMetrics(m *observability.Metrics) *Sweep {
	s.metrics = m
	return s
}

// WithProgress sets the progress event sink.
func (s *Sweep) WithProgress(sink orchestrator.ProgressSink) *Sweep {
	s.progress = sink
	return s
}

// WithConfirm sets the launch confirmation callback.
func (s *Sweep) WithConfirm(confirm func(tasks, threads int) bool) *Sweep {
	s.confirm = confirm
	return s
}

// ID returns the sweep id.
func (s *Sweep) ID() string {
	return s.sweepID
}

// Run executes the backtest:
//  1. Load the history
//  2. Build the parameters generator
//  3. Run the worker pool
//  4. Rank the reports and write the report files
//  5. Write the plot files and persist the reports when configured
func (s *Sweep) Run(ctx context.Context) (*Outcome, error) {
	startedAt := s.clock()
	log := s.log.With().Str("sweep_id", s.sweepID).Logger()

	// 1. History
	store, err := s.loadHistory(ctx)
	if err != nil {
		return nil, err
	}

	// 2. Parameters
	gen := params.FromName(s.cfg.ParamsGenerator, s.cfg.OptimizationMode, s.log)
	if s.cfg.StrategyParams != "" {
		if err := params.LoadFile(s.cfg.StrategyParams, gen, s.log); err != nil {
			return nil, err
		}
	}

	// 3. Worker pool
	agg := metrics.NewAggregator(metrics.RankingFromName(s.cfg.ResultRanking, s.log), s.log)
	settings := s.cfg.Settings()
	pool := orchestrator.New(orchestrator.Options{
		History:      store,
		Generator:    gen,
		Aggregator:   agg,
		Settings:     settings,
		Threads:      s.cfg.Threads,
		Optimization: s.cfg.OptimizationMode,
		SweepID:      s.sweepID,
		Metrics:      s.metrics,
		Progress:     s.progress,
		Logger:       s.log,
		Confirm:      s.confirm,
	})
	result, err := pool.Run(ctx)
	if err != nil {
		return nil, err
	}

	// 4. Reports
	best := agg.Run()
	report := reporting.NewGenerator(settings, s.sweepID).WithClock(s.clock).Generate(agg)
	files, err := reporting.WriteFiles(s.cfg.ReportDir, report, s.cfg.ShowTradeDetails)
	if err != nil {
		return nil, err
	}
	log.Info().Strs("files", files).Msg("Report files written")

	// 5. Side outputs
	if settings.Plot && best != nil && len(agg.Succeeded()) == 1 {
		w := reporting.PlotWriter{
			DataFile:     s.cfg.PlotDataFile,
			SettingsFile: s.cfg.PlotSettingsFile,
			Currency:     settings.CounterCurrency,
		}
		if err := w.Write(best.Plot); err != nil {
			return nil, err
		}
		files = append(files, w.DataFile, w.SettingsFile)
	}

	if s.reports != nil {
		sweep := &storage.Sweep{
			ID:        s.sweepID,
			Strategy:  s.cfg.Strategy,
			Pair:      s.cfg.Pair,
			Period:    s.cfg.Period,
			Tasks:     result.Tasks,
			StartedAt: startedAt,
		}
		if err := s.persist(ctx, sweep, append(agg.Succeeded(), agg.Failed()...)); err != nil {
			return nil, err
		}
		log.Info().Int("reports", result.Tasks).Msg("Reports persisted")
	}

	return &Outcome{
		SweepID: s.sweepID,
		Result:  result,
		Report:  report,
		Files:   files,
	}, nil
}

// Verify replays every persisted report of a sweep on the configured history.
func (s *Sweep) Verify(ctx context.Context, sweepID string) (*verification.VerificationReport, error) {
	if s.reports == nil {
		return nil, ErrNoReportStore
	}
	store, err := s.loadHistory(ctx)
	if err != nil {
		return nil, err
	}

	v := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
		Reports:  s.reports,
		History:  store,
		Settings: s.cfg.Settings(),
		Ranking:  metrics.RankingFromName(s.cfg.ResultRanking, s.log),
		Logger:   s.log,
	})
	return v.VerifyAll(ctx, sweepID)
}

func (s *Sweep) loadHistory(ctx context.Context) (*history.Store, error) {
	store := history.NewStore(s.log)

	var err error
	switch s.cfg.HistoryFormat {
	case config.HistoryCSV:
		_, err = store.Load(s.cfg.History, s.cfg.MaxGapSize)
	case config.HistoryParquet:
		var bars []domain.Bar
		bars, err = history.ReadParquet(s.cfg.History)
		if err == nil {
			_, err = store.LoadBars(bars, s.cfg.MaxGapSize)
		}
	case config.HistoryClickhouse:
		if s.bars == nil {
			return nil, ErrNoBarStore
		}
		start := time.Now()
		var bars []domain.Bar
		bars, err = s.bars.GetAll(ctx, s.cfg.Pair)
		s.metrics.RecordDBQuery("clickhouse", "bars_get_all", time.Since(start).Seconds(), err)
		if err == nil {
			_, err = store.LoadBars(bars, s.cfg.MaxGapSize)
		}
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrHistoryFormat, s.cfg.HistoryFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	stats := store.Stats()
	s.metrics.RecordHistory(store.Len(), stats.FixedGaps, stats.RealGaps)
	return store, nil
}

func (s *Sweep) persist(ctx context.Context, sweep *storage.Sweep, reports []*domain.Report) error {
	start := time.Now()
	err := s.reports.InsertSweep(ctx, sweep)
	s.metrics.RecordDBQuery("postgres", "insert_sweep", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("persist sweep: %w", err)
	}

	for _, r := range reports {
		start := time.Now()
		err := s.reports.InsertReport(ctx, sweep.ID, r)
		s.metrics.RecordDBQuery("postgres", "insert_report", time.Since(start).Seconds(), err)
		if err != nil {
			return fmt.Errorf("persist report %s: %w", r.ID, err)
		}
	}
	return nil
}
