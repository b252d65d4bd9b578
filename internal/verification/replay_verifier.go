package verification

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"fx-backtester/internal/config"
	"fx-backtester/internal/history"
	"fx-backtester/internal/metrics"
	"fx-backtester/internal/simulation"
	"fx-backtester/internal/storage"
	"fx-backtester/internal/strategy"
)

var (
	// ErrReportNotFound is returned when the report doesn't exist in the sweep.
	ErrReportNotFound = errors.New("report not found")

	// ErrNoHistory is returned when the verifier has no history to replay on.
	ErrNoHistory = errors.New("replay requires a loaded history")
)

// ReplayVerifier implements Verifier on top of a report store and the
// history the sweep ran on.
type ReplayVerifier struct {
	reports storage.ReportStore
	runner  *simulation.Runner
	ranking metrics.Ranking
	log     zerolog.Logger
	hasBars bool
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	Reports  storage.ReportStore
	History  *history.Store
	Settings config.Settings
	Ranking  metrics.Ranking // defaults to profit
	Logger   zerolog.Logger

	// NewStrategy instantiates strategies; defaults to strategy.New.
	NewStrategy func(name string, svc strategy.Services) (*strategy.Strategy, error)
}

// NewReplayVerifier creates a new ReplayVerifier.
// Replays run on a private clone of the history.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	ranking := opts.Ranking
	if ranking == nil {
		ranking = metrics.ProfitRanking{}
	}
	v := &ReplayVerifier{
		reports: opts.Reports,
		ranking: ranking,
		log:     opts.Logger.With().Str("component", "verification").Logger(),
	}
	if opts.History != nil && opts.History.Len() > 0 {
		v.hasBars = true
		v.runner = simulation.NewRunner(simulation.RunnerOptions{
			Source:      opts.History.Clone(),
			Settings:    opts.Settings,
			Logger:      opts.Logger,
			NewStrategy: opts.NewStrategy,
		})
	}
	return v
}

// Compile-time interface check.
var _ Verifier = (*ReplayVerifier)(nil)

// VerifyReport verifies a single report by replaying its assignment.
func (v *ReplayVerifier) VerifyReport(ctx context.Context, sweepID, reportID string) (*VerificationResult, error) {
	if !v.hasBars {
		return nil, ErrNoHistory
	}

	// 1. Load stored report
	stored, err := v.reports.GetReport(ctx, sweepID, reportID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}

	// 2. Replay simulation
	replayed := v.runner.Run(ctx, stored.Assignment)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	replayed.Score = v.ranking.Rank(replayed)

	// 3. Compare results
	divergences := CompareReports(stored, replayed)
	if !floatEquals(stored.Score, replayed.Score) {
		divergences = append(divergences, FieldDivergence{Field: "Score", Expected: stored.Score, Actual: replayed.Score})
	}

	return &VerificationResult{
		ReportID:      reportID,
		TaskID:        stored.Assignment.ID,
		Match:         len(divergences) == 0,
		Divergences:   divergences,
		StoredScore:   stored.Score,
		ReplayedScore: replayed.Score,
	}, nil
}

// VerifyAll verifies all stored reports of a sweep.
func (v *ReplayVerifier) VerifyAll(ctx context.Context, sweepID string) (*VerificationReport, error) {
	reports, err := v.reports.ListBySweep(ctx, sweepID)
	if err != nil {
		return nil, err
	}

	out := &VerificationReport{
		SweepID:      sweepID,
		TotalReports: len(reports),
		Results:      make([]VerificationResult, 0, len(reports)),
	}

	for _, r := range reports {
		result, err := v.VerifyReport(ctx, sweepID, r.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			// Record error as divergence
			out.Results = append(out.Results, VerificationResult{
				ReportID:    r.ID,
				TaskID:      r.Assignment.ID,
				StoredScore: r.Score,
				Divergences: []FieldDivergence{
					{Field: "Error", Expected: nil, Actual: err.Error()},
				},
			})
			out.DivergentReports++
			continue
		}

		out.Results = append(out.Results, *result)
		if result.Match {
			out.MatchedReports++
		} else {
			out.DivergentReports++
			v.log.Warn().
				Str("report_id", r.ID).
				Int("task", r.Assignment.ID).
				Int("divergences", len(result.Divergences)).
				Msg("Replay diverged from stored report")
		}
	}

	v.log.Info().
		Str("sweep_id", sweepID).
		Int("reports", out.TotalReports).
		Int("matched", out.MatchedReports).
		Int("divergent", out.DivergentReports).
		Msg("Replay verification finished")
	return out, nil
}
