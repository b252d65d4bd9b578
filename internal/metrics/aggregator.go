// Package metrics collects simulation reports, ranks them and computes
// per-report summaries.
package metrics

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"fx-backtester/internal/domain"
)

// Aggregator collects reports from the worker pool.
// Add is safe for concurrent use; Run must be called once all workers are done.
type Aggregator struct {
	ranking Ranking
	log     zerolog.Logger

	mu        sync.Mutex
	succeeded []*domain.Report
	failed    []*domain.Report
}

// NewAggregator creates an aggregator scoring reports with ranking.
func NewAggregator(ranking Ranking, logger zerolog.Logger) *Aggregator {
	if ranking == nil {
		ranking = ProfitRanking{}
	}
	a := &Aggregator{
		ranking: ranking,
		log:     logger.With().Str("component", "report_aggregator").Logger(),
	}
	a.log.Info().Str("ranking", ranking.Name()).Msg("Using result ranking")
	return a
}

// Ranking returns the ranking in use.
func (a *Aggregator) Ranking() Ranking {
	return a.ranking
}

// Add stores a deep copy of r. The caller keeps ownership of r.
func (a *Aggregator) Add(r *domain.Report) {
	c := r.Clone()
	a.mu.Lock()
	defer a.mu.Unlock()
	if c.Failed {
		a.failed = append(a.failed, c)
	} else {
		a.succeeded = append(a.succeeded, c)
	}
}

// Run scores the successful reports and sorts them by ascending score.
// It returns the best report, or nil when no report succeeded.
func (a *Aggregator) Run() *domain.Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.log.Info().Int("count", len(a.succeeded)).Msg("Successful reports collected")
	ev := a.log.Info()
	if len(a.failed) > 0 {
		ev = a.log.Warn()
	}
	ev.Int("count", len(a.failed)).Msg("Reports marked as failed")

	for _, r := range a.succeeded {
		r.Score = a.ranking.Rank(r)
	}
	sort.SliceStable(a.succeeded, func(i, j int) bool {
		return a.succeeded[i].Score < a.succeeded[j].Score
	})

	if len(a.succeeded) == 0 {
		a.log.Warn().Msg("No results to show")
		return nil
	}
	if len(a.succeeded) > 1 {
		for _, r := range a.succeeded {
			a.log.Info().Str("params", r.Assignment.FloatParamsString()).Float64("score", r.Score).Msg("Sorted report")
		}
	}
	return a.succeeded[len(a.succeeded)-1]
}

// Succeeded returns the successful reports, sorted after Run.
func (a *Aggregator) Succeeded() []*domain.Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*domain.Report, len(a.succeeded))
	copy(out, a.succeeded)
	return out
}

// Failed returns the failed reports in arrival order.
func (a *Aggregator) Failed() []*domain.Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*domain.Report, len(a.failed))
	copy(out, a.failed)
	return out
}

// Best returns the highest scored report after Run, or nil.
func (a *Aggregator) Best() *domain.Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.succeeded) == 0 {
		return nil
	}
	return a.succeeded[len(a.succeeded)-1]
}
