package metrics

import (
	"github.com/rs/zerolog"

	"fx-backtester/internal/domain"
)

// RankingProfit is the default ranking name.
const RankingProfit = "profit"

// Ranking scores a successful report. Higher is better.
type Ranking interface {
	Name() string
	Rank(r *domain.Report) float64
}

// ProfitRanking scores a report by the sum of its quote currency profit.
type ProfitRanking struct{}

func (ProfitRanking) Name() string { return RankingProfit }

func (ProfitRanking) Rank(r *domain.Report) float64 {
	profit := 0.0
	for _, t := range r.Trades {
		profit += t.ProfitQuote
	}
	return profit
}

// RankingFromName returns the ranking registered under name, falling back to
// profit with a warning.
func RankingFromName(name string, logger zerolog.Logger) Ranking {
	switch name {
	case RankingProfit:
		return ProfitRanking{}
	default:
		logger.Warn().Str("ranking", name).Str("fallback", RankingProfit).Msg("Result ranking not found")
		return ProfitRanking{}
	}
}
