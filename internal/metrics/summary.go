package metrics

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"fx-backtester/internal/domain"
)

// TradeCounts splits trades into profitable and loss-or-even ones.
// Ratios are percentages; they are 0 with NoTrades set when Total is 0.
type TradeCounts struct {
	Total       int
	Profit      int
	Loss        int
	ProfitRatio float64
	LossRatio   float64
	NoTrades    bool
}

func (c *TradeCounts) add(profit float64) {
	c.Total++
	if profit > 0 {
		c.Profit++
	} else {
		c.Loss++
	}
}

func (c *TradeCounts) finish() {
	if c.Total == 0 {
		c.NoTrades = true
		return
	}
	c.ProfitRatio = float64(c.Profit) / float64(c.Total) * 100
	c.LossRatio = float64(c.Loss) / float64(c.Total) * 100
}

// Summary is the result block shown for a report.
type Summary struct {
	Deposit float64
	Balance float64
	Profit  float64

	All  TradeCounts
	Buy  TradeCounts
	Sell TradeCounts

	// Per-trade quote profit statistics
	MeanProfit           float64
	StddevProfit         float64
	BestTrade            float64
	WorstTrade           float64
	TotalPips            float64
	MaxDrawdown          float64
	MaxConsecutiveLosses int
}

// ComputeSummary computes the result block of r starting from deposit.
// Trades are taken in close order.
func ComputeSummary(r *domain.Report, deposit float64) Summary {
	s := Summary{Deposit: deposit, Balance: deposit}

	profits := make([]float64, 0, len(r.Trades))
	for _, t := range r.Trades {
		s.Balance += t.ProfitQuote
		s.TotalPips += t.Pips
		profits = append(profits, t.ProfitQuote)

		s.All.add(t.ProfitQuote)
		if t.Direction == domain.StatusBuy {
			s.Buy.add(t.ProfitQuote)
		} else {
			s.Sell.add(t.ProfitQuote)
		}
	}
	s.Profit = s.Balance - deposit
	s.All.finish()
	s.Buy.finish()
	s.Sell.finish()

	if len(profits) > 0 {
		s.MeanProfit = stat.Mean(profits, nil)
		s.BestTrade = floats.Max(profits)
		s.WorstTrade = floats.Min(profits)
	}
	if len(profits) > 1 {
		s.StddevProfit = stat.StdDev(profits, nil)
	}
	s.MaxDrawdown = computeMaxDrawdown(profits)
	s.MaxConsecutiveLosses = computeMaxConsecutiveLosses(profits)
	return s
}

// computeMaxDrawdown calculates the worst peak-to-trough of the cumulative profit.
func computeMaxDrawdown(profits []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, p := range profits {
		cumulative += p
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds the longest streak of profit <= 0.
func computeMaxConsecutiveLosses(profits []float64) int {
	maxStreak := 0
	streak := 0
	for _, p := range profits {
		if p > 0 {
			streak = 0
			continue
		}
		streak++
		if streak > maxStreak {
			maxStreak = streak
		}
	}
	return maxStreak
}
