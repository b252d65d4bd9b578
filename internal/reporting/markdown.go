package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fx-backtester/internal/domain"
	"fx-backtester/internal/metrics"
)

// money formats a currency amount with two decimals.
func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// ratio formats a percentage, or n/a when there is nothing to divide.
func ratio(c metrics.TradeCounts, v float64) string {
	if c.NoTrades {
		return "n/a"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.SweepID != "" {
		sb.WriteString(fmt.Sprintf("Sweep: %s\n\n", r.SweepID))
	}
	sb.WriteString(fmt.Sprintf("Strategy: %s | Pair: %s | Ranking: %s\n\n", r.Strategy, r.Pair, r.Ranking))
	sb.WriteString(fmt.Sprintf("Successful reports: %d | Failed reports: %d\n\n", len(r.Ranked), r.FailedCount))

	// Best result
	sb.WriteString("## Best Result\n\n")
	if r.Best == nil {
		sb.WriteString("No results to show.\n\n")
	} else {
		writeParams(&sb, r.Best.Assignment)
		writeSummary(&sb, r.BestSummary, r.CounterCurrency)
	}

	// Ranking
	if len(r.Ranked) > 1 {
		sb.WriteString("## Ranking\n\n")
		sb.WriteString("| # | Task | Parameters | Trades | Score |\n")
		sb.WriteString("|---|------|------------|--------|-------|\n")
		for i := len(r.Ranked) - 1; i >= 0; i-- {
			row := r.Ranked[i]
			sb.WriteString(fmt.Sprintf("| %d | %d | %s | %d | %s |\n",
				len(r.Ranked)-i, row.TaskID, row.Params, row.Trades, money(row.Score)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeParams(sb *strings.Builder, a domain.Assignment) {
	sb.WriteString("### Parameters\n\n")
	floats := a.FloatNames()
	strs := a.StringNames()
	if len(floats) == 0 && len(strs) == 0 {
		sb.WriteString("No parameters.\n\n")
		return
	}
	sb.WriteString("| Name | Value |\n")
	sb.WriteString("|------|-------|\n")
	for _, name := range floats {
		sb.WriteString(fmt.Sprintf("| %s | %.2f |\n", name, a.Floats[name]))
	}
	for _, name := range strs {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", name, a.Strings[name]))
	}
	sb.WriteString("\n")
}

func writeSummary(sb *strings.Builder, s metrics.Summary, currency string) {
	sb.WriteString("### Results\n\n")
	sb.WriteString(fmt.Sprintf("- Balance: %s %s\n", currency, money(s.Balance)))
	sb.WriteString(fmt.Sprintf("- Profit: %s %s\n", currency, money(s.Profit)))
	sb.WriteString(fmt.Sprintf("- Pips: %.1f\n", s.TotalPips))
	sb.WriteString(fmt.Sprintf("- Max drawdown: %s %s\n", currency, money(s.MaxDrawdown)))
	sb.WriteString(fmt.Sprintf("- Max consecutive losses: %d\n\n", s.MaxConsecutiveLosses))

	sb.WriteString("| Trades | Total | P | P% | L&E | L&E% |\n")
	sb.WriteString("|--------|-------|---|----|-----|------|\n")
	for _, row := range []struct {
		name string
		c    metrics.TradeCounts
	}{
		{"All", s.All},
		{"Buy", s.Buy},
		{"Sell", s.Sell},
	} {
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s | %d | %s |\n",
			row.name, row.c.Total, row.c.Profit, ratio(row.c, row.c.ProfitRatio), row.c.Loss, ratio(row.c, row.c.LossRatio)))
	}
	sb.WriteString("\n")

	if s.All.Total > 0 {
		sb.WriteString(fmt.Sprintf("Per trade: mean %s, stddev %s, best %s, worst %s\n\n",
			money(s.MeanProfit), money(s.StddevProfit), money(s.BestTrade), money(s.WorstTrade)))
	}
}
