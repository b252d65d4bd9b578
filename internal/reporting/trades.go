package reporting

import (
	"fmt"
	"strings"
	"time"

	"fx-backtester/internal/domain"
)

// RenderTradeDetails renders every trade of r as a Markdown table.
func RenderTradeDetails(r *domain.Report, digits int, currency string) string {
	var sb strings.Builder

	sb.WriteString("# Trades\n\n")
	if len(r.Trades) == 0 {
		sb.WriteString("No trades to show.\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("| # | Type | Opened | Closed | Open | Close | Lots | SL (at finish) | TP (at finish) | Pips | Profit base | Profit %s | Reason |\n", currency))
	sb.WriteString("|---|------|--------|--------|------|-------|------|----------------|----------------|------|-------------|--------|--------|\n")
	for i, t := range r.Trades {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %.*f | %.*f | %.2f | %.*f | %.*f | %.1f | %s | %s | %s |\n",
			i+1,
			t.Direction,
			formatTime(t.OpenTime),
			formatTime(t.CloseTime),
			digits, t.Open,
			digits, t.Close,
			t.Lots,
			digits, t.SL,
			digits, t.TP,
			t.Pips,
			money(t.ProfitBase),
			money(t.ProfitQuote),
			t.Reason,
		))
	}
	return sb.String()
}

func formatTime(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format("2006-01-02 15:04")
}
