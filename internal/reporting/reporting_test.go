package reporting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-backtester/internal/config"
	"fx-backtester/internal/domain"
	"fx-backtester/internal/metrics"
)

var fixedTime = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

func testSettings() config.Settings {
	return config.Settings{
		Strategy:        "MaCross",
		Pair:            "EURUSD",
		BaseCurrency:    "EUR",
		CounterCurrency: "USD",
		Digits:          5,
		Deposit:         10000,
	}
}

func report(id int, fast float64, profits ...float64) *domain.Report {
	a := domain.NewAssignment()
	a.ID = id
	a.Floats["macFastMa"] = fast
	r := domain.NewReport("MaCross", a)
	r.ID = "rep" + string(rune('A'+id))
	for i, p := range profits {
		r.Trades = append(r.Trades, domain.Trade{
			Direction:   domain.StatusBuy,
			Open:        1.2,
			Close:       1.2 + p/10000,
			Lots:        0.01,
			SL:          1.199,
			TP:          1.201,
			OpenTime:    1704153600 + int64(i)*3600,
			CloseTime:   1704153600 + int64(i)*3600 + 600,
			Reason:      domain.CloseReasonTakeProfitTop,
			Pips:        p * 10,
			ProfitQuote: p,
			ProfitBase:  p / 1.2,
		})
	}
	return r
}

func rankedAggregator(reports ...*domain.Report) *metrics.Aggregator {
	agg := metrics.NewAggregator(metrics.ProfitRanking{}, zerolog.Nop())
	for _, r := range reports {
		agg.Add(r)
	}
	agg.Run()
	return agg
}

func TestGenerate(t *testing.T) {
	failed := report(3, 30)
	failed.Failed = true
	agg := rankedAggregator(report(1, 10, 1, -0.5), report(2, 20, 3), failed)

	r := NewGenerator(testSettings(), "sweep-1").WithClock(func() time.Time { return fixedTime }).Generate(agg)

	assert.Equal(t, fixedTime, r.GeneratedAt)
	assert.Equal(t, "profit", r.Ranking)
	assert.Equal(t, 1, r.FailedCount)
	require.Len(t, r.Ranked, 2)
	assert.Equal(t, 1, r.Ranked[0].TaskID)
	assert.Equal(t, 2, r.Ranked[1].TaskID)
	assert.InDelta(t, 0.5, r.Ranked[0].Profit, 1e-9)

	require.NotNil(t, r.Best)
	assert.Equal(t, 2, r.Best.Assignment.ID)
	assert.InDelta(t, 10003.0, r.BestSummary.Balance, 1e-9)
}

func TestRenderMarkdown(t *testing.T) {
	agg := rankedAggregator(report(1, 10, 1, -0.5), report(2, 20, 3))
	r := NewGenerator(testSettings(), "sweep-1").WithClock(func() time.Time { return fixedTime }).Generate(agg)

	md := RenderMarkdown(r)

	assert.Contains(t, md, "# Backtest Report")
	assert.Contains(t, md, "Generated: 2024-01-02T12:00:00Z")
	assert.Contains(t, md, "Sweep: sweep-1")
	assert.Contains(t, md, "| macFastMa | 20.00 |")
	assert.Contains(t, md, "- Balance: USD 10003.00")
	assert.Contains(t, md, "- Profit: USD 3.00")
	assert.Contains(t, md, "| All | 1 | 1 | 100.00 | 0 | 0.00 |")
	assert.Contains(t, md, "| Sell | 0 | 0 | n/a | 0 | n/a |")
	assert.Contains(t, md, "## Ranking")

	// best first in the ranking table
	first := strings.Index(md, "| 1 | 2 |")
	second := strings.Index(md, "| 2 | 1 |")
	assert.True(t, first > 0 && second > first)
}

func TestRenderMarkdown_NoResults(t *testing.T) {
	r := NewGenerator(testSettings(), "").Generate(rankedAggregator())

	md := RenderMarkdown(r)
	assert.Contains(t, md, "No results to show.")
	assert.NotContains(t, md, "## Ranking")
}

func TestRenderCSV(t *testing.T) {
	csv := RenderCSV([]RankedRow{
		{ReportID: "abc", TaskID: 4, Params: "Parameters 4: x 1.00", Score: 1.5, Trades: 2, Profit: 1.5},
	})

	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "report_id,task_id,params,score,trades,profit", lines[0])
	assert.Equal(t, `abc,4,"Parameters 4: x 1.00",1.500000,2,1.50`, lines[1])
}

func TestRenderTradeDetails(t *testing.T) {
	out := RenderTradeDetails(report(1, 10, 2.5), 5, "USD")

	assert.Contains(t, out, "Profit USD")
	assert.Contains(t, out, "| 1 | buy | 2024-01-02 00:00 | 2024-01-02 00:10 | 1.20000 |")
	assert.Contains(t, out, "| 0.01 | 1.19900 | 1.20100 | 25.0 | 2.08 | 2.50 | top TP hit |")

	empty := RenderTradeDetails(report(1, 10), 5, "USD")
	assert.Contains(t, empty, "No trades to show.")
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")

	single := NewGenerator(testSettings(), "").Generate(rankedAggregator(report(1, 10, 1)))
	paths, err := WriteFiles(dir, single, true)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}

	many := NewGenerator(testSettings(), "").Generate(rankedAggregator(report(1, 10, 1), report(2, 20, 2)))
	paths, err = WriteFiles(dir, many, true)
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestPlotWriter(t *testing.T) {
	dir := t.TempDir()
	w := PlotWriter{
		DataFile:     filepath.Join(dir, "backtest.dat"),
		SettingsFile: filepath.Join(dir, "backtest.plot"),
		Currency:     "USD",
	}

	err := w.Write([]domain.PlotSample{
		{Time: 1704153600, Balance: 10000, Equity: 10000},
		{Time: 1704153660, Balance: 10000, Equity: 10001.5},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(w.DataFile)
	require.NoError(t, err)
	assert.Equal(t, "1704153600\t10000\t10000\n1704153660\t10000\t10001.5\n", string(data))

	settings, err := os.ReadFile(w.SettingsFile)
	require.NoError(t, err)
	assert.Contains(t, string(settings), "set ylabel \"USD\"")
	assert.Contains(t, string(settings), "using 1:3 title \"Equity\" with lines")
	assert.Contains(t, string(settings), "\"\" using 1:2 title \"Balance\" with lines")
	assert.Contains(t, string(settings), "set timefmt \"%s\"")
}
