package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fx-backtester/internal/config"
	"fx-backtester/internal/domain"
	"fx-backtester/internal/metrics"
)

// Output file names inside the report directory.
const (
	MarkdownFile = "report.md"
	CSVFile      = "ranking.csv"
	TradesFile   = "trades.md"
)

// Generator produces the sweep report from a ranked aggregator.
type Generator struct {
	settings config.Settings
	sweepID  string
	now      func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(settings config.Settings, sweepID string) *Generator {
	return &Generator{
		settings: settings,
		sweepID:  sweepID,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report. agg.Run must have been called.
func (g *Generator) Generate(agg *metrics.Aggregator) *Report {
	r := &Report{
		GeneratedAt:     g.now(),
		SweepID:         g.sweepID,
		Strategy:        g.settings.Strategy,
		Pair:            g.settings.Pair,
		CounterCurrency: g.settings.CounterCurrency,
		Digits:          g.settings.Digits,
		Ranking:         agg.Ranking().Name(),
		FailedCount:     len(agg.Failed()),
	}

	for _, rep := range agg.Succeeded() {
		r.Ranked = append(r.Ranked, rankedRow(rep, g.settings.Deposit))
	}
	if best := agg.Best(); best != nil {
		r.Best = best
		r.BestSummary = metrics.ComputeSummary(best, g.settings.Deposit)
	}
	return r
}

func rankedRow(rep *domain.Report, deposit float64) RankedRow {
	s := metrics.ComputeSummary(rep, deposit)
	return RankedRow{
		ReportID: rep.ID,
		TaskID:   rep.Assignment.ID,
		Params:   rep.Assignment.FloatParamsString(),
		Score:    rep.Score,
		Trades:   len(rep.Trades),
		Profit:   s.Profit,
	}
}

// WriteFiles writes the markdown summary and the ranking CSV into dir.
// When tradeDetails is set and exactly one report succeeded, its trades are
// written too. It returns the written paths.
func WriteFiles(dir string, r *Report, tradeDetails bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	files := map[string]string{
		MarkdownFile: RenderMarkdown(r),
		CSVFile:      RenderCSV(r.Ranked),
	}
	if tradeDetails && len(r.Ranked) == 1 && r.Best != nil {
		files[TradesFile] = RenderTradeDetails(r.Best, r.Digits, r.CounterCurrency)
	}

	var written []string
	for _, name := range []string{MarkdownFile, CSVFile, TradesFile} {
		content, ok := files[name]
		if !ok {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, path)
	}
	return written, nil
}
