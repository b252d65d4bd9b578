package reporting

import (
	"time"

	"fx-backtester/internal/domain"
	"fx-backtester/internal/metrics"
)

// Report is the result of one sweep.
type Report struct {
	// Metadata
	GeneratedAt     time.Time
	SweepID         string
	Strategy        string
	Pair            string
	CounterCurrency string
	Digits          int
	Ranking         string

	// Best is nil when no report succeeded.
	Best        *domain.Report
	BestSummary metrics.Summary

	// Ranked is sorted by ascending score, best last.
	Ranked      []RankedRow
	FailedCount int
}

// RankedRow is one successful report in the ranking.
type RankedRow struct {
	ReportID string
	TaskID   int
	Params   string
	Score    float64
	Trades   int
	Profit   float64
}
