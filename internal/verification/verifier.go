// Package verification replays persisted simulation reports and checks that
// the engine reproduces them exactly.
package verification

import (
	"context"
	"fmt"
	"math"

	"fx-backtester/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name, trades as "Trades[i].Field"
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single report.
type VerificationResult struct {
	ReportID      string
	TaskID        int
	Match         bool // true if all fields match
	Divergences   []FieldDivergence
	StoredScore   float64
	ReplayedScore float64
}

// VerificationReport contains results for a whole sweep.
type VerificationReport struct {
	SweepID          string
	TotalReports     int
	MatchedReports   int
	DivergentReports int
	Results          []VerificationResult
}

// Verifier replays stored reports.
type Verifier interface {
	// VerifyReport re-runs the simulation of one stored report with the same
	// assignment and compares the outcome field by field.
	VerifyReport(ctx context.Context, sweepID, reportID string) (*VerificationResult, error)

	// VerifyAll verifies every report of a sweep.
	VerifyAll(ctx context.Context, sweepID string) (*VerificationReport, error)
}

// CompareReports compares two reports and returns divergences.
// Score is left to the caller since it depends on the ranking.
func CompareReports(stored, replayed *domain.Report) []FieldDivergence {
	var divergences []FieldDivergence

	if stored.ID != replayed.ID {
		divergences = append(divergences, FieldDivergence{Field: "ID", Expected: stored.ID, Actual: replayed.ID})
	}
	if stored.Failed != replayed.Failed {
		divergences = append(divergences, FieldDivergence{Field: "Failed", Expected: stored.Failed, Actual: replayed.Failed})
	}
	if stored.Error != replayed.Error {
		divergences = append(divergences, FieldDivergence{Field: "Error", Expected: stored.Error, Actual: replayed.Error})
	}
	if len(stored.Trades) != len(replayed.Trades) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Trades",
			Expected: len(stored.Trades),
			Actual:   len(replayed.Trades),
		})
		return divergences
	}

	for i := range stored.Trades {
		for _, d := range CompareTrades(stored.Trades[i], replayed.Trades[i]) {
			d.Field = fmt.Sprintf("Trades[%d].%s", i, d.Field)
			divergences = append(divergences, d)
		}
	}
	return divergences
}

// CompareTrades compares two trades. Prices and amounts use FloatTolerance,
// everything else must match exactly.
func CompareTrades(stored, replayed domain.Trade) []FieldDivergence {
	var divergences []FieldDivergence

	if stored.Direction != replayed.Direction {
		divergences = append(divergences, FieldDivergence{
			Field:    "Direction",
			Expected: stored.Direction.String(),
			Actual:   replayed.Direction.String(),
		})
	}
	if stored.OpenTime != replayed.OpenTime {
		divergences = append(divergences, FieldDivergence{Field: "OpenTime", Expected: stored.OpenTime, Actual: replayed.OpenTime})
	}
	if stored.CloseTime != replayed.CloseTime {
		divergences = append(divergences, FieldDivergence{Field: "CloseTime", Expected: stored.CloseTime, Actual: replayed.CloseTime})
	}
	if stored.Reason != replayed.Reason {
		divergences = append(divergences, FieldDivergence{Field: "Reason", Expected: stored.Reason, Actual: replayed.Reason})
	}

	floats := []struct {
		field            string
		expected, actual float64
	}{
		{"Open", stored.Open, replayed.Open},
		{"Close", stored.Close, replayed.Close},
		{"Lots", stored.Lots, replayed.Lots},
		{"SL", stored.SL, replayed.SL},
		{"TP", stored.TP, replayed.TP},
		{"Pips", stored.Pips, replayed.Pips},
		{"ProfitQuote", stored.ProfitQuote, replayed.ProfitQuote},
		{"ProfitBase", stored.ProfitBase, replayed.ProfitBase},
	}
	for _, f := range floats {
		if !floatEquals(f.expected, f.actual) {
			divergences = append(divergences, FieldDivergence{Field: f.field, Expected: f.expected, Actual: f.actual})
		}
	}

	return divergences
}

// floatEquals compares two floats with tolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
