package domain

// Trade is a closed position. It is appended to a Report when the position
// closes and never modified afterwards.
type Trade struct {
	Direction Status
	Open      float64
	Close     float64
	Lots      float64
	SL        float64 // stop loss standing at close time
	TP        float64 // take profit standing at close time
	OpenTime  int64   // epoch seconds
	CloseTime int64   // epoch seconds
	Reason    string

	// Outcome
	Pips        float64
	ProfitQuote float64 // profit in quote (counter) currency
	ProfitBase  float64 // ProfitQuote / Close
}

// Close reasons
const (
	CloseReasonTakeProfitTop    = "top TP hit"
	CloseReasonTakeProfitBottom = "bottom TP hit"
	CloseReasonStopLossTop      = "top SL hit"
	CloseReasonStopLossBottom   = "bottom SL hit"
	CloseReasonActor            = "actor order"
	CloseReasonInterrupt        = "interrupt/gap"
)
