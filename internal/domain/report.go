package domain

// Report is the outcome of simulating one Assignment.
type Report struct {
	ID         string // deterministic, see idhash.ComputeReportID
	Strategy   string
	Assignment Assignment
	Failed     bool
	Error      string
	Trades     []Trade
	Score      float64
	Plot       []PlotSample
}

// NewReport returns an empty successful report for an assignment.
func NewReport(strategy string, a Assignment) *Report {
	return &Report{
		Strategy:   strategy,
		Assignment: a.Clone(),
	}
}

// Clone returns a deep copy of the report.
func (r *Report) Clone() *Report {
	out := *r
	out.Assignment = r.Assignment.Clone()
	if r.Trades != nil {
		out.Trades = make([]Trade, len(r.Trades))
		copy(out.Trades, r.Trades)
	}
	if r.Plot != nil {
		out.Plot = make([]PlotSample, len(r.Plot))
		copy(out.Plot, r.Plot)
	}
	return &out
}

// PlotSample is one equity curve point.
type PlotSample struct {
	Time    int64 // epoch seconds
	Balance float64
	Equity  float64
}
