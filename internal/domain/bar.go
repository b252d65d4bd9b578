package domain

// Bar is an open/high/low/close summary for one time span.
// Time is epoch seconds. An invalid bar marks a hole in the history and carries no prices.
type Bar struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
	Time  int64
	Valid bool
}

// Consistent reports whether all prices are positive and low <= open,close <= high.
func (b Bar) Consistent() bool {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return false
	}
	if b.High < b.Low {
		return false
	}
	return b.Low <= b.Open && b.Open <= b.High && b.Low <= b.Close && b.Close <= b.High
}

// FetchResult is the outcome of aggregating a span of bars.
type FetchResult int

// Fetch results
const (
	FetchOk FetchResult = iota
	FetchGap
	FetchError
)

func (r FetchResult) String() string {
	switch r {
	case FetchOk:
		return "ok"
	case FetchGap:
		return "gap"
	case FetchError:
		return "error"
	default:
		return "invalid fetch result"
	}
}
