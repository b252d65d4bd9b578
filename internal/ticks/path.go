package ticks

import (
	"math"

	"fx-backtester/internal/domain"
	"fx-backtester/internal/pricing"
)

// FullPath decomposes a bar into the ordered intrabar prices visited from
// open to close. The path depends only on the bar and the precision.
func FullPath(b domain.Bar, p pricing.Precision) []float64 {
	return appendFullPath(nil, b, p)
}

// FewerPath is the reduced path: open, at most two extremes, close.
func FewerPath(b domain.Bar) []float64 {
	return appendFewerPath(nil, b)
}

func appendFullPath(path []float64, b domain.Bar, p pricing.Precision) []float64 {
	o, h, l, c := b.Open, b.High, b.Low, b.Close
	path = append(path, o)

	// Rounded points stay inside the bar even when its prices are off the
	// digits grid.
	ceil := func(v float64) float64 { return clamp(p.Ceil(v), l, h) }
	floor := func(v float64) float64 { return clamp(p.Floor(v), l, h) }

	switch {
	case o == c:
		return appendFlat(path, o, h, l)

	case l == c:
		if h == o {
			path = append(path, floor(c+0.5*(o-c)))
		} else {
			path = append(path, h)
		}

	case h == c:
		if l == o {
			path = append(path, ceil(o+0.5*(c-o)))
		} else {
			path = append(path, l)
		}

	case o == l:
		path = append(path, h)

	case o == h:
		path = append(path, l)

	default:
		unit := 0.0
		if math.Abs(c-o) > p.Unit() {
			unit = p.Unit()
		}

		if c > o {
			path = append(path,
				ceil(l+0.25*(o-l)),
				ceil(l+0.5*(o-l)),
				l,
				ceil(l+0.33*(h-l)),
				ceil(l+0.33*(h-l)-unit),
				ceil(l+0.66*(h-l)),
				ceil(l+0.66*(h-l)-unit),
				h,
				ceil(h-0.75*(h-c)),
				ceil(h-0.5*(h-c)),
			)
		} else {
			path = append(path,
				floor(h-0.25*(h-o)),
				floor(h-0.5*(h-o)),
				h,
				floor(l+0.66*(h-l)),
				floor(l+0.66*(h-l)+unit),
				floor(l+0.33*(h-l)),
				floor(l+0.33*(h-l)+unit),
				l,
				floor(l+0.75*(c-l)),
				floor(l+0.5*(c-l)),
			)
		}
	}

	return append(path, c)
}

func appendFewerPath(path []float64, b domain.Bar) []float64 {
	o, h, l, c := b.Open, b.High, b.Low, b.Close
	path = append(path, o)

	switch {
	case o == c:
		return appendFlat(path, o, h, l)
	case l == c && h != o:
		path = append(path, h)
	case h == c && l != o:
		path = append(path, l)
	case o == l:
		path = append(path, h)
	case o == h:
		path = append(path, l)
	case c > o:
		path = append(path, l, h)
	case c < o:
		path = append(path, h, l)
	}

	return append(path, c)
}

// appendFlat handles open == close. The close is the final pushed point
// except for a doji with no range, where the open alone is the path.
func appendFlat(path []float64, o, h, l float64) []float64 {
	switch {
	case h == l:
		return path
	case l == o:
		path = append(path, h)
	case h == o:
		path = append(path, l)
	default:
		path = append(path, l, h)
	}
	return append(path, o)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
