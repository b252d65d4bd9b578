// Package pricing converts between prices, pips and price increments for a
// currency pair quoted with a fixed number of digits.
package pricing

import (
	"math"
	"strconv"
)

// DefaultDigits is used when an unsupported digits value is requested.
const DefaultDigits = 5

// snapEpsilon absorbs float noise such as 119966.00000000002 before rounding.
const snapEpsilon = 1e-7

// Precision holds the per-digits constants of a quote.
type Precision struct {
	digits   int
	unit     float64
	ratio    float64
	pipPrice float64
	scale    float64
}

// Supported reports whether digits is between 2 and 5.
func Supported(digits int) bool {
	return digits >= 2 && digits <= 5
}

// New returns the precision for digits. Unsupported values fall back to DefaultDigits.
func New(digits int) Precision {
	if !Supported(digits) {
		digits = DefaultDigits
	}

	p := Precision{
		digits: digits,
		scale:  math.Pow10(digits),
	}
	p.unit = 1 / p.scale

	switch digits {
	case 2, 3:
		p.ratio = 100
		p.pipPrice = 0.01
	default:
		p.ratio = 10000
		p.pipPrice = 0.0001
	}
	return p
}

// Digits returns the number of decimals of a quote.
func (p Precision) Digits() int { return p.digits }

// Unit returns the minimum price increment (10^-digits).
func (p Precision) Unit() float64 { return p.unit }

// Ratio returns the number of pips per 1.0 of price.
func (p Precision) Ratio() float64 { return p.ratio }

// PipPrice returns the price value of one pip.
func (p Precision) PipPrice() float64 { return p.pipPrice }

// PipsToOffset converts a distance in pips to a price offset.
func (p Precision) PipsToOffset(pips float64) float64 {
	return pips / p.ratio
}

// OffsetToPips converts a price offset to pips.
func (p Precision) OffsetToPips(offset float64) float64 {
	return offset * p.ratio
}

// Ceil rounds price up to the quote precision.
func (p Precision) Ceil(price float64) float64 {
	return math.Ceil(p.snap(price)) / p.scale
}

// Floor rounds price down to the quote precision.
func (p Precision) Floor(price float64) float64 {
	return math.Floor(p.snap(price)) / p.scale
}

// Round rounds price half up to the quote precision.
func (p Precision) Round(price float64) float64 {
	return math.Floor(p.snap(price)+0.5) / p.scale
}

// Format prints price with the quote's number of decimals.
func (p Precision) Format(price float64) string {
	return strconv.FormatFloat(price, 'f', p.digits, 64)
}

func (p Precision) snap(price float64) float64 {
	scaled := price * p.scale
	if r := math.Round(scaled); math.Abs(scaled-r) < snapEpsilon {
		return r
	}
	return scaled
}
