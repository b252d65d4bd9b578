package strategy

import "fx-backtester/internal/domain"

// MaxBars is the number of bars kept in a signal's history.
const MaxBars = 2880

// BarHistory keeps the most recent MaxBars bars.
type BarHistory struct {
	bars []domain.Bar // oldest first
}

// Add appends a bar, dropping the oldest beyond MaxBars.
func (h *BarHistory) Add(b domain.Bar) {
	h.bars = append(h.bars, b)
	if len(h.bars) >= 2*MaxBars {
		n := copy(h.bars, h.bars[len(h.bars)-MaxBars:])
		h.bars = h.bars[:n]
	}
}

// Clear drops all bars.
func (h *BarHistory) Clear() {
	h.bars = h.bars[:0]
}

// Len returns the number of bars available, at most MaxBars.
func (h *BarHistory) Len() int {
	if len(h.bars) > MaxBars {
		return MaxBars
	}
	return len(h.bars)
}

// At returns the i-th most recent bar; At(0) is the newest.
func (h *BarHistory) At(i int) domain.Bar {
	return h.bars[len(h.bars)-1-i]
}

// Closes returns the closes of the n most recent bars, oldest first.
func (h *BarHistory) Closes(n int) []float64 {
	if n > h.Len() {
		n = h.Len()
	}
	out := make([]float64, n)
	start := len(h.bars) - n
	for i := range out {
		out[i] = h.bars[start+i].Close
	}
	return out
}
