// Package ticks synthesizes a deterministic intrabar tick stream from
// 1-minute history bars.
package ticks

import (
	"fx-backtester/internal/domain"
	"fx-backtester/internal/pricing"
)

// Result classifies a call to Next.
type Result int

// Tick results
const (
	NormalTick Result = iota
	NewBarTick
	Interruption
	NoMoreTicks
)

func (r Result) String() string {
	switch r {
	case NormalTick:
		return "normal"
	case NewBarTick:
		return "new bar"
	case Interruption:
		return "interruption"
	case NoMoreTicks:
		return "no more ticks"
	default:
		return "invalid result"
	}
}

// Tick is one synthesized price update.
// Bar is the in-progress bar of the configured period including this tick.
type Tick struct {
	Bar   domain.Bar
	Price float64
	Ask   float64
	Bid   float64
}

// Source serves 1-minute bars. *history.Store implements it.
type Source interface {
	FetchBar(pos, period int) (domain.Bar, domain.FetchResult)
	FirstBarPosOfPeriod(period int) int
}

// Options configures a Synthesizer.
type Options struct {
	Period     int     // minutes per in-progress bar
	Spread     float64 // pips
	FewerTicks bool
}

// Synthesizer turns each source bar into a queue of prices and pops them one
// by one, building bars of Period minutes as it goes.
type Synthesizer struct {
	src        Source
	precision  pricing.Precision
	period     int
	spread     float64 // price offset
	fewerTicks bool

	historyPos int
	barPos     int
	current    domain.Bar
	queue      []float64
	head       int
}

// New creates a synthesizer positioned on the first bar aligned to the period.
func New(src Source, precision pricing.Precision, opts Options) *Synthesizer {
	period := opts.Period
	if period < 1 {
		period = 1
	}
	return &Synthesizer{
		src:        src,
		precision:  precision,
		period:     period,
		spread:     precision.PipsToOffset(opts.Spread),
		fewerTicks: opts.FewerTicks,
		historyPos: src.FirstBarPosOfPeriod(period),
	}
}

// Next returns the next tick.
// Interruption means the history has a hole at the current position; the
// caller must treat prices as discontinuous. NoMoreTicks is final.
func (s *Synthesizer) Next() (Tick, Result) {
	if s.head >= len(s.queue) {
		minute, res := s.src.FetchBar(s.historyPos, 1)
		switch res {
		case domain.FetchError:
			return Tick{}, NoMoreTicks
		case domain.FetchGap:
			s.nextBar()
			return Tick{}, Interruption
		}

		s.current.Time = minute.Time
		s.queue = s.queue[:0]
		s.head = 0
		if s.fewerTicks {
			s.queue = appendFewerPath(s.queue, minute)
		} else {
			s.queue = appendFullPath(s.queue, minute, s.precision)
		}
	}

	price := s.queue[s.head]
	s.head++

	result := NormalTick
	if s.current.Valid {
		if price > s.current.High {
			s.current.High = price
		}
		if price < s.current.Low {
			s.current.Low = price
		}
		s.current.Close = price
	} else {
		s.current = domain.Bar{
			Open:  price,
			High:  price,
			Low:   price,
			Close: price,
			Time:  s.current.Time,
			Valid: true,
		}
		result = NewBarTick
	}

	tick := Tick{
		Bar:   s.current,
		Price: price,
		Ask:   price + s.spread,
		Bid:   price,
	}
	s.current.Time++

	if s.head >= len(s.queue) {
		s.nextBar()
	}
	return tick, result
}

// nextBar advances to the next source bar and closes the in-progress bar
// once it spans the full period.
func (s *Synthesizer) nextBar() {
	s.historyPos++
	s.barPos++
	if s.barPos >= s.period {
		s.barPos = 0
		s.current.Valid = false
	}
}
