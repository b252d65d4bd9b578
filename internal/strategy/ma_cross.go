package strategy

import (
	"fx-backtester/internal/domain"
)

// MaCrossSignal enters when a fast moving average crosses a slow one.
// A fast average dropping below the slow one buys, rising above it sells.
type MaCrossSignal struct {
	SignalBase

	fast  *MovingAverage
	slow  *MovingAverage
	lots  float64
	sl    float64 // pips
	tp    float64 // pips
	debug bool
	svc   Services

	prevFast float64
	prevSlow float64
}

// NewMaCrossSignal reads macFastMa, macSlowMa, macLots, macSl, macTp and macDebug.
func NewMaCrossSignal(svc Services) *MaCrossSignal {
	fastPeriod := int(svc.Params.Float("macFastMa", 20))
	slowPeriod := int(svc.Params.Float("macSlowMa", 100))

	s := &MaCrossSignal{
		fast:     NewMovingAverage(svc, "fast", fastPeriod),
		slow:     NewMovingAverage(svc, "slow", slowPeriod),
		lots:     svc.Params.Float("macLots", 0.01),
		sl:       svc.Params.Float("macSl", 10),
		tp:       svc.Params.Float("macTp", 10),
		debug:    svc.Params.String("macDebug", "") == "debug",
		svc:      svc,
		prevFast: -1,
		prevSlow: -1,
	}
	s.SignalBase = NewSignalBase("MaCross", s.slow.Period(), false)
	return s
}

// Run checks for a crossover between the previous and the current bar.
func (s *MaCrossSignal) Run(_ domain.Bar, ask, bid float64, out *domain.Output) {
	s.fast.Run(&s.Bars)
	s.slow.Run(&s.Bars)

	if !s.fast.Valid() || !s.slow.Valid() {
		s.resetCross()
		return
	}

	fast, slow := s.fast.Value(), s.slow.Value()

	if s.prevFast >= 0 && s.prevSlow >= 0 {
		switch {
		case s.prevFast > s.prevSlow && fast < slow:
			out.Order = domain.OrderBuy
			out.Lots = s.lots
			out.SL = ask - s.svc.PipsToOffset(s.sl)
			out.TP = ask + s.svc.PipsToOffset(s.tp)
		case s.prevFast < s.prevSlow && fast > slow:
			out.Order = domain.OrderSell
			out.Lots = s.lots
			out.SL = bid + s.svc.PipsToOffset(s.sl)
			out.TP = bid - s.svc.PipsToOffset(s.tp)
		}
	}

	if s.debug && out.Order != domain.OrderNothing {
		s.svc.Log.Debug().
			Stringer("order", out.Order).
			Float64("fast", fast).
			Float64("slow", slow).
			Float64("prev_fast", s.prevFast).
			Float64("prev_slow", s.prevSlow).
			Msg("Moving average cross")
	}

	s.prevFast, s.prevSlow = fast, slow
}

// NotifyTradeStop forgets the last averages so a new cross is required.
func (s *MaCrossSignal) NotifyTradeStop() {
	s.resetCross()
}

func (s *MaCrossSignal) resetCross() {
	s.prevFast = -1
	s.prevSlow = -1
}

var _ Signal = (*MaCrossSignal)(nil)
