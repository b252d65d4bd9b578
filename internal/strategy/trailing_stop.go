package strategy

import (
	"fx-backtester/internal/domain"
)

// TrailingStop closes a position when price retraces tsDistance pips from
// its best level, or when it reaches tsTp pips of profit.
type TrailingStop struct {
	Distance float64 // price offset
	TakeGain float64 // price offset
	debug    bool
	svc      Services

	stop float64
}

// NewTrailingStop reads tsDistance, tsTp and tsLog.
func NewTrailingStop(svc Services) *TrailingStop {
	return &TrailingStop{
		Distance: svc.PipsToOffset(svc.Params.Float("tsDistance", 5)),
		TakeGain: svc.PipsToOffset(svc.Params.Float("tsTp", 10)),
		debug:    svc.Params.String("tsLog", "") == "debug",
		svc:      svc,
	}
}

// Name returns the actor name.
func (t *TrailingStop) Name() string {
	return "TrailingStop"
}

// Stop returns the current trailing level.
func (t *TrailingStop) Stop() float64 {
	return t.stop
}

// OnStart places the initial stop Distance away from the requoted price.
func (t *TrailingStop) OnStart(pos Position, askRequote, bidRequote float64) error {
	if pos.Status == domain.StatusBuy {
		t.stop = bidRequote - t.Distance
	} else {
		t.stop = askRequote + t.Distance
	}
	t.logDebug("Trailing stop placed")
	return nil
}

func (t *TrailingStop) OnStop() {}
func (t *TrailingStop) OnSl(float64) {}
func (t *TrailingStop) OnTp(float64) {}

// Run trails the stop behind price and closes on take gain or stop touch.
func (t *TrailingStop) Run(pos Position, _ domain.Bar, ask, bid float64, out *domain.Output) {
	switch pos.Status {
	case domain.StatusBuy:
		switch {
		case bid >= pos.Open+t.TakeGain:
			out.Order = domain.OrderClose
		case bid-t.Distance > t.stop:
			t.stop = bid - t.Distance
			t.logDebug("Trailing stop raised")
		case bid <= t.stop:
			out.Order = domain.OrderClose
		}

	case domain.StatusSell:
		switch {
		case ask <= pos.Open-t.TakeGain:
			out.Order = domain.OrderClose
		case ask+t.Distance < t.stop:
			t.stop = ask + t.Distance
			t.logDebug("Trailing stop lowered")
		case ask >= t.stop:
			out.Order = domain.OrderClose
		}
	}
}

func (t *TrailingStop) logDebug(msg string) {
	if t.debug {
		t.svc.Log.Debug().Float64("stop", t.stop).Msg(msg)
	}
}

var _ Actor = (*TrailingStop)(nil)
