package simulation

import (
	"github.com/rs/zerolog"

	"fx-backtester/internal/config"
	"fx-backtester/internal/controller"
	"fx-backtester/internal/domain"
	"fx-backtester/internal/observability"
	"fx-backtester/internal/pricing"
	"fx-backtester/internal/ticks"
)

// positionState is the broker side of the open position.
// Fields other than balance are -1 when no position is open.
type positionState struct {
	status   domain.Status
	open     float64
	lots     float64
	sl       float64
	tp       float64
	openTime int64
	balance  float64
}

func (p *positionState) reset() {
	p.status = domain.StatusNothing
	p.open = -1
	p.lots = -1
	p.sl = -1
	p.tp = -1
	p.openTime = -1
}

// session is the mutable state of one Run.
type session struct {
	settings  config.Settings
	precision pricing.Precision
	ctrl      *controller.Controller
	report    *domain.Report
	metrics   *observability.Metrics
	log       zerolog.Logger

	state    positionState
	last     ticks.Tick
	haveLast bool
}

func (s *session) processTick(tick ticks.Tick, newBar bool) {
	s.last = tick
	s.haveLast = true

	s.checkStops(tick)

	out := s.ctrl.ProcessTick(tick.Bar, tick.Ask, tick.Bid, s.state.status, newBar)
	if s.applyOrder(out, tick) {
		st := s.state
		s.ctrl.ProcessTrade(st.status, st.open, st.lots, st.sl, st.tp, tick.Ask, tick.Bid)
	}

	if s.settings.Plot && tick.Bar.Time%60 == 0 {
		s.sample(tick)
	}
}

// interrupt handles a hole in the history: the controller drops its state
// and any open position is closed at the last known tick.
func (s *session) interrupt() {
	s.ctrl.Interrupt()
	if s.state.status == domain.StatusNothing || !s.haveLast {
		return
	}
	s.closeAtTick(s.last, domain.CloseReasonInterrupt)
}

// checkStops closes the position when the tick touches its take profit or stop loss.
func (s *session) checkStops(tick ticks.Tick) {
	st := s.state
	switch st.status {
	case domain.StatusBuy:
		if tick.Bid >= st.tp {
			s.closePosition(st.tp, tick.Bar.Time, domain.CloseReasonTakeProfitTop)
		} else if tick.Bid <= st.sl {
			s.closePosition(st.sl, tick.Bar.Time, domain.CloseReasonStopLossBottom)
		}
	case domain.StatusSell:
		if tick.Ask <= st.tp {
			s.closePosition(st.tp, tick.Bar.Time, domain.CloseReasonTakeProfitBottom)
		} else if tick.Ask >= st.sl {
			s.closePosition(st.sl, tick.Bar.Time, domain.CloseReasonStopLossTop)
		}
	}
}

// applyOrder validates and executes the controller's order. It returns true
// when the position changed and the controller must be told.
func (s *session) applyOrder(out domain.Output, tick ticks.Tick) bool {
	if out.Order == domain.OrderNothing {
		return false
	}

	sl := s.precision.Round(out.SL)
	tp := s.precision.Round(out.TP)

	if s.state.status == domain.StatusNothing {
		return s.open(out, sl, tp, tick)
	}

	switch out.Order {
	case domain.OrderClose:
		s.closeAtTick(tick, domain.CloseReasonActor)
		return true

	case domain.OrderAdjust:
		if !s.stopsValid(s.state.status, sl, tp, tick) {
			s.reject(out.Order, sl, tp, tick, "Invalid SL/TP adjustment")
			return false
		}
		s.state.sl = sl
		s.state.tp = tp
		if s.settings.ShowTradeActions {
			s.log.Info().Float64("sl", sl).Float64("tp", tp).Msg("Position adjusted")
		}
		return true

	default:
		s.reject(out.Order, sl, tp, tick, "Invalid order while trading")
		return false
	}
}

func (s *session) open(out domain.Output, sl, tp float64, tick ticks.Tick) bool {
	var status domain.Status
	var price float64
	switch out.Order {
	case domain.OrderBuy:
		status, price = domain.StatusBuy, tick.Ask
	case domain.OrderSell:
		status, price = domain.StatusSell, tick.Bid
	default:
		s.reject(out.Order, sl, tp, tick, "Invalid order while not trading")
		return false
	}

	if out.Lots <= 0 {
		s.reject(out.Order, sl, tp, tick, "Invalid lots")
		return false
	}
	if !s.stopsValid(status, sl, tp, tick) {
		s.reject(out.Order, sl, tp, tick, "Invalid SL/TP")
		return false
	}

	s.state.status = status
	s.state.open = price
	s.state.lots = out.Lots
	s.state.sl = sl
	s.state.tp = tp
	s.state.openTime = tick.Bar.Time

	if s.settings.ShowTradeActions {
		s.log.Info().
			Stringer("direction", status).
			Float64("open", price).
			Float64("lots", out.Lots).
			Float64("sl", sl).
			Float64("tp", tp).
			Int64("time", tick.Bar.Time).
			Msg("Position opened")
	}
	return true
}

// stopsValid checks that sl and tp sit on the right side of the price and at
// least the minimum offset away from the spread.
func (s *session) stopsValid(status domain.Status, sl, tp float64, tick ticks.Tick) bool {
	if s.tooClose(sl, tick) || s.tooClose(tp, tick) {
		return false
	}
	if status == domain.StatusBuy {
		return tp > tick.Ask && sl < tick.Bid
	}
	return tp < tick.Bid && sl > tick.Ask
}

// tooClose reports whether price lies within the minimum offset around the spread.
func (s *session) tooClose(price float64, tick ticks.Tick) bool {
	minOffset := s.settings.MinPriceOffset * s.precision.PipPrice()
	return price <= tick.Ask+minOffset && price >= tick.Bid-minOffset
}

func (s *session) reject(order domain.Order, sl, tp float64, tick ticks.Tick, msg string) {
	s.metrics.RecordOrderRejected(order.String())
	s.log.Warn().
		Stringer("order", order).
		Stringer("status", s.state.status).
		Float64("sl", sl).
		Float64("tp", tp).
		Float64("ask", tick.Ask).
		Float64("bid", tick.Bid).
		Msg(msg)
}

// closeAtTick closes at the bid for a buy and at the ask for a sell.
func (s *session) closeAtTick(tick ticks.Tick, reason string) {
	price := tick.Bid
	if s.state.status == domain.StatusSell {
		price = tick.Ask
	}
	s.closePosition(price, tick.Bar.Time, reason)
}

// closePosition realizes the open position at price.
func (s *session) closePosition(price float64, at int64, reason string) {
	st := s.state

	var pips float64
	if st.status == domain.StatusBuy {
		pips = s.precision.OffsetToPips(price - st.open)
	} else {
		pips = s.precision.OffsetToPips(st.open - price)
	}
	profit := pips * 10 * st.lots

	trade := domain.Trade{
		Direction:   st.status,
		Open:        st.open,
		Close:       price,
		Lots:        st.lots,
		SL:          st.sl,
		TP:          st.tp,
		OpenTime:    st.openTime,
		CloseTime:   at,
		Reason:      reason,
		Pips:        pips,
		ProfitQuote: profit,
		ProfitBase:  profit / price,
	}
	s.report.Trades = append(s.report.Trades, trade)
	s.metrics.RecordTradeClosed(reason)

	s.state.balance += profit
	s.state.reset()

	if s.settings.ShowTradeActions {
		outcome := "loss"
		switch {
		case profit > 0:
			outcome = "profit"
		case profit == 0:
			outcome = "even"
		}
		s.log.Info().
			Stringer("direction", trade.Direction).
			Float64("open", trade.Open).
			Float64("close", trade.Close).
			Float64("pips", pips).
			Float64("profit", profit).
			Float64("balance", s.state.balance).
			Str("reason", reason).
			Msg("Position closed with " + outcome)
	}
}

// sample appends an equity curve point.
func (s *session) sample(tick ticks.Tick) {
	st := s.state
	equity := st.balance
	switch st.status {
	case domain.StatusBuy:
		equity += s.precision.OffsetToPips(tick.Bid-st.open) * 10 * st.lots
	case domain.StatusSell:
		equity += s.precision.OffsetToPips(st.open-tick.Ask) * 10 * st.lots
	}
	s.report.Plot = append(s.report.Plot, domain.PlotSample{
		Time:    tick.Bar.Time,
		Balance: st.balance,
		Equity:  equity,
	})
}
