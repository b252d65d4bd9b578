// Package controller implements the trading state machine shared by the
// backtester and live execution. It turns tick and trade events into order
// intents using a strategy's signal and actor.
package controller

import (
	"github.com/rs/zerolog"

	"fx-backtester/internal/domain"
	"fx-backtester/internal/strategy"
)

// Controller routes events to a strategy. It is not safe for concurrent use.
type Controller struct {
	strategy *strategy.Strategy
	out      domain.Output
	lastBar  domain.Bar
	log      zerolog.Logger
}

// New creates a controller for s.
func New(s *strategy.Strategy, logger zerolog.Logger) *Controller {
	c := &Controller{
		strategy: s,
		log:      logger.With().Str("component", "controller").Logger(),
	}
	c.out.Reset()
	return c
}

// LastOutput returns the output of the last ProcessTick call.
func (c *Controller) LastOutput() domain.Output {
	return c.out
}

// ProcessTick handles a price update. status is the position status reported
// by the broker. On a new bar the previous bar is appended to the signal history.
func (c *Controller) ProcessTick(bar domain.Bar, ask, bid float64, status domain.Status, newBar bool) domain.Output {
	c.out.Reset()

	if newBar && c.lastBar.Valid {
		c.strategy.Signal.AddBar(c.lastBar)
	}
	c.lastBar = bar
	if !c.lastBar.Valid {
		c.log.Warn().Int64("time", bar.Time).Msg("Tick with invalid bar")
		c.lastBar.Valid = true
	}

	actor := c.strategy.Actor
	if actor.Enabled() {
		actorStatus := actor.Position().Status
		switch {
		case status == domain.StatusNothing:
			actor.Stop()
		case status != actorStatus:
			c.log.Error().
				Stringer("status", status).
				Stringer("actor_status", actorStatus).
				Msg("Position status mismatch, closing")
			c.out.Order = domain.OrderClose
		default:
			actor.Run(bar, ask, bid, &c.out)
			c.strategy.Signal.NotifyTradeTick(bar, ask, bid)
		}
		return c.out
	}

	if status != domain.StatusNothing {
		c.log.Warn().Stringer("status", status).Msg("Tick with a position but no active actor")
	}
	sig := c.strategy.Signal
	if sig.BarCount() < sig.MinBars() {
		return c.out
	}
	if newBar || sig.TriggerOnTick() {
		sig.Run(bar, ask, bid, &c.out)
	}
	return c.out
}

// ProcessTrade handles a position update from the broker.
func (c *Controller) ProcessTrade(status domain.Status, open, lots, sl, tp, askRequote, bidRequote float64) {
	if status == domain.StatusUnknown || status < domain.StatusNothing || status > domain.StatusUnknown {
		c.log.Warn().Int("status", int(status)).Msg("Trade packet with unknown status")
		return
	}

	actor := c.strategy.Actor
	if actor.Enabled() {
		if !status.IsOpen() {
			actor.Stop()
			return
		}

		// A status mismatch is logged; the stops are still taken over.
		pos := actor.Position()
		if status != pos.Status {
			c.log.Error().
				Stringer("status", status).
				Stringer("actor_status", pos.Status).
				Msg("Trade packet status differs from active position")
		}
		if sl != pos.SL {
			actor.UpdateSl(sl)
		}
		if tp != pos.TP {
			actor.UpdateTp(tp)
		}
		return
	}

	if status.IsOpen() {
		actor.Start(status, open, lots, sl, tp, askRequote, bidRequote)
		return
	}
	c.log.Warn().Stringer("status", status).Msg("Trade packet with no opened position")
}

// ProcessBar feeds a warm-up bar to the signal without deciding anything.
func (c *Controller) ProcessBar(bar domain.Bar) {
	c.strategy.Signal.AddBar(bar)
}

// Interrupt stops the active position and clears the signal history.
// Used when a hole in the price stream makes continuation unreliable. The
// last seen bar is kept and joins the history on the next new bar.
func (c *Controller) Interrupt() {
	if c.strategy.Actor.Enabled() {
		c.strategy.Actor.Stop()
	}
	c.strategy.Signal.ClearBars()
}
