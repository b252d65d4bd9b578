package strategy

import (
	"github.com/rs/zerolog"

	"fx-backtester/internal/domain"
)

// ActorState manages the lifecycle of an Actor and keeps the signal informed
// of position changes. A disabled actor has an idle position.
type ActorState struct {
	actor        Actor
	signal       Signal
	pos          Position
	enabled      bool
	logStartStop bool
	log          zerolog.Logger
}

// NewActorState creates a disabled actor state.
func NewActorState(actor Actor, signal Signal, logger zerolog.Logger) *ActorState {
	return &ActorState{
		actor:        actor,
		signal:       signal,
		pos:          IdlePosition(),
		logStartStop: true,
		log:          logger,
	}
}

// SetLogStartStop toggles the info lines logged on start and stop.
func (a *ActorState) SetLogStartStop(enabled bool) {
	a.logStartStop = enabled
}

// Name returns the actor name.
func (a *ActorState) Name() string {
	return a.actor.Name()
}

// Enabled reports whether a position is being managed.
func (a *ActorState) Enabled() bool {
	return a.enabled
}

// Position returns the managed position.
func (a *ActorState) Position() Position {
	return a.pos
}

// Start enables the actor for a new Buy or Sell position.
func (a *ActorState) Start(status domain.Status, open, lots, sl, tp, askRequote, bidRequote float64) {
	if !status.IsOpen() {
		a.log.Warn().Stringer("status", status).Msg("Actor start with invalid status")
		return
	}

	a.pos = Position{Status: status, Open: open, Lots: lots, SL: sl, TP: tp}
	a.enabled = true

	if err := a.actor.OnStart(a.pos, askRequote, bidRequote); err != nil {
		a.log.Warn().Err(err).Str("actor", a.actor.Name()).Msg("Actor failed to start")
		a.disable()
		return
	}

	if a.logStartStop {
		a.log.Info().
			Str("actor", a.actor.Name()).
			Stringer("status", status).
			Float64("open", open).
			Float64("lots", lots).
			Float64("sl", sl).
			Float64("tp", tp).
			Msg("Actor started")
	}
	a.signal.NotifyTradeStart(a.pos)
}

// Stop disables the actor. Stopping a disabled actor only warns.
func (a *ActorState) Stop() {
	if !a.enabled {
		a.log.Warn().Str("actor", a.actor.Name()).Msg("Actor already stopped")
		return
	}

	a.actor.OnStop()
	a.disable()

	if a.logStartStop {
		a.log.Info().Str("actor", a.actor.Name()).Msg("Actor stopped")
	}
	a.signal.NotifyTradeStop()
}

// UpdateSl records a new stop loss.
func (a *ActorState) UpdateSl(sl float64) {
	a.pos.SL = sl
	a.actor.OnSl(sl)
	a.signal.NotifyTradeSl(sl)
}

// UpdateTp records a new take profit.
func (a *ActorState) UpdateTp(tp float64) {
	a.pos.TP = tp
	a.actor.OnTp(tp)
	a.signal.NotifyTradeTp(tp)
}

// Run lets the actor react to a tick.
func (a *ActorState) Run(bar domain.Bar, ask, bid float64, out *domain.Output) {
	a.actor.Run(a.pos, bar, ask, bid, out)
}

func (a *ActorState) disable() {
	a.enabled = false
	a.pos = IdlePosition()
}
