// Package strategy defines the plug-in contract of a trading strategy: a
// Signal that decides entries and an Actor that manages the open position.
package strategy

import (
	"github.com/rs/zerolog"

	"fx-backtester/internal/domain"
	"fx-backtester/internal/pricing"
)

// Services is the handle shared by a strategy's signal, actor and indicators.
type Services struct {
	Pair      string
	Period    int
	Precision pricing.Precision
	Params    Params
	Log       zerolog.Logger
}

// PipsToOffset converts pips to a price offset for the strategy's pair.
func (s Services) PipsToOffset(pips float64) float64 {
	return s.Precision.PipsToOffset(pips)
}

// Signal decides whether to enter the market while no position is open.
type Signal interface {
	Name() string

	// MinBars is the number of bars the signal needs before it can decide.
	MinBars() int

	// BarCount is the number of bars in the signal history.
	BarCount() int

	// TriggerOnTick makes the signal run on every tick instead of on new bars only.
	TriggerOnTick() bool

	// AddBar appends a completed bar to the signal history.
	AddBar(bar domain.Bar)

	// ClearBars drops the signal history.
	ClearBars()

	// Run evaluates the signal and may set a Buy or Sell order in out.
	Run(bar domain.Bar, ask, bid float64, out *domain.Output)

	NotifyTradeStart(pos Position)
	NotifyTradeStop()
	NotifyTradeSl(sl float64)
	NotifyTradeTp(tp float64)
	NotifyTradeTick(bar domain.Bar, ask, bid float64)
}

// Actor drives an open position. Its lifecycle is managed by ActorState.
type Actor interface {
	Name() string

	// OnStart is called when a position opens. Returning an error leaves the actor disabled.
	OnStart(pos Position, askRequote, bidRequote float64) error
	OnStop()
	OnSl(sl float64)
	OnTp(tp float64)

	// Run may set a Close or Adjust order in out.
	Run(pos Position, bar domain.Bar, ask, bid float64, out *domain.Output)
}

// Position is the open position as seen by the actor.
type Position struct {
	Status domain.Status
	Open   float64
	Lots   float64
	SL     float64
	TP     float64
}

// IdlePosition is the position of a disabled actor.
func IdlePosition() Position {
	return Position{Status: domain.StatusNothing, Open: -1, Lots: -1, SL: -1, TP: -1}
}

// Strategy is one instantiated strategy. Each simulation run owns its own.
type Strategy struct {
	Name   string
	Signal Signal
	Actor  *ActorState
}
