package strategy

import "fx-backtester/internal/domain"

// SignalBase carries the bar history and no-op notifications.
// Concrete signals embed it and override what they need.
type SignalBase struct {
	Bars BarHistory

	name          string
	minBars       int
	triggerOnTick bool
}

// NewSignalBase creates the shared part of a signal.
func NewSignalBase(name string, minBars int, triggerOnTick bool) SignalBase {
	return SignalBase{name: name, minBars: minBars, triggerOnTick: triggerOnTick}
}

func (s *SignalBase) Name() string { return s.name }
func (s *SignalBase) MinBars() int { return s.minBars }
func (s *SignalBase) BarCount() int { return s.Bars.Len() }
func (s *SignalBase) TriggerOnTick() bool { return s.triggerOnTick }
func (s *SignalBase) AddBar(b domain.Bar) { s.Bars.Add(b) }
func (s *SignalBase) ClearBars() { s.Bars.Clear() }

func (s *SignalBase) NotifyTradeStart(Position) {}
func (s *SignalBase) NotifyTradeStop() {}
func (s *SignalBase) NotifyTradeSl(float64) {}
func (s *SignalBase) NotifyTradeTp(float64) {}
func (s *SignalBase) NotifyTradeTick(domain.Bar, float64, float64) {}
