package params

import (
	"github.com/rs/zerolog"

	"fx-backtester/internal/domain"
)

// Base produces a single assignment holding every parameter at its start value.
type Base struct {
	floats  []FloatParam
	strings []StringParam
	done    bool
	log     zerolog.Logger
}

// NewBase creates a single-run generator.
func NewBase(logger zerolog.Logger) *Base {
	return &Base{log: logger.With().Str("component", "params_base").Logger()}
}

func (g *Base) Name() string { return NameBase }

func (g *Base) AddFloat(name string, start, _ float64, _ int) {
	g.floats = append(g.floats, FloatParam{Name: name, Start: start, Iterations: 1})
}

func (g *Base) AddString(name, value string) {
	g.strings = append(g.strings, StringParam{Name: name, Value: value})
}

func (g *Base) Initialize(bool) {
	g.done = false
	g.log.Info().Int("floats", len(g.floats)).Int("strings", len(g.strings)).Msg("Single run with start values")
}

func (g *Base) Next(a *domain.Assignment) bool {
	if g.done {
		return false
	}
	write(a, 1, g.floats, nil, g.strings)
	g.done = true
	return true
}

func (g *Base) TotalTasks() int { return 1 }
