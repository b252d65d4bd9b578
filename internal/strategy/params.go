package strategy

import (
	"github.com/rs/zerolog"

	"fx-backtester/internal/domain"
)

// Params reads typed strategy parameters with defaults.
type Params struct {
	assignment domain.Assignment
	log        zerolog.Logger
}

// NewParams wraps an assignment.
func NewParams(a domain.Assignment, logger zerolog.Logger) Params {
	return Params{assignment: a, log: logger}
}

// Float returns the named float parameter, or def with a warning if it is missing.
func (p Params) Float(name string, def float64) float64 {
	if v, ok := p.assignment.Float(name); ok {
		return v
	}
	p.log.Warn().Str("param", name).Float64("default", def).Msg("Missing float parameter, using default")
	return def
}

// String returns the named string parameter, or def with a warning if it is missing.
func (p Params) String(name, def string) string {
	if v, ok := p.assignment.String(name); ok {
		return v
	}
	p.log.Warn().Str("param", name).Str("default", def).Msg("Missing string parameter, using default")
	return def
}
