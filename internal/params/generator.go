// Package params enumerates the parameter assignments of a backtest: a
// single default run, or the full cartesian sweep of declared float ranges.
package params

import (
	"errors"
	"math"

	"github.com/rs/zerolog"

	"fx-backtester/internal/domain"
)

// Generator names
const (
	NameBase     = "base"
	NameComplete = "complete"
)

// Params errors
var (
	ErrParse = errors.New("parameters file parse error")
)

// Generator produces parameter assignments. It is not safe for concurrent
// use; the worker pool serializes calls to Next.
type Generator interface {
	Name() string

	// AddFloat declares a float parameter swept from start by step, iterations times.
	AddFloat(name string, start, step float64, iterations int)

	// AddString declares a string parameter constant across all assignments.
	AddString(name, value string)

	// Initialize must be called once after all parameters are declared.
	Initialize(optimize bool)

	// Next writes the next assignment into a. It returns false when exhausted.
	Next(a *domain.Assignment) bool

	// TotalTasks is the number of assignments Next will produce.
	TotalTasks() int
}

// FloatParam is a declared float range.
type FloatParam struct {
	Name       string
	Start      float64
	Step       float64
	Iterations int
}

// Value returns the i-th value of the range.
func (p FloatParam) Value(i int) float64 {
	v := p.Start + p.Step*float64(i)
	return math.Round(v*1e8) / 1e8
}

// StringParam is a declared constant string.
type StringParam struct {
	Name  string
	Value string
}

// FromName returns the generator registered under name. Outside optimization
// mode, and for unknown names, the base generator is used.
func FromName(name string, optimize bool, logger zerolog.Logger) Generator {
	if !optimize {
		return NewBase(logger)
	}
	switch name {
	case NameComplete:
		return NewComplete(logger)
	case NameBase:
		return NewBase(logger)
	default:
		logger.Warn().Str("generator", name).Str("fallback", NameBase).Msg("Unknown parameters generator")
		return NewBase(logger)
	}
}

// write copies the declared parameters into a.
func write(a *domain.Assignment, id int, floats []FloatParam, idx []int, strs []StringParam) {
	if a.Floats == nil {
		a.Floats = make(map[string]float64, len(floats))
	}
	if a.Strings == nil {
		a.Strings = make(map[string]string, len(strs))
	}
	a.ID = id
	for i, p := range floats {
		v := p.Start
		if idx != nil {
			v = p.Value(idx[i])
		}
		a.Floats[p.Name] = v
	}
	for _, s := range strs {
		a.Strings[s.Name] = s.Value
	}
}
