package params

import (
	"github.com/rs/zerolog"

	"fx-backtester/internal/domain"
)

// Complete enumerates the cartesian product of all float ranges. The last
// declared parameter varies fastest.
type Complete struct {
	floats   []FloatParam
	strings  []StringParam
	idx      []int
	optimize bool
	nextID   int
	total    int
	done     bool
	log      zerolog.Logger
}

// NewComplete creates a full sweep generator.
func NewComplete(logger zerolog.Logger) *Complete {
	return &Complete{log: logger.With().Str("component", "params_complete").Logger()}
}

func (g *Complete) Name() string { return NameComplete }

func (g *Complete) AddFloat(name string, start, step float64, iterations int) {
	if iterations < 1 {
		iterations = 1
	}
	g.floats = append(g.floats, FloatParam{Name: name, Start: start, Step: step, Iterations: iterations})
}

func (g *Complete) AddString(name, value string) {
	g.strings = append(g.strings, StringParam{Name: name, Value: value})
}

// Initialize resets the odometer and computes the task count.
func (g *Complete) Initialize(optimize bool) {
	g.optimize = optimize
	g.idx = make([]int, len(g.floats))
	g.nextID = 0
	g.done = false

	g.total = 1
	if g.sweeping() {
		for _, p := range g.floats {
			g.total *= p.Iterations
		}
	}

	if len(g.floats) == 0 {
		g.log.Info().Msg("No parameters")
	}
	for _, p := range g.floats {
		g.log.Info().
			Str("param", p.Name).
			Float64("start", p.Start).
			Float64("step", p.Step).
			Int("iterations", p.Iterations).
			Msg("Float parameter")
	}
	if len(g.strings) == 0 {
		g.log.Info().Msg("No strings")
	}
	for _, s := range g.strings {
		g.log.Info().Str("param", s.Name).Int("length", len(s.Value)).Msg("String parameter")
	}
}

func (g *Complete) sweeping() bool {
	return g.optimize && len(g.floats) > 0
}

// Next writes the current odometer position, then advances it.
func (g *Complete) Next(a *domain.Assignment) bool {
	if g.done {
		return false
	}
	if g.idx == nil {
		g.idx = make([]int, len(g.floats))
	}

	g.nextID++
	write(a, g.nextID, g.floats, g.idx, g.strings)

	if !g.sweeping() {
		g.done = true
		return true
	}

	pos := len(g.floats) - 1
	for {
		g.idx[pos]++
		if g.idx[pos] < g.floats[pos].Iterations {
			break
		}
		if pos == 0 {
			g.done = true
			break
		}
		g.idx[pos] = 0
		pos--
	}
	return true
}

func (g *Complete) TotalTasks() int {
	if g.total == 0 {
		return 1
	}
	return g.total
}
