package strategy

import (
	"github.com/markcheno/go-talib"
)

// Indicator computes a value from a bar history.
type Indicator interface {
	Name() string
	Run(bars *BarHistory)
	Valid() bool
	Value() float64
}

// MovingAverage is the simple moving average of closes.
type MovingAverage struct {
	name   string
	period int
	value  float64
	valid  bool
	debug  bool
	svc    Services
}

// NewMovingAverage creates a simple moving average over period bars.
// Periods below 2 are raised to 2.
func NewMovingAverage(svc Services, name string, period int) *MovingAverage {
	if period < 2 {
		svc.Log.Warn().Str("indicator", name).Int("period", period).Msg("Moving average period below 2, using 2")
		period = 2
	}
	return &MovingAverage{
		name:   name,
		period: period,
		debug:  svc.Params.String("maDebug", "") == "debug",
		svc:    svc,
	}
}

func (m *MovingAverage) Name() string { return m.name }
func (m *MovingAverage) Valid() bool { return m.valid }
func (m *MovingAverage) Value() float64 { return m.value }
func (m *MovingAverage) Period() int { return m.period }

// Run recomputes the average. It is invalid until period bars are available.
func (m *MovingAverage) Run(bars *BarHistory) {
	if bars.Len() < m.period {
		m.valid = false
		return
	}

	sma := talib.Sma(bars.Closes(m.period), m.period)
	m.value = sma[len(sma)-1]
	m.valid = true

	if m.debug {
		m.svc.Log.Debug().Str("indicator", m.name).Float64("value", m.value).Msg("Moving average")
	}
}

var _ Indicator = (*MovingAverage)(nil)
