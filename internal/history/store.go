// Package history loads, repairs and serves a continuous series of
// 1-minute bars.
package history

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"fx-backtester/internal/domain"
)

// Load errors
var (
	ErrGapTooLarge = errors.New("history gap too large")
	ErrIntegrity   = errors.New("history integrity check failed")
	ErrEmpty       = errors.New("history is empty")
	ErrOutOfOrder  = errors.New("history bar out of order")
)

// MaxGapMinutes is the longest gap that is still bridged with invalid bars
// (roughly a long weekend). Anything longer aborts the load.
const MaxGapMinutes = 3500

// barSeconds is the spacing between consecutive bars.
const barSeconds = 60

// LoadStats counts what happened during a load.
type LoadStats struct {
	Bars            int // valid bars read from the source
	InvalidLines    int
	ZeroGaps        int // duplicated timestamps, dropped
	RealGaps        int // gaps filled with invalid bars
	InvalidBars     int
	FixedGaps       int // gaps filled with flat bars
	GeneratedBars   int
	Transitions     int // consecutive valid pairs
	FlatTransitions int // pairs where the previous close equals the next open
}

// Store holds the bar series. After a successful load every pair of
// consecutive bars is exactly 60 seconds apart.
// A Store is read-only once loaded and may be shared, but workers use Clone.
type Store struct {
	bars  []domain.Bar
	stats LoadStats
	log   zerolog.Logger

	// load state
	maxGap    int
	prev      domain.Bar
	prevValid bool
}

// NewStore creates an empty store.
func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		log: logger.With().Str("component", "history").Logger(),
	}
}

// Load reads a history file. It returns the number of bars in the series.
func (s *Store) Load(path string, maxGap int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("Cannot open history file")
		return 0, fmt.Errorf("open history %s: %w", path, err)
	}
	defer f.Close()

	s.log.Info().Str("path", path).Int("max_gap_size", maxGap).Msg("Loading history")
	return s.LoadReader(f, maxGap)
}

// LoadReader reads history lines from r. Malformed lines are counted and skipped.
func (s *Store) LoadReader(r io.Reader, maxGap int) (int, error) {
	s.reset(maxGap)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}

		bar, err := ParseLine(line)
		if err != nil {
			s.stats.InvalidLines++
			s.log.Warn().Err(err).Int("line", lineNo).Msg("Invalid history line")
			continue
		}

		if err := s.add(bar); err != nil {
			s.bars = nil
			return 0, err
		}
	}
	if err := scanner.Err(); err != nil {
		s.bars = nil
		return 0, fmt.Errorf("read history: %w", err)
	}

	return s.finish()
}

// LoadBars ingests bars coming from a columnar source with the same repair
// rules as LoadReader. Bars must be in chronological order.
func (s *Store) LoadBars(bars []domain.Bar, maxGap int) (int, error) {
	s.reset(maxGap)

	for i, bar := range bars {
		bar.Valid = true
		if !bar.Consistent() {
			s.stats.InvalidLines++
			s.log.Warn().Int("index", i).Int64("time", bar.Time).Msg("Invalid history bar")
			continue
		}
		if err := s.add(bar); err != nil {
			s.bars = nil
			return 0, err
		}
	}

	return s.finish()
}

func (s *Store) reset(maxGap int) {
	s.bars = nil
	s.stats = LoadStats{}
	s.maxGap = maxGap
	s.prev = domain.Bar{}
	s.prevValid = false
}

// add applies the gap rules between the previous valid bar and bar.
func (s *Store) add(bar domain.Bar) error {
	if !s.prevValid {
		s.appendBar(bar)
		return nil
	}

	offset := (bar.Time - s.prev.Time) / barSeconds

	switch {
	case offset > MaxGapMinutes:
		s.log.Error().
			Int64("from", s.prev.Time).
			Int64("to", bar.Time).
			Int64("offset", offset).
			Msg("History gap too large, aborting load")
		return fmt.Errorf("%w: %d minutes after %d", ErrGapTooLarge, offset, s.prev.Time)

	case offset < 0:
		s.log.Error().Int64("prev", s.prev.Time).Int64("time", bar.Time).Msg("History bar out of order, aborting load")
		return fmt.Errorf("%w: %d after %d", ErrOutOfOrder, bar.Time, s.prev.Time)

	case offset == 0:
		s.stats.ZeroGaps++
		s.log.Warn().Int64("time", bar.Time).Msg("Zero minute gap, bar ignored")
		// The ignored bar still seeds the next gap fill.
		s.prev = bar
		return nil

	case offset == 1:

	case offset <= int64(s.maxGap):
		s.stats.FixedGaps++
		for i := int64(1); i < offset; i++ {
			s.bars = append(s.bars, domain.Bar{
				Open:  s.prev.Close,
				High:  s.prev.Close,
				Low:   s.prev.Close,
				Close: s.prev.Close,
				Time:  s.prev.Time + i*barSeconds,
				Valid: true,
			})
			s.stats.GeneratedBars++
		}

	default:
		s.stats.RealGaps++
		for i := int64(1); i < offset; i++ {
			s.bars = append(s.bars, domain.Bar{Time: s.prev.Time + i*barSeconds})
			s.stats.InvalidBars++
		}
	}

	s.appendBar(bar)
	return nil
}

func (s *Store) appendBar(bar domain.Bar) {
	if s.prevValid {
		s.stats.Transitions++
		if s.prev.Close == bar.Open {
			s.stats.FlatTransitions++
		}
	}
	s.bars = append(s.bars, bar)
	s.prev = bar
	s.prevValid = true
	s.stats.Bars++
}

func (s *Store) finish() (int, error) {
	st := s.stats
	s.log.Info().
		Int("bars", st.Bars).
		Int("invalid_lines", st.InvalidLines).
		Int("zero_gaps", st.ZeroGaps).
		Int("real_gaps", st.RealGaps).
		Int("invalid_bars", st.InvalidBars).
		Int("fixed_gaps", st.FixedGaps).
		Int("generated_bars", st.GeneratedBars).
		Msg("History loaded")

	if st.Transitions > 0 {
		s.log.Info().
			Int("flat_transitions", st.FlatTransitions).
			Int("transitions", st.Transitions).
			Float64("share_pct", 100*float64(st.FlatTransitions)/float64(st.Transitions)).
			Msg("Transition quality (previous close equals next open)")
	}

	if len(s.bars) == 0 {
		return 0, ErrEmpty
	}
	if err := s.verify(); err != nil {
		s.bars = nil
		return 0, err
	}
	return len(s.bars), nil
}

// verify requires every consecutive pair to be exactly 60 seconds apart.
func (s *Store) verify() error {
	for i := 1; i < len(s.bars); i++ {
		if diff := s.bars[i].Time - s.bars[i-1].Time; diff != barSeconds {
			s.log.Error().
				Int("pos", i).
				Int64("diff", diff).
				Msg("History integrity check failed, discarding all bars")
			return fmt.Errorf("%w: bar %d is %ds after its predecessor", ErrIntegrity, i, diff)
		}
	}
	return nil
}

// Stats returns the counters of the last load.
func (s *Store) Stats() LoadStats {
	return s.stats
}

// Len returns the number of bars.
func (s *Store) Len() int {
	return len(s.bars)
}

// Bars returns a copy of the series.
func (s *Store) Bars() []domain.Bar {
	out := make([]domain.Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// FetchBar aggregates period consecutive bars starting at pos.
// Open and time come from the first bar, close from the last.
// FetchGap is returned if any bar in the span is invalid.
func (s *Store) FetchBar(pos, period int) (domain.Bar, domain.FetchResult) {
	if period <= 0 || pos < 0 || pos+period > len(s.bars) {
		return domain.Bar{}, domain.FetchError
	}

	first := s.bars[pos]
	if !first.Valid {
		return domain.Bar{Time: first.Time}, domain.FetchGap
	}

	out := domain.Bar{
		Open:  first.Open,
		High:  first.High,
		Low:   first.Low,
		Time:  first.Time,
		Valid: true,
	}
	for _, b := range s.bars[pos+1 : pos+period] {
		if !b.Valid {
			return domain.Bar{Time: first.Time}, domain.FetchGap
		}
		if b.High > out.High {
			out.High = b.High
		}
		if b.Low < out.Low {
			out.Low = b.Low
		}
	}
	out.Close = s.bars[pos+period-1].Close

	return out, domain.FetchOk
}

// FirstBarPosOfPeriod returns the first position whose time is a multiple of
// period minutes, or Len() if there is none.
func (s *Store) FirstBarPosOfPeriod(period int) int {
	if period <= 0 {
		return 0
	}
	span := int64(period) * barSeconds
	for i, b := range s.bars {
		if b.Time%span == 0 {
			return i
		}
	}
	return len(s.bars)
}

// BarPosFromTime returns the position of the bar starting at t.
func (s *Store) BarPosFromTime(t int64) (int, bool) {
	if len(s.bars) == 0 {
		return 0, false
	}
	delta := t - s.bars[0].Time
	if delta < 0 || delta%barSeconds != 0 {
		return 0, false
	}
	pos := int(delta / barSeconds)
	if pos >= len(s.bars) || s.bars[pos].Time != t {
		return 0, false
	}
	return pos, true
}

// CopyFrom replaces the series with a value copy of src's series.
func (s *Store) CopyFrom(src *Store) {
	s.bars = make([]domain.Bar, len(src.bars))
	copy(s.bars, src.bars)
	s.stats = src.stats
}

// Clone returns an independent copy of the store.
func (s *Store) Clone() *Store {
	c := &Store{log: s.log}
	c.CopyFrom(s)
	return c
}
