package history

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"fx-backtester/internal/domain"
)

// Line errors
var (
	ErrShortLine    = errors.New("line too short")
	ErrBadTimestamp = errors.New("bad timestamp")
	ErrBadPrices    = errors.New("bad prices")
)

// minLineLength is the date/time prefix plus at least one price character.
const minLineLength = 18

// ParseLine parses "YYYY.MM.DD,HH:MM,O,H,L,C[,...]" into a valid Bar.
// Date and time are read from fixed offsets. Fields after the close are ignored.
func ParseLine(line string) (domain.Bar, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < minLineLength {
		return domain.Bar{}, ErrShortLine
	}

	ts, err := parseTimestamp(line)
	if err != nil {
		return domain.Bar{}, err
	}

	fields := strings.Split(line[17:], ",")
	if len(fields) < 4 {
		return domain.Bar{}, fmt.Errorf("%w: expected 4 prices, got %d", ErrBadPrices, len(fields))
	}

	var prices [4]float64
	for i := range prices {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("%w: %v", ErrBadPrices, err)
		}
		prices[i] = v
	}

	bar := domain.Bar{
		Open:  prices[0],
		High:  prices[1],
		Low:   prices[2],
		Close: prices[3],
		Time:  ts,
		Valid: true,
	}
	if !bar.Consistent() {
		return domain.Bar{}, fmt.Errorf("%w: inconsistent OHLC %v/%v/%v/%v", ErrBadPrices, bar.Open, bar.High, bar.Low, bar.Close)
	}
	return bar, nil
}

func parseTimestamp(line string) (int64, error) {
	fields := [5]struct{ from, to int }{
		{0, 4},   // year
		{5, 7},   // month
		{8, 10},  // day
		{11, 13}, // hour
		{14, 16}, // minute
	}

	var v [5]int
	for i, f := range fields {
		n, err := strconv.Atoi(line[f.from:f.to])
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrBadTimestamp, err)
		}
		v[i] = n
	}

	if v[1] < 1 || v[1] > 12 || v[2] < 1 || v[2] > 31 || v[3] < 0 || v[3] > 23 || v[4] < 0 || v[4] > 59 {
		return 0, fmt.Errorf("%w: %q", ErrBadTimestamp, line[:16])
	}

	return time.Date(v[0], time.Month(v[1]), v[2], v[3], v[4], 0, 0, time.UTC).Unix(), nil
}

// FormatLine renders a bar back into the history line format.
func FormatLine(b domain.Bar, digits int) string {
	t := time.Unix(b.Time, 0).UTC()
	return fmt.Sprintf("%s,%s,%s,%s,%s",
		t.Format("2006.01.02,15:04"),
		strconv.FormatFloat(b.Open, 'f', digits, 64),
		strconv.FormatFloat(b.High, 'f', digits, 64),
		strconv.FormatFloat(b.Low, 'f', digits, 64),
		strconv.FormatFloat(b.Close, 'f', digits, 64),
	)
}

// WriteCSV writes the valid bars in the history line format. Invalid gap
// bars are skipped; loading the output repairs the gaps again.
func WriteCSV(w io.Writer, bars []domain.Bar, digits int) (int, error) {
	bw := bufio.NewWriter(w)
	n := 0
	for _, b := range bars {
		if !b.Valid {
			continue
		}
		if _, err := bw.WriteString(FormatLine(b, digits) + "\n"); err != nil {
			return n, fmt.Errorf("write history line: %w", err)
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("write history: %w", err)
	}
	return n, nil
}
