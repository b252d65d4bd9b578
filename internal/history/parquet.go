package history

import (
	"fmt"

	"github.com/parquet-go/parquet-go"

	"fx-backtester/internal/domain"
)

// parquetBar is the on-disk row layout of a bar file.
type parquetBar struct {
	Time  int64   `parquet:"time"`
	Open  float64 `parquet:"open"`
	High  float64 `parquet:"high"`
	Low   float64 `parquet:"low"`
	Close float64 `parquet:"close"`
}

// ReadParquet reads bars from a Parquet file.
func ReadParquet(path string) ([]domain.Bar, error) {
	rows, err := parquet.ReadFile[parquetBar](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}

	bars := make([]domain.Bar, len(rows))
	for i, r := range rows {
		bars[i] = domain.Bar{
			Open:  r.Open,
			High:  r.High,
			Low:   r.Low,
			Close: r.Close,
			Time:  r.Time,
			Valid: true,
		}
	}
	return bars, nil
}

// WriteParquet writes the valid bars to a Parquet file. Invalid bars are
// gap markers and are rebuilt on load.
func WriteParquet(path string, bars []domain.Bar) error {
	rows := make([]parquetBar, 0, len(bars))
	for _, b := range bars {
		if !b.Valid {
			continue
		}
		rows = append(rows, parquetBar{
			Time:  b.Time,
			Open:  b.Open,
			High:  b.High,
			Low:   b.Low,
			Close: b.Close,
		})
	}

	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("write parquet %s: %w", path, err)
	}
	return nil
}
