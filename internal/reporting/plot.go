package reporting

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"fx-backtester/internal/domain"
)

// PlotWriter writes an equity curve as a tab separated data file plus a
// gnuplot script that draws it.
type PlotWriter struct {
	DataFile     string
	SettingsFile string
	Currency     string
}

// Write writes both files.
func (w PlotWriter) Write(samples []domain.PlotSample) error {
	if err := w.writeData(samples); err != nil {
		return err
	}
	if err := os.WriteFile(w.SettingsFile, []byte(w.Settings()), 0o644); err != nil {
		return fmt.Errorf("write plot settings %s: %w", w.SettingsFile, err)
	}
	return nil
}

func (w PlotWriter) writeData(samples []domain.PlotSample) error {
	f, err := os.Create(w.DataFile)
	if err != nil {
		return fmt.Errorf("create plot data %s: %w", w.DataFile, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	for _, s := range samples {
		fmt.Fprintf(bw, "%d\t%g\t%g\n", s.Time, s.Balance, s.Equity)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write plot data %s: %w", w.DataFile, err)
	}
	return f.Close()
}

// Settings returns the gnuplot script.
func (w PlotWriter) Settings() string {
	var sb strings.Builder
	sb.WriteString("set title \"Backtest Result\"\n")
	sb.WriteString("set key outside\n")
	sb.WriteString("set grid\n")
	sb.WriteString("set timefmt \"%s\"\n")
	sb.WriteString("set xdata time\n")
	sb.WriteString("set format x \"%a %d %b %H:%M\"\n")
	sb.WriteString("set xlabel \"Time\"\n")
	sb.WriteString(fmt.Sprintf("set ylabel \"%s\"\n", w.Currency))
	sb.WriteString(fmt.Sprintf("plot \"%s\" using 1:3 title \"Equity\" with lines, \\\n", w.DataFile))
	sb.WriteString("\"\" using 1:2 title \"Balance\" with lines\n")
	return sb.String()
}
