package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"fx-backtester/internal/history"
	"fx-backtester/internal/logging"
	"fx-backtester/internal/pricing"
	chstore "fx-backtester/internal/storage/clickhouse"
	"fx-backtester/internal/storage/migrations"
)

// Ingest targets
const (
	targetClickhouse = "clickhouse"
	targetParquet    = "parquet"
	targetCSV        = "csv"
)

func main() {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	// Parse flags (env vars as defaults)
	in := flag.String("in", "", "History CSV file to ingest (required)")
	symbol := flag.String("symbol", "", "Symbol the bars belong to, e.g. EURUSD (required)")
	maxGap := flag.Int("max-gap", 60, "Largest gap in minutes bridged with flat bars")
	to := flag.String("to", targetClickhouse, "Target: clickhouse, parquet or csv")
	out := flag.String("out", "", "Output file for the parquet and csv targets")
	digits := flag.Int("digits", 5, "Price decimals for the csv target")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	logger := logging.New(logging.Config{Level: *logLevel}).With().Str("component", "ingest").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, logger, *in, *symbol, *maxGap, *to, *out, *digits, *clickhouseDSN)
	stop()
	if err != nil {
		logger.Error().Err(err).Msg("Ingest failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, logger zerolog.Logger, in, symbol string, maxGap int, to, out string, digits int, dsn string) error {
	if in == "" {
		return fmt.Errorf("--in is required")
	}
	if symbol == "" {
		return fmt.Errorf("--symbol is required")
	}

	// Read and repair the history
	store := history.NewStore(logger)
	n, err := store.Load(in, maxGap)
	if err != nil {
		return err
	}
	bars := store.Bars()
	logger.Info().Int("bars", n).Str("symbol", symbol).Msg("History loaded")

	switch to {
	case targetClickhouse:
		if dsn == "" {
			return fmt.Errorf("--clickhouse-dsn is required for the clickhouse target")
		}
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
		if err != nil {
			return err
		}
		defer conn.Close()

		// Invalid bars only mark real gaps and are not stored.
		valid := bars[:0]
		for _, b := range bars {
			if b.Valid {
				valid = append(valid, b)
			}
		}
		if err := chstore.NewBarStore(conn).InsertBulk(ctx, symbol, valid); err != nil {
			return fmt.Errorf("insert bars: %w", err)
		}
		logger.Info().Int("bars", len(valid)).Msg("Bars written to ClickHouse")

	case targetParquet:
		if out == "" {
			return fmt.Errorf("--out is required for the parquet target")
		}
		if err := history.WriteParquet(out, bars); err != nil {
			return err
		}
		logger.Info().Int("bars", len(bars)).Str("path", out).Msg("Bars written to Parquet")

	case targetCSV:
		if out == "" {
			return fmt.Errorf("--out is required for the csv target")
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		written, err := history.WriteCSV(f, bars, pricing.New(digits).Digits())
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		logger.Info().Int("bars", written).Str("path", out).Msg("Repaired history written to CSV")

	default:
		return fmt.Errorf("unknown target %q", to)
	}
	return nil
}
