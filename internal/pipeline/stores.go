package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"fx-backtester/internal/config"
	"fx-backtester/internal/storage"
	chstore "fx-backtester/internal/storage/clickhouse"
	"fx-backtester/internal/storage/migrations"
	pgstore "fx-backtester/internal/storage/postgres"
)

// Stores holds the database backed stores selected by the configuration.
// Either field may be nil.
type Stores struct {
	Bars    storage.BarStore
	Reports storage.ReportStore
}

// OpenStores connects the stores the configuration asks for and applies
// their migrations. The returned cleanup closes every connection.
func OpenStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Stores, func(), error) {
	log := logger.With().Str("component", "stores").Logger()
	stores := &Stores{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.HistoryFormat == config.HistoryClickhouse {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return nil, func() {}, fmt.Errorf("clickhouse: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		stores.Bars = chstore.NewBarStore(conn)
		log.Info().Msg("ClickHouse bar store ready")
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("postgres: %w", err)
		}
		stores.Reports = pgstore.NewReportStore(pool)
		log.Info().Strs("migrations", applied).Msg("PostgreSQL report store ready")
	}

	return stores, cleanup, nil
}

// Apply wires the opened stores into a sweep.
func (st *Stores) Apply(s *Sweep) *Sweep {
	if st.Bars != nil {
		s = s.WithBarStore(st.Bars)
	}
	if st.Reports != nil {
		s = s.WithReportStore(st.Reports)
	}
	return s
}
