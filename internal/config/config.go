// Package config loads the backtest configuration from a YAML file with
// .env and environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"fx-backtester/internal/pricing"
)

// Config errors
var (
	ErrParse           = errors.New("config parse error")
	ErrMissingStrategy = errors.New("config: strategy is required")
	ErrMissingHistory  = errors.New("config: history is required")
	ErrHistoryFormat   = errors.New("config: unsupported history format")
)

// History formats
const (
	HistoryCSV        = "csv"
	HistoryParquet    = "parquet"
	HistoryClickhouse = "clickhouse"
)

// Defaults for clamped values.
const (
	DefaultPeriod         = 1
	DefaultSpread         = 1.8
	DefaultMinPriceOffset = 5
	DefaultThreads        = 3
	DefaultDeposit        = 10000
	DefaultMaxGapSize     = 60
	MaxThreads            = 20
)

// Config is the full backtest configuration.
type Config struct {
	Strategy       string `yaml:"strategy"`
	StrategyParams string `yaml:"strategy_params"`

	// History source
	History       string `yaml:"history"`
	HistoryFormat string `yaml:"history_format"`
	MaxGapSize    int    `yaml:"max_gap_size"`

	// Instrument
	Pair           string  `yaml:"pair"`
	Period         int     `yaml:"period"`
	Digits         int     `yaml:"digits"`
	Spread         float64 `yaml:"spread"`
	MinPriceOffset float64 `yaml:"min_price_offset"`
	FewerTicks     bool    `yaml:"fewer_ticks"`

	// Sweep
	OptimizationMode bool   `yaml:"optimization_mode"`
	ParamsGenerator  string `yaml:"params_generator"`
	Threads          int    `yaml:"threads"`
	ResultRanking    string `yaml:"result_ranking"`

	// Output
	Deposit          float64 `yaml:"deposit"`
	ShowTradeActions bool    `yaml:"show_trade_actions"`
	ShowTradeDetails bool    `yaml:"show_trade_details"`
	PlotOutput       bool    `yaml:"plot_output"`
	PlotDataFile     string  `yaml:"plot_data_file"`
	PlotSettingsFile string  `yaml:"plot_settings_file"`
	ReportDir        string  `yaml:"report_dir"`

	// Optional sinks and sources
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	MetricsAddr   string `yaml:"metrics_addr"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`

	// Derived by Normalize
	BaseCurrency    string `yaml:"-"`
	CounterCurrency string `yaml:"-"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		HistoryFormat:    HistoryCSV,
		MaxGapSize:       DefaultMaxGapSize,
		Period:           DefaultPeriod,
		Digits:           pricing.DefaultDigits,
		Spread:           DefaultSpread,
		MinPriceOffset:   DefaultMinPriceOffset,
		ParamsGenerator:  "complete",
		Threads:          DefaultThreads,
		ResultRanking:    "profit",
		Deposit:          DefaultDeposit,
		ShowTradeActions: true,
		ShowTradeDetails: true,
		PlotDataFile:     "backtest.dat",
		PlotSettingsFile: "backtest.plot",
		ReportDir:        "reports",
		LogLevel:         "info",
	}
}

// Load reads the YAML file at path, applies .env and environment overrides,
// normalizes out-of-range values and logs the result.
func Load(path string, logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Err(err).Msg("Could not load .env file")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	cfg.Normalize(logger)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Dump(logger)
	return cfg, nil
}

// Parse decodes YAML on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return cfg, nil
}

// applyEnvOverrides overrides fields from well-known BACKTEST_* variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BACKTEST_HISTORY"); v != "" {
		cfg.History = v
	}
	if v := os.Getenv("BACKTEST_STRATEGY_PARAMS"); v != "" {
		cfg.StrategyParams = v
	}
	if v := os.Getenv("BACKTEST_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Threads = n
		}
	}
	if v := os.Getenv("BACKTEST_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("BACKTEST_CLICKHOUSE_DSN"); v != "" {
		cfg.ClickhouseDSN = v
	}
	if v := os.Getenv("BACKTEST_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("BACKTEST_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Normalize clamps out-of-range values to their defaults, logging a warning
// for each one, and derives the pair currencies.
func (c *Config) Normalize(logger zerolog.Logger) {
	log := logger.With().Str("component", "config").Logger()

	if len(c.Pair) == 6 {
		c.BaseCurrency = c.Pair[:3]
		c.CounterCurrency = c.Pair[3:]
	} else {
		log.Warn().Str("pair", c.Pair).Msg("Currency pair must have 6 characters")
		c.BaseCurrency = "_BASE_CUR_"
		c.CounterCurrency = "_COUNTER_CUR_"
	}

	if c.Period < 1 {
		log.Warn().Int("period", c.Period).Int("default", DefaultPeriod).Msg("Invalid period, using default")
		c.Period = DefaultPeriod
	}
	if !pricing.Supported(c.Digits) {
		log.Warn().Int("digits", c.Digits).Int("default", pricing.DefaultDigits).Msg("Unsupported digits, using default")
		c.Digits = pricing.DefaultDigits
	}
	if c.Spread < 0.5 || c.Spread > 10 {
		log.Warn().Float64("spread", c.Spread).Float64("default", DefaultSpread).Msg("Spread out of range [0.5, 10], using default")
		c.Spread = DefaultSpread
	}
	if c.MinPriceOffset < 1 || c.MinPriceOffset > 100 {
		log.Warn().Float64("min_price_offset", c.MinPriceOffset).Msg("Minimum price offset out of range [1, 100], using default")
		c.MinPriceOffset = DefaultMinPriceOffset
	}
	if c.MaxGapSize < 0 {
		log.Warn().Int("max_gap_size", c.MaxGapSize).Msg("Negative max gap size, using default")
		c.MaxGapSize = DefaultMaxGapSize
	}
	if c.Deposit <= 0 {
		log.Warn().Float64("deposit", c.Deposit).Msg("Deposit must be positive, using default")
		c.Deposit = DefaultDeposit
	}

	if c.Threads < 1 || c.Threads > MaxThreads {
		log.Warn().Int("threads", c.Threads).Int("default", DefaultThreads).Msg("Threads out of range [1, 20], using default")
		c.Threads = DefaultThreads
	}
	if !c.OptimizationMode {
		c.Threads = 1
	}

	if c.ParamsGenerator == "" {
		c.ParamsGenerator = "complete"
	}
	if c.ResultRanking == "" {
		c.ResultRanking = "profit"
	}
	if c.HistoryFormat == "" {
		c.HistoryFormat = HistoryCSV
	}
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if c.Strategy == "" {
		return ErrMissingStrategy
	}
	switch c.HistoryFormat {
	case HistoryCSV, HistoryParquet:
		if c.History == "" {
			return ErrMissingHistory
		}
	case HistoryClickhouse:
		if c.ClickhouseDSN == "" {
			return fmt.Errorf("%w: clickhouse history needs clickhouse_dsn", ErrMissingHistory)
		}
	default:
		return fmt.Errorf("%w: %q", ErrHistoryFormat, c.HistoryFormat)
	}
	return nil
}

// Dump logs the effective configuration.
func (c *Config) Dump(logger zerolog.Logger) {
	logger.Info().
		Str("strategy", c.Strategy).
		Str("strategy_params", c.StrategyParams).
		Str("history", c.History).
		Str("history_format", c.HistoryFormat).
		Int("max_gap_size", c.MaxGapSize).
		Str("pair", c.Pair).
		Str("base_currency", c.BaseCurrency).
		Str("counter_currency", c.CounterCurrency).
		Int("period", c.Period).
		Int("digits", c.Digits).
		Float64("spread", c.Spread).
		Float64("min_price_offset", c.MinPriceOffset).
		Bool("fewer_ticks", c.FewerTicks).
		Bool("optimization_mode", c.OptimizationMode).
		Str("params_generator", c.ParamsGenerator).
		Int("threads", c.Threads).
		Str("result_ranking", c.ResultRanking).
		Float64("deposit", c.Deposit).
		Bool("show_trade_actions", c.ShowTradeActions).
		Bool("show_trade_details", c.ShowTradeDetails).
		Bool("plot_output", c.PlotOutput).
		Msg("Configuration")
}

// Settings returns the per-run values copied into each worker.
func (c *Config) Settings() Settings {
	return Settings{
		Strategy:         c.Strategy,
		Pair:             c.Pair,
		BaseCurrency:     c.BaseCurrency,
		CounterCurrency:  c.CounterCurrency,
		Period:           c.Period,
		Digits:           c.Digits,
		Spread:           c.Spread,
		MinPriceOffset:   c.MinPriceOffset,
		FewerTicks:       c.FewerTicks,
		Deposit:          c.Deposit,
		ShowTradeActions: c.ShowTradeActions,
		Plot:             c.PlotOutput && !c.OptimizationMode,
	}
}

// Settings is the immutable per-run subset of Config.
// It is passed by value so each worker owns its copy.
type Settings struct {
	Strategy         string
	Pair             string
	BaseCurrency     string
	CounterCurrency  string
	Period           int
	Digits           int
	Spread           float64 // pips
	MinPriceOffset   float64 // pips
	FewerTicks       bool
	Deposit          float64
	ShowTradeActions bool
	Plot             bool
}

// Precision returns the price precision for the configured digits.
func (s Settings) Precision() pricing.Precision {
	return pricing.New(s.Digits)
}
