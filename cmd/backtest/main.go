package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"fx-backtester/internal/config"
	"fx-backtester/internal/logging"
	"fx-backtester/internal/observability"
	"fx-backtester/internal/pipeline"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "backtest.yaml", "Backtest configuration file")
	assumeYes := flag.Bool("yes", false, "Launch the sweep without asking for confirmation")
	verifySweep := flag.String("verify", "", "Replay the persisted reports of this sweep id instead of running a sweep")
	flag.Parse()

	// Bootstrap logger until the configured one is available
	boot := logging.New(logging.Config{Level: "info"})

	cfg, err := config.Load(*configPath, boot)
	if err != nil {
		boot.Error().Err(err).Str("path", *configPath).Msg("Cannot load configuration")
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logging.SetGlobalLogger(logger)

	// Cancel the sweep on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	if *verifySweep != "" {
		err = verify(ctx, cfg, logger, *verifySweep)
	} else {
		err = run(ctx, cfg, logger, *assumeYes)
	}
	stop()
	if err != nil {
		logger.Error().Err(err).Msg("Backtest failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, assumeYes bool) error {
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	stores, cleanup, err := pipeline.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	sweep := stores.Apply(pipeline.NewSweep(cfg, logger)).
		WithMetrics(observability.DefaultMetrics)
	if !assumeYes && cfg.OptimizationMode {
		sweep = sweep.WithConfirm(confirmOnStdin)
	}

	out, err := sweep.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info().
		Str("sweep_id", out.SweepID).
		Int("tasks", out.Result.Tasks).
		Int("failed", out.Result.Failed).
		Dur("duration", out.Result.Duration).
		Msg("Backtest finished")
	for _, f := range out.Files {
		fmt.Println(f)
	}
	return nil
}

// verify replays a persisted sweep and fails if any report diverges.
func verify(ctx context.Context, cfg *config.Config, logger zerolog.Logger, sweepID string) error {
	stores, cleanup, err := pipeline.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := stores.Apply(pipeline.NewSweep(cfg, logger)).Verify(ctx, sweepID)
	if err != nil {
		return err
	}
	for _, r := range report.Results {
		for _, d := range r.Divergences {
			fmt.Printf("task %d %s: %s stored=%v replayed=%v\n", r.TaskID, r.ReportID, d.Field, d.Expected, d.Actual)
		}
	}
	if report.DivergentReports > 0 {
		return fmt.Errorf("%d of %d reports diverged", report.DivergentReports, report.TotalReports)
	}
	return nil
}

// confirmOnStdin asks the operator to confirm the sweep size.
func confirmOnStdin(tasks, threads int) bool {
	fmt.Fprintf(os.Stderr, "Run %d tasks on %d threads? [y/N] ", tasks, threads)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.Info().Str("addr", addr).Msg("Starting metrics server")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("Metrics server error")
	}
}
