// Package main runs one backtest sweep in the background and serves its
// progress over HTTP:
// - /health   liveness
// - /metrics  Prometheus metrics
// - /status   sweep state as JSON
// - /ws       live progress events
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"fx-backtester/internal/config"
	"fx-backtester/internal/logging"
	"fx-backtester/internal/observability"
	"fx-backtester/internal/pipeline"
	"fx-backtester/internal/progress"
)

// Sweep states reported by /status
const (
	stateRunning  = "running"
	stateFinished = "finished"
	stateFailed   = "failed"
)

// Server holds the HTTP router and the state of the background sweep.
type Server struct {
	router *chi.Mux
	hub    *progress.Hub
	log    zerolog.Logger

	mu        sync.Mutex
	sweepID   string
	state     string
	startedAt time.Time
	outcome   *pipeline.Outcome
	err       error
}

// NewServer creates the server and its routes.
func NewServer(hub *progress.Hub, logger zerolog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		hub:    hub,
		log:    logger.With().Str("component", "server").Logger(),
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", observability.Handler())
	s.router.Get("/status", s.handleStatus)
	s.router.Handle("/ws", hub)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RunSweep runs the sweep and records its outcome.
func (s *Server) RunSweep(ctx context.Context, sweep *pipeline.Sweep) {
	s.mu.Lock()
	s.sweepID = sweep.ID()
	s.state = stateRunning
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	out, err := sweep.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = out
	s.err = err
	if err != nil {
		s.state = stateFailed
		s.log.Error().Err(err).Str("sweep_id", s.sweepID).Msg("Sweep failed")
		return
	}
	s.state = stateFinished
	s.log.Info().Str("sweep_id", s.sweepID).Strs("files", out.Files).Msg("Sweep finished")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	SweepID     string          `json:"sweep_id"`
	State       string          `json:"state"`
	StartedAt   time.Time       `json:"started_at"`
	Error       string          `json:"error,omitempty"`
	Tasks       int             `json:"tasks,omitempty"`
	Failed      int             `json:"failed,omitempty"`
	Files       []string        `json:"files,omitempty"`
	LastEvent   *progress.Event `json:"last_event,omitempty"`
	Subscribers int             `json:"subscribers"`
}

// handleStatus returns the sweep status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		SweepID:     s.sweepID,
		State:       s.state,
		StartedAt:   s.startedAt,
		Subscribers: s.hub.Subscribers(),
	}
	if s.err != nil {
		resp.Error = s.err.Error()
	}
	if s.outcome != nil {
		resp.Tasks = s.outcome.Result.Tasks
		resp.Failed = s.outcome.Result.Failed
		resp.Files = s.outcome.Files
	}
	s.mu.Unlock()

	if ev, ok := s.hub.Last(); ok {
		resp.LastEvent = &ev
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func main() {
	configPath := flag.String("config", "backtest.yaml", "Backtest configuration file")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	flag.Parse()

	boot := logging.New(logging.Config{Level: "info"})
	cfg, err := config.Load(*configPath, boot)
	if err != nil {
		boot.Error().Err(err).Str("path", *configPath).Msg("Cannot load configuration")
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logging.SetGlobalLogger(logger)

	if err := run(cfg, *addr, logger); err != nil {
		logger.Error().Err(err).Msg("Server failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, addr string, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := pipeline.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	hub := progress.NewHub(nil, logger)
	defer hub.Close()

	srv := NewServer(hub, logger)
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     srv,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	sweep := stores.Apply(pipeline.NewSweep(cfg, logger)).
		WithMetrics(observability.DefaultMetrics).
		WithProgress(hub)
	go srv.RunSweep(ctx, sweep)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
