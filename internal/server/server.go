// Package server exposes the grader over HTTP: a small JSON API, a live
// event stream over SSE and WebSocket, Prometheus metrics and a health
// check.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cgast/questcheck/internal/grader"
	"github.com/cgast/questcheck/pkg/events"
)

// ServiceName is reported by the health check.
const ServiceName = "questcheck"

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the access and error logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithGatherer serves metrics from g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithMaxBodyBytes caps validation request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		s.maxBody = n
	}
}

// Server is the questcheck HTTP server.
type Server struct {
	grader   *grader.Grader
	bus      events.Bus
	logger   *zap.Logger
	gatherer prometheus.Gatherer
	maxBody  int64
	mux      *http.ServeMux
	now      func() time.Time
}

// New creates a server for g. Events are streamed from bus.
func New(g *grader.Grader, bus events.Bus, opts ...Option) *Server {
	s := &Server{
		grader:   g,
		bus:      bus,
		logger:   zap.NewNop(),
		gatherer: prometheus.DefaultGatherer,
		maxBody:  256 * 1024,
		mux:      http.NewServeMux(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/catalog", s.handleCatalog)
	s.mux.HandleFunc("GET /api/missions", s.handleMissions)
	s.mux.HandleFunc("GET /api/missions/{id}", s.handleMission)
	s.mux.HandleFunc("POST /api/missions/{id}/validate", s.handleValidate)
	s.mux.HandleFunc("GET /api/attempts", s.handleAttempts)
	s.mux.HandleFunc("GET /api/path", s.handlePath)

	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)

	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return s
}

// Handler returns the routes wrapped in request id and access log
// middleware.
func (s *Server) Handler() http.Handler {
	return requestID(accessLog(s.logger, s.mux))
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   ServiceName,
		"timestamp": s.now().UTC().Format("2006-01-02T15:04:05.000Z"),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
