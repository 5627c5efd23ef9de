// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the audit pipeline over HTTP.
//
// Routes:
//   - POST /api/analyze    multipart video + pdf, answered with an event stream
//   - GET  /api/runs       recent run summaries (?limit=)
//   - GET  /api/runs/{id}  one run record
//   - GET  /healthz        liveness
//   - GET  /metrics        Prometheus metrics
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"github.com/pdiddy/veragate/internal/audit"
	"github.com/pdiddy/veragate/internal/metrics"
	"github.com/pdiddy/veragate/pkg/types"
)

// RunStore persists run records. *runstore.Store implements it.
type RunStore interface {
	Create(ctx context.Context, run types.Run) error
	Finish(ctx context.Context, run types.Run) error
	Get(ctx context.Context, id string) (types.Run, error)
	List(ctx context.Context, limit int) ([]types.RunSummary, error)
}

// Options carries the optional collaborators of a Server.
type Options struct {
	// Store is nil when run history is disabled.
	Store   RunStore
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	Version string
}

// Server routes HTTP requests to the pipeline and run history.
type Server struct {
	cfg      types.ServerConfig
	pipeline *audit.Pipeline
	store    RunStore
	metrics  *metrics.Metrics
	log      *zap.Logger
	version  string
	newID    func() string
}

// New returns a Server for p.
func New(cfg types.ServerConfig, p *audit.Pipeline, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:      cfg.WithDefaults(),
		pipeline: p,
		store:    opts.Store,
		metrics:  opts.Metrics,
		log:      log,
		version:  opts.Version,
		newID:    uuid.NewString,
	}
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.health)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("POST /api/analyze", s.analyze)
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.getRun)

	return s.instrument(mux)
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully,
// giving in-flight streams up to grace to finish.
func (s *Server) ListenAndServe(ctx context.Context, grace time.Duration) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down", zap.Duration("grace", grace))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusRecorder captures the response code while keeping the writer
// flushable for event streams.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.metrics.HTTPRequest(route, rec.status)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}
