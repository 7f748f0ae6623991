// Package server exposes the TalentLens HTTP and websocket surface: the live
// interview channel, the batch processing and scoring endpoints, and the
// operational /metrics and /healthz routes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talentlens/talentlens/internal/batch"
	"github.com/talentlens/talentlens/internal/observe"
	"github.com/talentlens/talentlens/internal/session"
	"github.com/talentlens/talentlens/internal/store"
)

// Server routes HTTP and websocket traffic to the session coordinator, the
// batch engine, and the store.
type Server struct {
	store       store.Store
	coordinator *session.Coordinator
	engine      *batch.Engine
	metrics     *observe.Metrics
	logger      *slog.Logger

	addr     string
	certFile string
	keyFile  string

	mux *http.ServeMux
}

// Config holds the dependencies for a [Server].
type Config struct {
	// Addr is the TCP listen address, e.g. ":8080".
	Addr string

	// CertFile and KeyFile enable TLS when both are set.
	CertFile string
	KeyFile  string

	// Store is the persistence surface. Required.
	Store store.Store

	// Coordinator handles live interview sessions. Required.
	Coordinator *session.Coordinator

	// Engine runs batch analysis. Required.
	Engine *batch.Engine

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// New creates a Server and registers all routes.
func New(cfg Config) *Server {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		store:       cfg.Store,
		coordinator: cfg.Coordinator,
		engine:      cfg.Engine,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		addr:        cfg.Addr,
		certFile:    cfg.CertFile,
		keyFile:     cfg.KeyFile,
		mux:         http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("POST /interviews", s.handleCreateInterview)
	s.mux.HandleFunc("GET /interviews/{id}", s.handleGetInterview)
	s.mux.HandleFunc("POST /interviews/{id}/indicators", s.handleAddIndicator)
	s.mux.HandleFunc("GET /interviews/{id}/indicators", s.handleListIndicators)
	s.mux.HandleFunc("GET /interviews/{id}/assessments", s.handleListAssessments)
	s.mux.HandleFunc("GET /interviews/{id}/score", s.handleGetScore)
	s.mux.HandleFunc("POST /interviews/{id}/process", s.handleProcess)
	s.mux.HandleFunc("PUT /interviews/{id}/manual-scores", s.handleManualScores)
	s.mux.HandleFunc("GET /interviews/{id}/recommendation", s.handleRecommendation)
	s.mux.HandleFunc("GET /interviews/{id}/segments/search", s.handleSearchSegments)

	s.mux.HandleFunc("GET /settings/scoring-weights", s.handleGetWeights)
	s.mux.HandleFunc("PUT /settings/scoring-weights", s.handlePutWeights)

	s.mux.HandleFunc("GET /ws/interview/{id}", s.handleLiveSession)
}

// Handler returns the full middleware-wrapped handler chain.
func (s *Server) Handler() http.Handler {
	return observe.Middleware(s.metrics)(s.mux)
}

// Run serves HTTP (or HTTPS when certificate paths are configured) until ctx
// is cancelled, then shuts down gracefully with a 10 second drain window.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr, "tls", s.certFile != "")
		if s.certFile != "" && s.keyFile != "" {
			errCh <- srv.ListenAndServeTLS(s.certFile, s.keyFile)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encoding failed", "err", err)
	}
}

// writeError maps store and engine errors onto HTTP statuses. Unclassified
// errors become opaque 500s; the detail goes to the log, not the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, batch.ErrAlreadyProcessing):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: "interview is already being processed"})
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
