// Package api exposes the admin HTTP surface: triggering runner ticks,
// inspecting job definitions and their execution history, and reviewing
// or resolving dead letter entries. It is an operator tool, not a public
// API; deploy it behind whatever auth the platform edge provides.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/carebridge/scheduler/runner"
	"github.com/carebridge/scheduler/store"
)

// Server bundles the HTTP handlers over a runner and its store.
type Server struct {
	store  store.Store
	runner *runner.Runner
	logger *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates the admin API server.
func NewServer(st store.Store, r *runner.Runner, opts ...Option) *Server {
	s := &Server{
		store:  st,
		runner: r,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router for the admin surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/runner/tick", s.handleTick)
		r.Post("/runner/run", s.handleRunNow)

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Get("/{jobID}", s.handleGetJob)
			r.Get("/{jobID}/executions", s.handleListExecutions)
		})

		r.Route("/dlq", func(r chi.Router) {
			r.Get("/", s.handleListDLQ)
			r.Get("/count", s.handleCountDLQ)
			r.Post("/{entryID}/resolve", s.handleResolveDLQ)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes v as a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response error", slog.String("error", err.Error()))
	}
}

// writeError writes a JSON error body with the given status.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
