// Package api serves the engine over HTTP: catalog browsing, user-mode
// evaluation and admin ingestion.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Lorentz83/dbSchema/internal/engine"
	"github.com/Lorentz83/dbSchema/internal/middleware"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Persister stores the engine state after a successful admin change.
type Persister interface {
	Persist(ctx context.Context, e *engine.Engine) error
}

// Server holds the HTTP handlers.
type Server struct {
	engine    *engine.Engine
	logger    *slog.Logger
	persister Persister
	rateLimit middleware.RateLimitConfig
	auth      *middleware.Authenticator
}

// Option configures a Server.
type Option func(*Server)

// WithPersister saves the state after every successful admin exec.
func WithPersister(p Persister) Option {
	return func(s *Server) { s.persister = p }
}

// WithRateLimit enables per-client rate limiting.
func WithRateLimit(cfg middleware.RateLimitConfig) Option {
	return func(s *Server) { s.rateLimit = cfg }
}

// WithAuth sets the credentials accepted on /v1. Without it every /v1
// request is rejected.
func WithAuth(a *middleware.Authenticator) Option {
	return func(s *Server) { s.auth = a }
}

// NewServer returns a Server over e.
func NewServer(e *engine.Engine, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{engine: e, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.rateLimit))
		r.Use(middleware.Authenticate(s.auth))
		r.Get("/tables", s.listTables)
		r.Get("/tables/{name}", s.getTable)
		r.Post("/evaluate", s.evaluate)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Post("/exec", s.exec)
		})
	})
	return r
}
