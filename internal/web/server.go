// Package web provides the HTTP API for running the pipeline on uploaded
// files and browsing the recorded runs.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/tickets/internal/app"
	"github.com/JonMunkholm/tickets/internal/config"
	"github.com/JonMunkholm/tickets/internal/store"
	weblog "github.com/JonMunkholm/tickets/internal/web/middleware"
)

// Server is the HTTP server.
type Server struct {
	app     *app.App
	store   store.Store
	cfg     *config.Config
	limiter *RunLimiter
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server running pipelines with a and reading run
// history from st.
func NewServer(a *app.App, st store.Store, cfg *config.Config) *Server {
	s := &Server{
		app:     a,
		store:   st,
		cfg:     cfg,
		limiter: NewRunLimiter(cfg.Run.MaxConcurrent, cfg.Run.MaxWait),
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(weblog.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/runs", func(r chi.Router) {
		// Runs are bounded by RUN_TIMEOUT inside the handler instead of the
		// request timeout.
		r.Post("/", s.handleCreateRun)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

			r.Get("/", s.handleListRuns)
			r.Get("/{runID}", s.handleGetRun)
			r.Get("/{runID}/output", s.handleRunOutput)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown waits for runs in progress, then gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if active := s.limiter.ActiveCount(); active > 0 {
		slog.Info("waiting for runs to complete", "active", active)
		if err := s.limiter.WaitForDrain(ctx); err != nil {
			slog.Warn("runs did not complete in time", "error", err)
		}
	}

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
