// Package server implements the sensor API HTTP server.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dwsmith1983/trashcan/internal/provider"
)

// Options configures optional server behaviour.
type Options struct {
	// CORSOrigins lists allowed origins; nil allows any origin.
	CORSOrigins []string
	Logger      *slog.Logger
}

// Server is the sensor API HTTP server.
type Server struct {
	provider provider.Provider
	router   chi.Router
	addr     string
	logger   *slog.Logger
	srv      *http.Server
}

// New creates a new HTTP server.
func New(addr string, prov provider.Provider, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		provider: prov,
		addr:     addr,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(ObserveMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware(opts.CORSOrigins))

	s.router = r
	s.registerRoutes(r)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the router, for embedding in other transports.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Start begins serving HTTP requests. It returns nil after a graceful Stop,
// including a Stop that happens before Start.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
