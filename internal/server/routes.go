package server

import (
	"github.com/go-chi/chi/v5"

	"github.com/dwsmith1983/trashcan/internal/metrics"
	"github.com/dwsmith1983/trashcan/internal/server/handlers"
)

func (s *Server) registerRoutes(r chi.Router) {
	h := handlers.New(s.provider)
	h.SetLogger(s.logger)

	r.Get("/", h.Index)

	// Devices
	r.Put("/register", h.Register)
	r.Put("/report", h.Report)
	r.Get("/devices", h.ListDevices)
	r.Get("/device", h.GetDevice)

	// Operations
	r.Get("/health", h.Health)
	r.Method("GET", "/metrics", metrics.Handler())
}
