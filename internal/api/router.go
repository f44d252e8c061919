// Package api exposes the HTTP surface: message submission and inspection,
// SMTP account management, and queue stats, behind a shared-secret header.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter assembles the full route tree. Everything under /api requires
// the X-API-KEY header; the banner and health routes stay open.
func NewRouter(h *Handlers, apiKey string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-KEY"},
		MaxAge:         300,
	}))

	r.Get("/", h.Banner)
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(requireAPIKey(apiKey))

		r.Post("/emails", h.CreateEmail)
		r.Get("/emails/{id}", h.GetEmail)
		r.Get("/emails/status/{status}", h.ListEmailsByStatus)

		r.Post("/smtp-configs", h.CreateAccount)
		r.Get("/smtp-configs", h.ListAccounts)
		r.Get("/smtp-configs/{id}", h.GetAccount)
		r.Put("/smtp-configs/{id}", h.UpdateAccount)

		r.Get("/queue/stats", h.QueueStats)
	})

	return r
}
