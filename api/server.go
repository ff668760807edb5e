/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the back-office frontend

ROUTE GROUPS:
  /api/band-types       Band type enumeration
  /api/resolve          Ad-hoc resolution
  /api/mandates/*       Mandates and their withdrawals
  /api/withdrawals      Due withdrawals across mandates
  /api/scheduler/*      Scheduler runs

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// AllowedOrigins lists the origins accepted by the CORS middleware.
var AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/band-types", h.ListBandTypes)
		r.Post("/resolve", h.Resolve)

		r.Route("/mandates", func(r chi.Router) {
			r.Get("/", h.ListMandates)
			r.Post("/", h.CreateMandate)
			r.Get("/{id}", h.GetMandate)
			r.Delete("/{id}", h.DeleteMandate)
			r.Get("/{id}/next", h.NextWithdrawal)
			r.Get("/{id}/upcoming", h.Upcoming)
			r.Get("/{id}/withdrawals", h.ListWithdrawals)
			r.Post("/{id}/withdrawals", h.ScheduleWithdrawal)
		})

		r.Get("/withdrawals", h.ListDueWithdrawals)

		r.Route("/scheduler", func(r chi.Router) {
			r.Get("/runs", h.ListSchedulerRuns)
			r.Post("/run", h.TriggerScheduler)
		})
	})

	return r
}
