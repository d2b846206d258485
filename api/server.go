/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/claims/*            Claim lifecycle, losses, services
  /api/services/*          Calculation runs
  /api/indemnifications/*  Selector search and bulk review
  /api/benefits            Benefit catalog
  /api/scenarios/*         Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Claim routes
		r.Route("/claims", func(r chi.Router) {
			r.Post("/", h.CreateClaim)
			r.Get("/{id}", h.GetClaim)
			r.Post("/{id}/close", h.CloseClaim)
			r.Post("/{id}/reopen", h.ReopenClaim)
			r.Post("/{id}/losses", h.DeclareLoss)
			r.Post("/{id}/losses/{lossID}/services", h.InitServices)
		})

		// Calculation routes
		r.Route("/services", func(r chi.Router) {
			r.Post("/{id}/calculate", h.CalculateService)
		})

		// Review routes
		r.Route("/indemnifications", func(r chi.Router) {
			r.Get("/", h.SearchIndemnifications)
			r.Post("/review", h.Review)
		})

		// Benefit catalog
		r.Get("/benefits", h.ListBenefits)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
