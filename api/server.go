/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/clients/*    Client ledger: purchases, debts, payments, relatives
  /api/products/*   Stock catalog and movements
  /api/admin/*      Operational endpoints

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

	r.Route("/api", func(r chi.Router) {
		// Client routes
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.CreateClient)
			r.Get("/{id}", h.GetClient)
			r.Delete("/{id}", h.DeleteClient)
			r.Post("/{id}/relatives", h.CreateRelative)
			r.Post("/{id}/purchases", h.CreatePurchase)
			r.Post("/{id}/debts", h.CreateDebt)
			r.Post("/{id}/payments", h.CreatePayment)
			r.Post("/{id}/purchases/{pid}/installments/{iid}/pay", h.PayInstallment)
			r.Delete("/{id}/purchases/{pid}/installments/{iid}", h.CancelInstallment)
		})

		// Stock routes
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Get("/{id}/movements", h.ListMovements)
			r.Post("/{id}/movements", h.StockIn)
			r.Delete("/{id}/movements/{mid}", h.ReverseMovement)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/refresh-statuses", h.RefreshStatuses)
		})
	})

	return r
}
