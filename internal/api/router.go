package api

import (
	"encoding/json"
	"net/http"

	"github.com/agentoven/agentoven/ledger/internal/api/handlers"
	"github.com/agentoven/agentoven/ledger/internal/api/middleware"
	"github.com/agentoven/agentoven/ledger/internal/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers, auth *middleware.AuthMiddleware) http.Handler {
	r := chi.NewRouter()

	// Global middleware. Auth runs before logging and tracing so both see
	// the caller.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Caller-Token", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.Handler)
	r.Use(middleware.Logger)
	r.Use(middleware.Metrics)
	r.Use(middleware.Telemetry)

	// Health & info
	r.Get("/health", h.Health)
	r.Get("/version", versionHandler(cfg))
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RequireCaller).Post("/execute", h.Execute)

		// Agent registry
		r.Route("/registry", func(r chi.Router) {
			r.Get("/config", h.RegistryConfig)
			r.Route("/agents", func(r chi.Router) {
				r.Get("/", h.ListAgents)
				r.With(middleware.RequireCaller).Post("/", h.RegisterAgent)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.GetAgent)
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireCaller)
						r.Patch("/", h.UpdateAgent)
						r.Post("/activate", h.ActivateAgent)
						r.Post("/deactivate", h.DeactivateAgent)
					})
				})
			})
			r.Get("/owners/{owner}/agents", h.OwnerAgents)
		})

		// Marketplace
		r.Route("/marketplace", func(r chi.Router) {
			r.Get("/config", h.MarketplaceConfig)
			r.Route("/listings", func(r chi.Router) {
				r.Get("/", h.BrowseListings)
				r.With(middleware.RequireCaller).Post("/", h.CreateListing)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.GetListing)
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireCaller)
						r.Patch("/", h.UpdateListing)
						r.Delete("/", h.RemoveListing)
						r.Post("/purchase", h.PurchaseListing)
					})
				})
			})
			r.Get("/sellers/{owner}/listings", h.SellerListings)
		})

		// Bank
		r.Get("/bank/balances/{address}", h.Balances)
	})

	return r
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "ledger",
		})
	}
}
