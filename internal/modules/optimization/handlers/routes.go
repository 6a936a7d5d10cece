package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all optimization routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/optimization", func(r chi.Router) {
		r.Get("/gmv", h.HandleGetGlobalMinimumVariance)
		r.Get("/minimum-variance", h.HandleMinimumVariance)
		r.Get("/current", h.HandleOptimizeCurrent)
		r.Get("/frontier", h.HandleGetFrontier)
		r.Get("/frontier/chart", h.HandleGetFrontierChart)
	})
}
