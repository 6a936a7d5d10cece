package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/snapshot", h.HandleGetSnapshot)
		r.Get("/nav", h.HandleGetNAVHistory)
		r.Post("/nav", h.HandleRecordNAV)
		r.Get("/nav/chart", h.HandleGetNAVChart)
	})
}
