// Package handlers provides HTTP handlers for mean-variance optimization.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/aristath/helmsman/internal/domain"
	"github.com/aristath/helmsman/internal/modules/charts"
	"github.com/aristath/helmsman/internal/modules/optimization"
)

const defaultFrontierPoints = 20

// Handler handles optimization HTTP requests
type Handler struct {
	svc *optimization.Service
	log zerolog.Logger
}

// NewHandler creates a new optimization handler
func NewHandler(svc *optimization.Service, log zerolog.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log.With().Str("handler", "optimization").Logger(),
	}
}

// HandleGetGlobalMinimumVariance handles GET /api/optimization/gmv
func (h *Handler) HandleGetGlobalMinimumVariance(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GlobalMinimumVariance(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// HandleMinimumVariance handles GET /api/optimization/minimum-variance
//
// An optional target_return query gives the daily return floor; without it
// the solve is unconstrained and equals the GMV portfolio.
func (h *Handler) HandleMinimumVariance(w http.ResponseWriter, r *http.Request) {
	var target *float64
	if raw := r.URL.Query().Get("target_return"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "target_return must be a number", http.StatusBadRequest)
			return
		}
		target = &parsed
	}

	result, err := h.svc.MinimumVariance(r.Context(), target)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// HandleOptimizeCurrent handles GET /api/optimization/current
func (h *Handler) HandleOptimizeCurrent(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.OptimizeCurrent(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// HandleGetFrontier handles GET /api/optimization/frontier
func (h *Handler) HandleGetFrontier(w http.ResponseWriter, r *http.Request) {
	nPoints, err := parsePoints(r.URL.Query().Get("points"))
	if err != nil {
		http.Error(w, "points must be a positive integer", http.StatusBadRequest)
		return
	}

	frontier, err := h.svc.Frontier(r.Context(), nPoints)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(frontier)
}

// HandleGetFrontierChart handles GET /api/optimization/frontier/chart
func (h *Handler) HandleGetFrontierChart(w http.ResponseWriter, r *http.Request) {
	nPoints, err := parsePoints(r.URL.Query().Get("points"))
	if err != nil {
		http.Error(w, "points must be a positive integer", http.StatusBadRequest)
		return
	}

	frontier, err := h.svc.Frontier(r.Context(), nPoints)
	if err != nil {
		h.writeError(w, err)
		return
	}

	png, err := charts.RenderFrontierChart(frontier)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func parsePoints(raw string) (int, error) {
	if raw == "" {
		return defaultFrontierPoints, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("invalid point count")
	}
	return n, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		configErr  *domain.ConfigurationError
		optErr     *domain.OptimizationError
		historyErr *domain.InsufficientHistoryError
	)
	switch {
	case errors.As(err, &configErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &optErr), errors.As(err, &historyErr):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.log.Error().Err(err).Msg("Optimization failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
