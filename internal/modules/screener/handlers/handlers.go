// Package handlers provides HTTP handlers for equity screening.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/helmsman/internal/domain"
	"github.com/aristath/helmsman/internal/modules/screener"
)

// Handler handles screener HTTP requests
type Handler struct {
	svc  *screener.Service
	repo *screener.Repository
	log  zerolog.Logger
}

// NewHandler creates a new screener handler
func NewHandler(svc *screener.Service, repo *screener.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		svc:  svc,
		repo: repo,
		log:  log.With().Str("handler", "screener").Logger(),
	}
}

// HandleRun handles POST /api/screener/run
//
// The body maps metric names to inclusive-exclusive bounds:
//
//	{"filters": {"per": {"lower": 0, "upper": 15}, "roe": {"lower": 0.10, "upper": 1}}}
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filters map[string]screener.Range `json:"filters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	screen, err := screener.NewScreen(req.Filters)
	if err != nil {
		h.writeError(w, err)
		return
	}

	results, err := h.svc.Run(screen)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(results)
}

// HandleGetMetrics handles GET /api/screener/metrics
func (h *Handler) HandleGetMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string][]string{"metrics": screener.AvailableMetrics()})
}

// HandleUpsertFundamentals handles PUT /api/screener/fundamentals
func (h *Handler) HandleUpsertFundamentals(w http.ResponseWriter, r *http.Request) {
	var f screener.Fundamentals
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if f.ISIN == "" {
		http.Error(w, "isin is required", http.StatusBadRequest)
		return
	}

	if err := h.repo.Upsert(f); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var configErr *domain.ConfigurationError
	if errors.As(err, &configErr) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.log.Error().Err(err).Msg("Screener failure")
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
