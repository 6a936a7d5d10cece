// Package handlers provides HTTP handlers for portfolio risk measures.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/helmsman/internal/domain"
	"github.com/aristath/helmsman/internal/modules/risk"
)

// Handler handles risk HTTP requests
type Handler struct {
	svc *risk.Service
	log zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(svc *risk.Service, log zerolog.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log.With().Str("handler", "risk").Logger(),
	}
}

// HandleGetReport handles GET /api/risk/report
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Assess(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}

// HandleGetVaR handles GET /api/risk/var
func (h *Handler) HandleGetVaR(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Query().Get("method")
	if method == "" {
		method = "historical"
	}

	valueAtRisk, losses, lowConfidence, err := h.svc.ValueAtRisk(r.Context(), method)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"method":           method,
		"value_at_risk":    valueAtRisk,
		"low_confidence":   lowConfidence,
		"simulated_losses": losses,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		configErr    *domain.ConfigurationError
		historyErr   *domain.InsufficientHistoryError
		integrityErr *domain.DataIntegrityError
		priceErr     *domain.PriceNotFoundError
	)
	switch {
	case errors.As(err, &configErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &historyErr), errors.As(err, &priceErr):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &integrityErr):
		h.log.Error().Err(err).Msg("Quote history integrity failure")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		h.log.Error().Err(err).Msg("Risk assessment failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
