// Package handlers provides HTTP handlers for portfolio valuation and NAV history.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/helmsman/internal/domain"
	"github.com/aristath/helmsman/internal/modules/charts"
	"github.com/aristath/helmsman/internal/modules/portfolio"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	svc *portfolio.Service
	log zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(svc *portfolio.Service, log zerolog.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetSnapshot handles GET /api/portfolio/snapshot
//
// With no query parameters it values the portfolio against live gateway
// prices. With ?date=YYYY-MM-DD it values against stored closes.
func (h *Handler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	var (
		snap *portfolio.Snapshot
		err  error
	)

	if raw := r.URL.Query().Get("date"); raw != "" {
		var date time.Time
		date, err = time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		snap, err = h.svc.Valuator().HistoricalSnapshot(r.Context(), date)
	} else {
		snap, err = h.svc.Valuator().LiveSnapshot(r.Context())
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

// navRequest is the JSON body for recording a NAV observation.
type navRequest struct {
	Date      string  `json:"date"` // YYYY-MM-DD, defaults to today
	Shares    float64 `json:"shares"`
	Cashflows float64 `json:"cashflows"`
}

// HandleRecordNAV handles POST /api/portfolio/nav
func (h *Handler) HandleRecordNAV(w http.ResponseWriter, r *http.Request) {
	var req navRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	date := time.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	if err := h.svc.RecordNAV(r.Context(), date, req.Shares, req.Cashflows); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// HandleGetNAVHistory handles GET /api/portfolio/nav
func (h *Handler) HandleGetNAVHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.NAVHistory()
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}

// HandleGetNAVChart handles GET /api/portfolio/nav/chart
func (h *Handler) HandleGetNAVChart(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.NAVHistory()
	if err != nil {
		h.writeError(w, err)
		return
	}

	png, err := charts.RenderNAVChart(records)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		priceErr  *domain.PriceNotFoundError
		configErr *domain.ConfigurationError
		dataErr   *domain.DataError
	)
	switch {
	case errors.As(err, &configErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &priceErr):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &dataErr):
		h.log.Error().Err(err).Msg("Portfolio store failure")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		h.log.Error().Err(err).Msg("Portfolio valuation failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
