// Package handlers provides HTTP handlers for the daily close store.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/helmsman/internal/domain"
	"github.com/aristath/helmsman/internal/modules/quotes"
)

const defaultHistoryLength = 100

// Handler handles quote HTTP requests
type Handler struct {
	repo *quotes.Repository
	log  zerolog.Logger
}

// NewHandler creates a new quotes handler
func NewHandler(repo *quotes.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "quotes").Logger(),
	}
}

// closeRequest is a single daily close in a store request.
type closeRequest struct {
	ISIN  string  `json:"isin"`
	Date  string  `json:"date"` // YYYY-MM-DD
	Price float64 `json:"price"`
}

// HandleStoreCloses handles POST /api/quotes
//
// Accepts a JSON array of daily closes. Existing (isin, date) rows are
// overwritten.
func (h *Handler) HandleStoreCloses(w http.ResponseWriter, r *http.Request) {
	var req []closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	batch := make([]quotes.Close, 0, len(req))
	for _, c := range req {
		date, err := time.Parse("2006-01-02", c.Date)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		if c.ISIN == "" || c.Price <= 0 {
			http.Error(w, "isin and a positive price are required", http.StatusBadRequest)
			return
		}
		batch = append(batch, quotes.Close{ISIN: c.ISIN, Date: date, Price: c.Price})
	}

	// One transaction so a mid-batch failure cannot leave a half-stored day
	if err := h.repo.StoreBatch(batch); err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]int{"stored": len(req)})
}

// HandleGetHistory handles GET /api/quotes/{isin}
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	isin := chi.URLParam(r, "isin")

	n := defaultHistoryLength
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}

	closes, err := h.repo.RecentCloses(isin, n)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(closes)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var priceErr *domain.PriceNotFoundError
	if errors.As(err, &priceErr) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.log.Error().Err(err).Msg("Quote store failure")
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
