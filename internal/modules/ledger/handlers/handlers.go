// Package handlers provides HTTP handlers for ledger operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/helmsman/internal/domain"
	"github.com/aristath/helmsman/internal/modules/ledger"
)

// Handler handles ledger HTTP requests
type Handler struct {
	svc *ledger.Service
	log zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(svc *ledger.Service, log zerolog.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log.With().Str("handler", "ledger").Logger(),
	}
}

// transactionRequest is the JSON body for recording a transaction.
type transactionRequest struct {
	Date     string  `json:"date"` // YYYY-MM-DD
	Type     string  `json:"type"`
	ISIN     string  `json:"isin"`
	MIC      string  `json:"mic"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Fee      float64 `json:"fee"`
	Amount   float64 `json:"amount"` // cash movements and dividends
	Taxable  bool    `json:"taxable"`
	Notes    string  `json:"notes"`
}

// HandleRecordTransaction handles POST /api/ledger/transactions
func (h *Handler) HandleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	var txn domain.Transaction
	switch domain.TransactionType(req.Type) {
	case domain.TransactionBuy:
		txn, err = domain.NewBuy(date, req.ISIN, req.MIC, req.Name, req.Quantity, req.Price, req.Fee, req.Taxable, req.Notes)
	case domain.TransactionSell:
		txn, err = domain.NewSell(date, req.ISIN, req.MIC, req.Name, req.Quantity, req.Price, req.Fee, req.Notes)
	case domain.TransactionInflow:
		txn, err = domain.NewInflow(date, req.Amount, req.Notes)
	case domain.TransactionOutflow:
		txn, err = domain.NewOutflow(date, req.Amount, req.Notes)
	case domain.TransactionStockDividend:
		txn, err = domain.NewStockDividend(date, req.ISIN, req.MIC, req.Amount, req.Notes)
	case domain.TransactionStockSplit:
		txn, err = domain.NewStockSplit(date, req.ISIN, req.MIC, req.Quantity, req.Notes)
	default:
		http.Error(w, "unknown transaction type", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.svc.Record(&txn); err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": txn.ID})
}

// HandleGetTransactions handles GET /api/ledger/transactions
func (h *Handler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r.URL.Query().Get("as_of"))
	if err != nil {
		http.Error(w, "as_of must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	txns, err := h.svc.History(asOf)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(txns)
}

// HandleGetPositions handles GET /api/ledger/positions
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseAsOf(r.URL.Query().Get("as_of"))
	if err != nil {
		http.Error(w, "as_of must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	cash, positions, err := h.svc.PositionsAsOf(asOf)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"as_of":     asOf.Format("2006-01-02"),
		"cash":      cash,
		"positions": positions,
	})
}

func parseAsOf(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	// End of day so same-day transactions are included
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(24*time.Hour - time.Second), nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var dataErr *domain.DataError
	if errors.As(err, &dataErr) {
		h.log.Error().Err(err).Msg("Ledger store failure")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}
