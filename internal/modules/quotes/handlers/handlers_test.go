package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/helmsman/internal/modules/quotes"
)

func setupTestHandler(t *testing.T) http.Handler {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE daily_prices (
			isin TEXT NOT NULL,
			date INTEGER NOT NULL,
			close REAL NOT NULL,
			UNIQUE(isin, date)
		)
	`)
	require.NoError(t, err)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	handler := NewHandler(quotes.NewRepository(db, log), log)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func TestHandleStoreCloses_AndGetHistory(t *testing.T) {
	router := setupTestHandler(t)

	body := `[
		{"isin": "FR0000120271", "date": "2024-03-01", "price": 60.0},
		{"isin": "FR0000120271", "date": "2024-03-04", "price": 61.5}
	]`
	req := httptest.NewRequest("POST", "/quotes/", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	req = httptest.NewRequest("GET", "/quotes/FR0000120271?n=10", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var closes []quotes.Close
	require.NoError(t, json.NewDecoder(w.Body).Decode(&closes))
	require.Len(t, closes, 2)
	// Newest first
	assert.Equal(t, 61.5, closes[0].Price)
}

func TestHandleStoreCloses_RejectsInvalid(t *testing.T) {
	router := setupTestHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"bad date", `[{"isin": "FR0000120271", "date": "01-03-2024", "price": 60}]`},
		{"missing isin", `[{"isin": "", "date": "2024-03-01", "price": 60}]`},
		{"zero price", `[{"isin": "FR0000120271", "date": "2024-03-01", "price": 0}]`},
		{"not an array", `{"isin": "FR0000120271"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/quotes/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandleGetHistory_InvalidCount(t *testing.T) {
	router := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/quotes/FR0000120271?n=zero", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
