package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/helmsman/internal/database"
)

func TestHandleHealth(t *testing.T) {
	s := &Server{log: zerolog.Nop()}

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, "helmsman", response["service"])
}

func TestHandleSystemStatus(t *testing.T) {
	h := NewSystemHandlers(zerolog.Nop(), t.TempDir(), nil, nil, nil)

	req := httptest.NewRequest("GET", "/api/system/status", nil)
	w := httptest.NewRecorder()

	h.HandleSystemStatus(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response SystemStatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "running", response.Status)
	assert.GreaterOrEqual(t, response.UptimeSeconds, 0.0)
}

func TestHandleDatabaseStats(t *testing.T) {
	quotesDB, err := database.New(database.Config{
		Path:    "file:server_stats_test?mode=memory&cache=shared",
		Profile: database.ProfileStandard,
		Name:    "quotes",
	})
	require.NoError(t, err)
	t.Cleanup(func() { quotesDB.Close() })

	h := NewSystemHandlers(zerolog.Nop(), t.TempDir(), nil, quotesDB, nil)

	req := httptest.NewRequest("GET", "/api/system/databases", nil)
	w := httptest.NewRecorder()

	h.HandleDatabaseStats(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response DatabaseStatsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.Len(t, response.Databases, 1)
	assert.Equal(t, "quotes", response.Databases[0].Name)
	assert.True(t, response.Databases[0].Healthy)
}
