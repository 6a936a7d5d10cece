// Package server provides the HTTP server and routing for Helmsman.
package server

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/helmsman/internal/database"
)

// SystemHandlers handles system-wide monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	ledgerDB    *database.DB
	quotesDB    *database.DB
	cacheDB     *database.DB
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, dataDir string, ledgerDB, quotesDB, cacheDB *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		ledgerDB:    ledgerDB,
		quotesDB:    quotesDB,
		cacheDB:     cacheDB,
	}
}

// SystemStatusResponse is the payload for the system status endpoint.
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	RAMPercent    float64 `json:"ram_percent"`
}

// DBInfo describes one database file.
type DBInfo struct {
	Name    string  `json:"name"`
	Path    string  `json:"path"`
	SizeMB  float64 `json:"size_mb"`
	Healthy bool    `json:"healthy"`
}

// DatabaseStatsResponse is the payload for the database stats endpoint.
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// HandleSystemStatus returns process uptime and host resource usage
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuAvg, ramPercent := h.getSystemStats()

	response := SystemStatusResponse{
		Status:        "running",
		UptimeSeconds: time.Since(h.startupTime).Seconds(),
		CPUPercent:    cpuAvg,
		RAMPercent:    ramPercent,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// HandleDatabaseStats returns size and integrity status for each database
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	databases := []DBInfo{}
	totalSizeMB := 0.0

	for _, db := range []*database.DB{h.ledgerDB, h.quotesDB, h.cacheDB} {
		if db == nil {
			continue
		}

		sizeMB := 0.0
		if info, err := os.Stat(db.Path()); err == nil {
			sizeMB = float64(info.Size()) / 1024 / 1024
		}
		totalSizeMB += sizeMB

		databases = append(databases, DBInfo{
			Name:    db.Name(),
			Path:    db.Path(),
			SizeMB:  sizeMB,
			Healthy: db.HealthCheck(r.Context()) == nil,
		})
	}

	response := DatabaseStatsResponse{
		Databases:   databases,
		TotalSizeMB: totalSizeMB,
		LastChecked: time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// getSystemStats calculates CPU and RAM usage percentages.
// Uses a short 100ms sampling interval so the endpoint stays responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
