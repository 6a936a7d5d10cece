// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	EuronextBaseURL string // Live market-data endpoint
	EuronextAuthKey string // Gateway API key, empty disables live pricing

	RiskFreeRate  float64 // Annual risk-free rate used for Sharpe ratios
	LookbackDays  int     // Default historical window for returns/covariance
	VaRPercentile float64 // Default Value-at-Risk percentile (e.g. 5)
	VaRWeightMode string  // "current" (default) or "historical"

	NAVSnapshotSchedule string // Cron spec for the daily NAV snapshot job
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("HELMSMAN_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("HELMSMAN_PORT", 8002),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		EuronextBaseURL: getEnv("EURONEXT_BASE_URL", "https://gateway.euronext.com"),
		EuronextAuthKey: getEnv("EURONEXT_AUTH_KEY", ""),

		RiskFreeRate:  getEnvAsFloat("RISK_FREE_RATE", 0.0),
		LookbackDays:  getEnvAsInt("LOOKBACK_DAYS", 500),
		VaRPercentile: getEnvAsFloat("VAR_PERCENTILE", 5.0),
		VaRWeightMode: getEnv("VAR_WEIGHT_MODE", "current"),

		// Weekdays at 18:30, after the Euronext close
		NAVSnapshotSchedule: getEnv("NAV_SNAPSHOT_SCHEDULE", "0 30 18 * * MON-FRI"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.LookbackDays < 2 {
		return fmt.Errorf("LOOKBACK_DAYS must be at least 2, got %d", c.LookbackDays)
	}
	if c.VaRPercentile <= 0 || c.VaRPercentile >= 100 {
		return fmt.Errorf("VAR_PERCENTILE must be in (0, 100), got %v", c.VaRPercentile)
	}
	if c.VaRWeightMode != "current" && c.VaRWeightMode != "historical" {
		return fmt.Errorf("VAR_WEIGHT_MODE must be \"current\" or \"historical\", got %q", c.VaRWeightMode)
	}
	return nil
}

// LedgerDBPath returns the path of the transaction/NAV ledger database.
func (c *Config) LedgerDBPath() string {
	return filepath.Join(c.DataDir, "ledger.db")
}

// QuotesDBPath returns the path of the historical price database.
func (c *Config) QuotesDBPath() string {
	return filepath.Join(c.DataDir, "quotes.db")
}

// CacheDBPath returns the path of the calculation cache database.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
