// Package portfolio values the portfolio from ledger positions and market
// data, and maintains the NAV history.
package portfolio

import "time"

// Line is one valued equity position inside a snapshot.
type Line struct {
	ISIN               string  `json:"isin"`
	MIC                string  `json:"mic"`
	Name               string  `json:"name"`
	Quantity           float64 `json:"quantity"`
	Weight             float64 `json:"weight"`
	LastPrice          float64 `json:"last_price"`
	PerfSinceOpen      float64 `json:"perf_since_open"`
	PerfSinceLastClose float64 `json:"perf_since_last_close"`
	MarketValue        float64 `json:"market_value"`
	PnL                float64 `json:"pnl"` // open-lot return vs weighted average cost
}

// Snapshot is the full valued state of the portfolio at one date. Every line
// is priced from the same data pull, so the snapshot is internally
// consistent even while the market moves.
type Snapshot struct {
	Date        time.Time `json:"date"`
	Live        bool      `json:"live"` // true when priced from the live gateway
	Lines       []Line    `json:"lines"`
	Cash        float64   `json:"cash"`
	CashWeight  float64   `json:"cash_weight"`
	MarketValue float64   `json:"market_value"`
	Perf        float64   `json:"perf"` // portfolio daily performance
}

// NAVRecord is one entry in the net asset value history.
type NAVRecord struct {
	Date      time.Time `json:"date"`
	Assets    float64   `json:"assets"`
	Shares    float64   `json:"shares"`
	Cashflows float64   `json:"cashflows"`
}

// NAV returns the per-share net asset value.
func (r NAVRecord) NAV() float64 {
	if r.Shares == 0 {
		return 0
	}
	return r.Assets / r.Shares
}
