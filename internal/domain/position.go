package domain

// AssetType discriminates cash from equity positions.
type AssetType string

const (
	AssetCash   AssetType = "CASH"
	AssetEquity AssetType = "EQUITY"
)

// Position is derived from the transaction log, never stored. For CASH the
// quantity is the cash balance; for EQUITY it is the net share count.
type Position struct {
	AssetType AssetType
	ISIN      string
	MIC       string
	Quantity  float64
}

// EquityPosition is the per-instrument view returned by the position ledger.
type EquityPosition struct {
	ISIN     string  `json:"isin"`
	MIC      string  `json:"mic"`
	Quantity float64 `json:"quantity"`
}
