// Package optimization solves constrained mean-variance portfolio problems.
package optimization

// Result is the outcome of a single minimum-variance solve. Weights are the
// risky-asset weights ordered like ISINs; together with the cash weight they
// sum to one.
type Result struct {
	ISINs          []string  `json:"isins"`
	Weights        []float64 `json:"weights"`
	CashWeight     float64   `json:"cash_weight"`
	Variance       float64   `json:"variance"`
	Volatility     float64   `json:"volatility"`
	ExpectedReturn float64   `json:"expected_return"`
}

// FrontierPoint is one (volatility, return) pair on the efficient frontier.
type FrontierPoint struct {
	Volatility     float64   `json:"volatility"`
	ExpectedReturn float64   `json:"expected_return"`
	Weights        []float64 `json:"weights"`
}

// ScatterPoint is a named reference portfolio drawn alongside the frontier.
type ScatterPoint struct {
	Name           string  `json:"name"`
	Volatility     float64 `json:"volatility"`
	ExpectedReturn float64 `json:"expected_return"`
}

// Frontier is the efficient frontier curve plus reference portfolios for
// downstream charting.
type Frontier struct {
	Points  []FrontierPoint `json:"points"`
	Markers []ScatterPoint  `json:"markers"`
}
