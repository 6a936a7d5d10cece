package domain

import (
	"fmt"
	"time"
)

// DataError indicates that a backing store was unreachable or returned
// malformed records. It is fatal to the request that triggered it: the
// valuation layer never retries and never proceeds with partial data.
type DataError struct {
	Store string // "ledger", "quotes", "nav"
	Err   error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error in %s store: %v", e.Store, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// PriceNotFoundError indicates that no price exists for an instrument on the
// requested date. Callers decide whether to exclude the instrument or abort;
// the core never substitutes a zero price.
type PriceNotFoundError struct {
	ISIN string
	Date time.Time
}

func (e *PriceNotFoundError) Error() string {
	return fmt.Sprintf("no price found for %s on %s", e.ISIN, e.Date.Format("2006-01-02"))
}

// DataIntegrityError indicates that a store invariant is violated, such as
// more than one price for an instrument on a single date or a duplicate NAV
// date.
type DataIntegrityError struct {
	Detail string
}

func (e *DataIntegrityError) Error() string {
	return "data integrity violation: " + e.Detail
}

// InsufficientHistoryError indicates that an instrument has fewer return
// observations than the requested lookback window. Silently shortening the
// window would bias the covariance estimate, so this is always fatal.
type InsufficientHistoryError struct {
	ISIN      string
	Requested int
	Available int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: requested %d returns, only %d available",
		e.ISIN, e.Requested, e.Available)
}

// OptimizationError indicates that the solver failed to converge to a
// feasible, optimal point. The infeasible initial guess is never returned.
type OptimizationError struct {
	Reason string
}

func (e *OptimizationError) Error() string {
	return "optimization failed: " + e.Reason
}

// ConfigurationError indicates invalid screen or risk parameters, such as an
// unsupported VaR method or an unknown screener metric.
type ConfigurationError struct {
	Param  string
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %s", e.Param, e.Detail)
}
