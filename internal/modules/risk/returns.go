// Package risk computes volatility, correlation, Sharpe ratio and
// historical-simulation Value-at-Risk from stored price history.
package risk

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/helmsman/internal/domain"
	"github.com/aristath/helmsman/internal/modules/quotes"
	"github.com/aristath/helmsman/pkg/formulas"
)

// ReturnsBuilder assembles aligned return matrices from stored daily closes.
type ReturnsBuilder struct {
	quotes *quotes.Repository
}

// NewReturnsBuilder creates a new returns builder
func NewReturnsBuilder(quotesRepo *quotes.Repository) *ReturnsBuilder {
	return &ReturnsBuilder{quotes: quotesRepo}
}

// HistoricalReturns builds an N x T matrix of daily returns, one row per
// instrument, each row exactly lookbackDays long. An instrument with fewer
// observations than requested fails the whole build: quietly shortening one
// row would misalign the matrix and bias the covariance estimate.
func (b *ReturnsBuilder) HistoricalReturns(isins []string, lookbackDays int) ([][]float64, error) {
	if lookbackDays < 1 {
		return nil, &domain.ConfigurationError{Param: "lookback_days", Detail: "must be at least 1"}
	}

	returns := make([][]float64, 0, len(isins))
	for _, isin := range isins {
		closes, err := b.quotes.RecentCloses(isin, lookbackDays+1)
		if err != nil {
			return nil, err
		}
		if len(closes) < lookbackDays+1 {
			available := len(closes) - 1
			if available < 0 {
				available = 0
			}
			return nil, &domain.InsufficientHistoryError{
				ISIN:      isin,
				Requested: lookbackDays,
				Available: available,
			}
		}

		// RecentCloses is newest first; returns are computed oldest first
		prices := make([]float64, len(closes))
		for i, c := range closes {
			prices[len(closes)-1-i] = c.Price
		}
		returns = append(returns, formulas.PctChange(prices))
	}

	return returns, nil
}

// CovarianceMatrix computes the annualized covariance of a return matrix
// (N rows of T observations each).
func CovarianceMatrix(returns [][]float64) *mat.SymDense {
	n := len(returns)
	if n == 0 {
		return mat.NewSymDense(0, nil)
	}
	t := len(returns[0])

	// gonum expects observations in rows and variables in columns
	samples := mat.NewDense(t, n, nil)
	for col, series := range returns {
		for row, v := range series {
			samples.Set(row, col, v)
		}
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, samples, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, cov.At(i, j)*formulas.TradingDaysPerYear)
		}
	}
	return cov
}

// CorrelationMatrix computes the Pearson correlation of a return matrix.
func CorrelationMatrix(returns [][]float64) *mat.SymDense {
	n := len(returns)
	if n == 0 {
		return mat.NewSymDense(0, nil)
	}
	t := len(returns[0])

	samples := mat.NewDense(t, n, nil)
	for col, series := range returns {
		for row, v := range series {
			samples.Set(row, col, v)
		}
	}

	corr := mat.NewSymDense(n, nil)
	stat.CorrelationMatrix(corr, samples, nil)
	return corr
}

// PortfolioVariance computes w' Sigma w.
func PortfolioVariance(weights []float64, cov *mat.SymDense) float64 {
	w := mat.NewVecDense(len(weights), weights)
	var tmp mat.VecDense
	tmp.MulVec(cov, w)
	return mat.Dot(w, &tmp)
}

// MeanReturns computes the per-instrument daily mean return of a matrix.
func MeanReturns(returns [][]float64) []float64 {
	means := make([]float64, len(returns))
	for i, series := range returns {
		means[i] = formulas.Mean(series)
	}
	return means
}
