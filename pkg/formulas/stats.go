// Package formulas provides the shared statistical primitives used by the
// valuation, risk and optimization modules.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization factor applied to daily statistics.
const TradingDaysPerYear = 252

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Variance(data, nil)
}

// PctChange converts prices to simple percentage returns.
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]
func PctChange(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	return returns
}

// Correlation calculates the Pearson correlation coefficient between two series
func Correlation(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Correlation(x, y, nil)
}

// Covariance calculates the sample covariance between two series
func Covariance(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// CompoundAnnualize converts a mean daily return into an annual return by
// compounding over the trading year: (1+mean)^252 - 1.
func CompoundAnnualize(meanDailyReturn float64) float64 {
	return math.Pow(1+meanDailyReturn, TradingDaysPerYear) - 1
}

// SharpeRatio computes (annualized return - risk-free rate) / annualized
// volatility. Returns 0 when volatility is zero.
func SharpeRatio(annualizedReturn, annualizedVol, riskFreeRate float64) float64 {
	if annualizedVol == 0 {
		return 0
	}
	return (annualizedReturn - riskFreeRate) / annualizedVol
}
