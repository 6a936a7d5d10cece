package optimization

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/helmsman/internal/domain"
)

// testCov builds a small positive-definite annualized covariance matrix.
func testCov() *mat.SymDense {
	return mat.NewSymDense(3, []float64{
		0.040, 0.006, 0.004,
		0.006, 0.090, 0.010,
		0.004, 0.010, 0.025,
	})
}

func testOptimizer(t *testing.T, cashWeight float64, mu []float64) *MVOptimizer {
	t.Helper()
	opt, err := NewMVOptimizer([]string{"AAA", "BBB", "CCC"}, mu, testCov(), cashWeight, zerolog.Nop())
	require.NoError(t, err)
	return opt
}

func TestNewMVOptimizer_Validation(t *testing.T) {
	cov := testCov()
	mu := []float64{0.0004, 0.0008, 0.0006}

	_, err := NewMVOptimizer(nil, nil, cov, 0, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewMVOptimizer([]string{"AAA", "BBB"}, mu, cov, 0, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewMVOptimizer([]string{"AAA", "BBB", "CCC"}, mu, cov, 1.0, zerolog.Nop())
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	_, err = NewMVOptimizer([]string{"AAA", "BBB", "CCC"}, mu, cov, -0.1, zerolog.Nop())
	assert.Error(t, err)
}

func TestGlobalMinimumVariance_RespectsBudgetAndBounds(t *testing.T) {
	cashWeight := 0.1
	opt := testOptimizer(t, cashWeight, []float64{0.0004, 0.0008, 0.0006})

	res, err := opt.GlobalMinimumVariance()
	require.NoError(t, err)

	sum := 0.0
	for _, w := range res.Weights {
		assert.GreaterOrEqual(t, w, 0.0)
		assert.LessOrEqual(t, w, 1.0)
		sum += w
	}
	// Risky sleeve plus cash is the whole portfolio
	assert.InDelta(t, 1.0-cashWeight, sum, 1e-6)
	assert.InDelta(t, 1.0, sum+res.CashWeight, 1e-6)

	assert.Greater(t, res.Variance, 0.0)
	assert.InDelta(t, opt.Variance(res.Weights), res.Variance, 1e-12)
}

func TestGlobalMinimumVariance_BeatsCurrentPortfolio(t *testing.T) {
	opt := testOptimizer(t, 0.1, []float64{0.0004, 0.0008, 0.0006})

	res, err := opt.GlobalMinimumVariance()
	require.NoError(t, err)

	// Any feasible competing allocation of the same risky budget carries at
	// least the GMV variance.
	competitors := [][]float64{
		{0.30, 0.30, 0.30},
		{0.90, 0.00, 0.00},
		{0.00, 0.90, 0.00},
		{0.00, 0.00, 0.90},
		{0.45, 0.45, 0.00},
		{0.10, 0.20, 0.60},
	}
	for _, w := range competitors {
		assert.LessOrEqual(t, res.Variance, opt.Variance(w)+1e-9)
	}
}

func TestMinimumVariance_ReturnFloorHolds(t *testing.T) {
	opt := testOptimizer(t, 0.1, []float64{0.0004, 0.0008, 0.0006})

	gmv, err := opt.GlobalMinimumVariance()
	require.NoError(t, err)

	// Push the floor above the GMV return, toward the best instrument
	target := 0.0008 * 0.9 * 0.95
	require.Greater(t, target, gmv.ExpectedReturn)

	res, err := opt.MinimumVariance(&target)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, res.ExpectedReturn, target-1e-6)
	// Taking on a return floor above the GMV return costs variance
	assert.GreaterOrEqual(t, res.Variance, gmv.Variance-1e-9)
}

func TestOptimizeCurrent_EqualOrBetterReturnAtMinimumRisk(t *testing.T) {
	opt := testOptimizer(t, 0.1, []float64{0.0004, 0.0008, 0.0006})

	current := []float64{0.2, 0.5, 0.2}
	res, err := opt.OptimizeCurrent(current)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, res.ExpectedReturn, opt.ExpectedReturn(current)-1e-6)
	assert.LessOrEqual(t, res.Variance, opt.Variance(current)+1e-9)
}

func TestEfficientFrontier_SweepsToMaxReturn(t *testing.T) {
	opt := testOptimizer(t, 0.1, []float64{0.0004, 0.0008, 0.0006})

	points, err := opt.EfficientFrontier(5)
	require.NoError(t, err)
	require.Len(t, points, 5)

	// Returns sweep monotonically up from the GMV return
	for i := 1; i < len(points); i++ {
		assert.GreaterOrEqual(t, points[i].ExpectedReturn, points[i-1].ExpectedReturn-1e-9)
	}

	// The last point targets the best instrument's return scaled by the
	// risky budget.
	assert.InDelta(t, 0.0008*0.9, points[len(points)-1].ExpectedReturn, 1e-4)
}

func TestEfficientFrontier_VolatilityNonDecreasingAlongSweep(t *testing.T) {
	opt := testOptimizer(t, 0.1, []float64{0.0004, 0.0008, 0.0006})

	points, err := opt.EfficientFrontier(8)
	require.NoError(t, err)
	require.Len(t, points, 8)

	// The sweep starts at the minimum-variance portfolio, so every higher
	// return floor can only cost volatility.
	for i := 1; i < len(points); i++ {
		assert.GreaterOrEqual(t, points[i].Volatility, points[i-1].Volatility-1e-9,
			"volatility decreased between frontier points %d and %d", i-1, i)
	}

	gmv, err := opt.GlobalMinimumVariance()
	require.NoError(t, err)
	assert.InDelta(t, gmv.Volatility, points[0].Volatility, 1e-6)
}

func TestEfficientFrontier_DegenerateRangeCollapsesToGMV(t *testing.T) {
	// All instruments share one expected return: nothing can out-earn the
	// GMV portfolio, so the sweep range is empty.
	opt := testOptimizer(t, 0.1, []float64{0.0005, 0.0005, 0.0005})

	points, err := opt.EfficientFrontier(10)
	require.NoError(t, err)
	require.Len(t, points, 1)

	gmv, err := opt.GlobalMinimumVariance()
	require.NoError(t, err)
	assert.InDelta(t, gmv.Volatility, points[0].Volatility, 1e-9)
	assert.InDelta(t, gmv.ExpectedReturn, points[0].ExpectedReturn, 1e-9)
}

func TestEfficientFrontier_InvalidPointCount(t *testing.T) {
	opt := testOptimizer(t, 0.1, []float64{0.0004, 0.0008, 0.0006})

	_, err := opt.EfficientFrontier(0)
	require.Error(t, err)

	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
