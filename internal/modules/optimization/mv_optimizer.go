package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/helmsman/internal/domain"
)

// MVOptimizer solves minimum-variance problems for one portfolio: a fixed
// instrument universe, expected-return vector, annualized covariance matrix
// and cash weight. Instances are immutable after construction.
type MVOptimizer struct {
	isins      []string
	mu         []float64 // mean daily returns, ordered like isins
	sigma      *mat.SymDense
	cashWeight float64
	log        zerolog.Logger
}

// NewMVOptimizer creates a new mean-variance optimizer.
func NewMVOptimizer(isins []string, meanReturns []float64, cov *mat.SymDense, cashWeight float64, log zerolog.Logger) (*MVOptimizer, error) {
	n := len(isins)
	if n == 0 {
		return nil, &domain.ConfigurationError{Param: "instruments", Detail: "no instruments to optimize"}
	}
	if len(meanReturns) != n {
		return nil, &domain.ConfigurationError{
			Param:  "mean_returns",
			Detail: fmt.Sprintf("%d mean returns for %d instruments", len(meanReturns), n),
		}
	}
	if r, _ := cov.Dims(); r != n {
		return nil, &domain.ConfigurationError{
			Param:  "covariance",
			Detail: fmt.Sprintf("%dx%d covariance matrix for %d instruments", r, r, n),
		}
	}
	if cashWeight < 0 || cashWeight >= 1 {
		return nil, &domain.ConfigurationError{
			Param:  "cash_weight",
			Detail: fmt.Sprintf("must be in [0, 1), got %v", cashWeight),
		}
	}

	return &MVOptimizer{
		isins:      isins,
		mu:         meanReturns,
		sigma:      cov,
		cashWeight: cashWeight,
		log:        log.With().Str("component", "mv_optimizer").Logger(),
	}, nil
}

// MinimumVariance solves
//
//	min  w' Sigma w
//	s.t. sum(w) + cashWeight = 1
//	     w . mu >= targetReturn   (when targetReturn is non-nil)
//	     0 <= w_i <= 1
//
// via a penalty reformulation. The infeasible initial guess is never
// returned: a solve that does not converge is an OptimizationError.
func (o *MVOptimizer) MinimumVariance(targetReturn *float64) (*Result, error) {
	n := len(o.isins)
	penaltyWeight := 1000.0
	riskyBudget := 1.0 - o.cashWeight

	// Mean daily returns live on a much smaller scale than weights, so the
	// return-floor penalty is normalized by the largest mean magnitude to
	// keep it comparable to the budget penalty.
	muScale := 0.0
	for _, m := range o.mu {
		if a := math.Abs(m); a > muScale {
			muScale = a
		}
	}
	returnPenalty := 0.0
	if muScale > 0 {
		returnPenalty = penaltyWeight / (muScale * muScale)
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			xProj := projectToBounds(x)

			variance := o.variance(xProj)
			obj := variance

			// Penalty for the budget constraint: (sum + cash - 1)^2
			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xProj[i]
			}
			obj += penaltyWeight * (sum + o.cashWeight - 1.0) * (sum + o.cashWeight - 1.0)

			// One-sided penalty for the return floor
			if targetReturn != nil {
				shortfall := *targetReturn - o.expectedReturn(xProj)
				if shortfall > 0 {
					obj += returnPenalty * shortfall * shortfall
				}
			}

			return obj
		},
		Grad: func(grad, x []float64) {
			xProj := projectToBounds(x)

			// Gradient of w' Sigma w
			for i := 0; i < n; i++ {
				grad[i] = 0
				for j := 0; j < n; j++ {
					grad[i] += 2 * o.sigma.At(i, j) * xProj[j]
				}
			}

			// Gradient of the budget penalty
			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xProj[i]
			}
			for i := 0; i < n; i++ {
				grad[i] += 2 * penaltyWeight * (sum + o.cashWeight - 1.0)
			}

			// Gradient of the return floor penalty
			if targetReturn != nil {
				shortfall := *targetReturn - o.expectedReturn(xProj)
				if shortfall > 0 {
					for i := 0; i < n; i++ {
						grad[i] -= 2 * returnPenalty * shortfall * o.mu[i]
					}
				}
			}
		},
	}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = riskyBudget / float64(n)
	}

	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
	if err != nil {
		return nil, &domain.OptimizationError{Reason: err.Error()}
	}

	successStatuses := map[optimize.Status]bool{
		optimize.Success:             true,
		optimize.GradientThreshold:   true,
		optimize.FunctionConvergence: true,
	}
	if !successStatuses[result.Status] {
		// Retry with a gradient-based method before giving up
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
		if err != nil {
			return nil, &domain.OptimizationError{Reason: err.Error()}
		}
		if !successStatuses[result.Status] {
			return nil, &domain.OptimizationError{
				Reason: fmt.Sprintf("solver did not converge: status=%v", result.Status),
			}
		}
	}

	// Project the solution to bounds and rescale the risky sleeve so the
	// budget constraint holds exactly.
	weights := projectToBounds(result.X)
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return nil, &domain.OptimizationError{Reason: "solver collapsed all weights to zero"}
	}
	for i := range weights {
		weights[i] *= riskyBudget / sum
	}

	variance := o.variance(weights)
	expectedReturn := o.expectedReturn(weights)

	if targetReturn != nil && expectedReturn < *targetReturn-1e-6 {
		return nil, &domain.OptimizationError{
			Reason: fmt.Sprintf("return floor infeasible: achieved %v, target %v", expectedReturn, *targetReturn),
		}
	}

	o.log.Debug().
		Float64("variance", variance).
		Float64("expected_return", expectedReturn).
		Msg("Minimum variance solve converged")

	return &Result{
		ISINs:          o.isins,
		Weights:        weights,
		CashWeight:     o.cashWeight,
		Variance:       variance,
		Volatility:     math.Sqrt(variance),
		ExpectedReturn: expectedReturn,
	}, nil
}

// GlobalMinimumVariance solves without a return floor.
func (o *MVOptimizer) GlobalMinimumVariance() (*Result, error) {
	return o.MinimumVariance(nil)
}

// OptimizeCurrent re-optimizes at the current portfolio's own expected
// return: same or better return at minimum risk.
func (o *MVOptimizer) OptimizeCurrent(currentWeights []float64) (*Result, error) {
	if len(currentWeights) != len(o.isins) {
		return nil, &domain.ConfigurationError{
			Param:  "current_weights",
			Detail: fmt.Sprintf("%d weights for %d instruments", len(currentWeights), len(o.isins)),
		}
	}
	target := o.expectedReturn(currentWeights)
	return o.MinimumVariance(&target)
}

// EfficientFrontier sweeps the return floor linearly from the GMV return to
// the maximum single-instrument return scaled by the risky budget. When the
// sweep range is degenerate, meaning no instrument can out-earn the GMV
// portfolio, the frontier collapses to the GMV point alone and the solver
// is never called with an unreachable floor.
func (o *MVOptimizer) EfficientFrontier(nPoints int) ([]FrontierPoint, error) {
	if nPoints < 1 {
		return nil, &domain.ConfigurationError{Param: "n_points", Detail: "must be at least 1"}
	}

	gmv, err := o.GlobalMinimumVariance()
	if err != nil {
		return nil, err
	}

	maxReturn := o.mu[0]
	for _, r := range o.mu[1:] {
		if r > maxReturn {
			maxReturn = r
		}
	}
	maxTarget := maxReturn * (1.0 - o.cashWeight)

	if maxTarget <= gmv.ExpectedReturn+1e-12 || nPoints == 1 {
		return []FrontierPoint{{
			Volatility:     gmv.Volatility,
			ExpectedReturn: gmv.ExpectedReturn,
			Weights:        gmv.Weights,
		}}, nil
	}

	points := make([]FrontierPoint, 0, nPoints)
	step := (maxTarget - gmv.ExpectedReturn) / float64(nPoints-1)
	for i := 0; i < nPoints; i++ {
		target := gmv.ExpectedReturn + float64(i)*step
		res, err := o.MinimumVariance(&target)
		if err != nil {
			return nil, err
		}
		points = append(points, FrontierPoint{
			Volatility:     res.Volatility,
			ExpectedReturn: res.ExpectedReturn,
			Weights:        res.Weights,
		})
	}

	return points, nil
}

// Variance evaluates w' Sigma w for an arbitrary weight vector.
func (o *MVOptimizer) Variance(weights []float64) float64 {
	return o.variance(weights)
}

// ExpectedReturn evaluates w . mu for an arbitrary weight vector.
func (o *MVOptimizer) ExpectedReturn(weights []float64) float64 {
	return o.expectedReturn(weights)
}

func (o *MVOptimizer) variance(w []float64) float64 {
	n := len(w)
	var v float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v += w[i] * w[j] * o.sigma.At(i, j)
		}
	}
	return v
}

func (o *MVOptimizer) expectedReturn(w []float64) float64 {
	var r float64
	for i := range w {
		r += w[i] * o.mu[i]
	}
	return r
}

// projectToBounds clamps every weight into [0, 1].
func projectToBounds(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Min(1.0, math.Max(0.0, v))
	}
	return out
}
