package optimization

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/helmsman/internal/cache"
	"github.com/aristath/helmsman/internal/modules/portfolio"
	"github.com/aristath/helmsman/internal/modules/risk"
)

// frontierCacheTTL bounds how stale a cached frontier may be. Frontier
// solves walk the whole price history, so repeated chart requests within
// a session should not re-run them.
const frontierCacheTTL = 15 * time.Minute

// Service builds optimizers from the live portfolio and runs solves.
type Service struct {
	valuator     *portfolio.Valuator
	returns      *risk.ReturnsBuilder
	cacheRepo    *cache.Repository
	lookbackDays int
	log          zerolog.Logger
}

// NewService creates a new optimization service. cacheRepo may be nil,
// which disables frontier caching.
func NewService(valuator *portfolio.Valuator, returns *risk.ReturnsBuilder, cacheRepo *cache.Repository, lookbackDays int, log zerolog.Logger) *Service {
	return &Service{
		valuator:     valuator,
		returns:      returns,
		cacheRepo:    cacheRepo,
		lookbackDays: lookbackDays,
		log:          log.With().Str("service", "optimization").Logger(),
	}
}

// buildOptimizer values the portfolio live and assembles the optimizer
// inputs from its open positions.
func (s *Service) buildOptimizer(ctx context.Context) (*MVOptimizer, []float64, error) {
	snap, err := s.valuator.LiveSnapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	isins := make([]string, len(snap.Lines))
	currentWeights := make([]float64, len(snap.Lines))
	for i, line := range snap.Lines {
		isins[i] = line.ISIN
		currentWeights[i] = line.Weight
	}

	returns, err := s.returns.HistoricalReturns(isins, s.lookbackDays)
	if err != nil {
		return nil, nil, err
	}

	opt, err := NewMVOptimizer(isins, risk.MeanReturns(returns), risk.CovarianceMatrix(returns), snap.CashWeight, s.log)
	if err != nil {
		return nil, nil, err
	}
	return opt, currentWeights, nil
}

// MinimumVariance solves at an explicit daily return floor, or the
// unconstrained problem when targetReturn is nil.
func (s *Service) MinimumVariance(ctx context.Context, targetReturn *float64) (*Result, error) {
	opt, _, err := s.buildOptimizer(ctx)
	if err != nil {
		return nil, err
	}
	return opt.MinimumVariance(targetReturn)
}

// GlobalMinimumVariance solves the unconstrained-return problem for the
// live portfolio.
func (s *Service) GlobalMinimumVariance(ctx context.Context) (*Result, error) {
	opt, _, err := s.buildOptimizer(ctx)
	if err != nil {
		return nil, err
	}
	return opt.GlobalMinimumVariance()
}

// OptimizeCurrent re-optimizes the live portfolio at its own expected
// return.
func (s *Service) OptimizeCurrent(ctx context.Context) (*Result, error) {
	opt, currentWeights, err := s.buildOptimizer(ctx)
	if err != nil {
		return nil, err
	}
	return opt.OptimizeCurrent(currentWeights)
}

// Frontier computes the efficient frontier for the live portfolio plus the
// GMV, current and optimized reference points for charting.
func (s *Service) Frontier(ctx context.Context, nPoints int) (*Frontier, error) {
	cacheKey := fmt.Sprintf("frontier:%d:%d", nPoints, s.lookbackDays)
	if s.cacheRepo != nil {
		if payload, ok := s.cacheRepo.Get(cacheKey); ok {
			var cached Frontier
			if err := json.Unmarshal(payload, &cached); err == nil {
				s.log.Debug().Str("key", cacheKey).Msg("Frontier served from cache")
				return &cached, nil
			}
		}
	}

	opt, currentWeights, err := s.buildOptimizer(ctx)
	if err != nil {
		return nil, err
	}

	points, err := opt.EfficientFrontier(nPoints)
	if err != nil {
		return nil, err
	}

	gmv, err := opt.GlobalMinimumVariance()
	if err != nil {
		return nil, err
	}

	optimized, err := opt.OptimizeCurrent(currentWeights)
	if err != nil {
		return nil, err
	}

	frontier := &Frontier{
		Points: points,
		Markers: []ScatterPoint{
			{Name: "gmv", Volatility: gmv.Volatility, ExpectedReturn: gmv.ExpectedReturn},
			{
				Name:           "current",
				Volatility:     math.Sqrt(opt.Variance(currentWeights)),
				ExpectedReturn: opt.ExpectedReturn(currentWeights),
			},
			{Name: "optimized", Volatility: optimized.Volatility, ExpectedReturn: optimized.ExpectedReturn},
		},
	}

	if s.cacheRepo != nil {
		if payload, err := json.Marshal(frontier); err == nil {
			if err := s.cacheRepo.Put(cacheKey, payload, frontierCacheTTL); err != nil {
				s.log.Warn().Err(err).Msg("Failed to cache frontier")
			}
		}
	}

	s.log.Info().
		Int("points", len(points)).
		Float64("gmv_volatility", gmv.Volatility).
		Msg("Efficient frontier computed")

	return frontier, nil
}
