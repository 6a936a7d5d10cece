package risk

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/helmsman/internal/domain"
	"github.com/aristath/helmsman/internal/modules/ledger"
	"github.com/aristath/helmsman/internal/modules/portfolio"
	"github.com/aristath/helmsman/internal/modules/quotes"
	"github.com/aristath/helmsman/pkg/formulas"
)

// MinVaRObservations is the observation count below which a historical VaR
// estimate is flagged low-confidence.
const MinVaRObservations = 20

// WeightMode selects how the VaR simulation weights historical prices.
type WeightMode string

const (
	// WeightModeCurrent applies today's quantities retroactively to the
	// whole price history. This is the default.
	WeightModeCurrent WeightMode = "current"
	// WeightModeHistorical reconstructs the quantities actually held on
	// each historical date.
	WeightModeHistorical WeightMode = "historical"
)

// Config holds the risk service parameters.
type Config struct {
	RiskFreeRate  float64
	LookbackDays  int
	VaRPercentile int
	VaRWeightMode WeightMode
}

// Report is the full risk assessment of a portfolio snapshot.
type Report struct {
	Date                 time.Time   `json:"date"`
	ISINs                []string    `json:"isins"`
	AnnualizedVolatility float64     `json:"annualized_volatility"`
	NAVVolatility        float64     `json:"nav_volatility"`
	SharpeRatio          float64     `json:"sharpe_ratio"`
	ValueAtRisk          float64     `json:"value_at_risk"`
	VaRLowConfidence     bool        `json:"var_low_confidence"`
	CorrelationMatrix    [][]float64 `json:"correlation_matrix"`
	SimulatedLosses      []float64   `json:"simulated_losses"`
}

// Service computes portfolio risk measures.
type Service struct {
	valuator *portfolio.Valuator
	ledger   *ledger.Service
	quotes   *quotes.Repository
	navRepo  *portfolio.NAVRepository
	returns  *ReturnsBuilder
	cfg      Config
	log      zerolog.Logger
}

// NewService creates a new risk service
func NewService(
	valuator *portfolio.Valuator,
	ledgerSvc *ledger.Service,
	quotesRepo *quotes.Repository,
	navRepo *portfolio.NAVRepository,
	cfg Config,
	log zerolog.Logger,
) *Service {
	if cfg.VaRWeightMode == "" {
		cfg.VaRWeightMode = WeightModeCurrent
	}
	return &Service{
		valuator: valuator,
		ledger:   ledgerSvc,
		quotes:   quotesRepo,
		navRepo:  navRepo,
		returns:  NewReturnsBuilder(quotesRepo),
		cfg:      cfg,
		log:      log.With().Str("service", "risk").Logger(),
	}
}

// Assess values the portfolio live and computes the full risk report.
func (s *Service) Assess(ctx context.Context) (*Report, error) {
	snap, err := s.valuator.LiveSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.AssessSnapshot(snap)
}

// AssessSnapshot computes the full risk report for an existing snapshot.
func (s *Service) AssessSnapshot(snap *portfolio.Snapshot) (*Report, error) {
	if len(snap.Lines) == 0 {
		return nil, &domain.ConfigurationError{Param: "portfolio", Detail: "no open equity positions to assess"}
	}

	isins := make([]string, len(snap.Lines))
	weights := make([]float64, len(snap.Lines))
	quantities := make(map[string]float64, len(snap.Lines))
	for i, line := range snap.Lines {
		isins[i] = line.ISIN
		weights[i] = line.Weight
		quantities[line.ISIN] = line.Quantity
	}

	returns, err := s.returns.HistoricalReturns(isins, s.cfg.LookbackDays)
	if err != nil {
		return nil, err
	}

	cov := CovarianceMatrix(returns)
	volatility := math.Sqrt(PortfolioVariance(weights, cov))

	corr := CorrelationMatrix(returns)
	n := len(isins)
	corrRows := make([][]float64, n)
	for i := 0; i < n; i++ {
		corrRows[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			corrRows[i][j] = corr.At(i, j)
		}
	}

	sharpe := s.sharpeRatio(weights, returns, volatility)

	losses, valueAtRisk, err := s.valueAtRisk(snap.Date, isins, quantities)
	if err != nil {
		return nil, err
	}

	navVol, err := s.navVolatility()
	if err != nil {
		return nil, err
	}

	report := &Report{
		Date:                 snap.Date,
		ISINs:                isins,
		AnnualizedVolatility: volatility,
		NAVVolatility:        navVol,
		SharpeRatio:          sharpe,
		ValueAtRisk:          valueAtRisk,
		VaRLowConfidence:     len(losses) < MinVaRObservations,
		CorrelationMatrix:    corrRows,
		SimulatedLosses:      losses,
	}

	s.log.Info().
		Float64("volatility", volatility).
		Float64("sharpe", sharpe).
		Float64("var", valueAtRisk).
		Msg("Risk report computed")

	return report, nil
}

// sharpeRatio computes the portfolio Sharpe ratio. The annualized portfolio
// return compounds each instrument's mean daily return over a trading year
// and sums them by weight. The alternative convention, mean times 252, was
// rejected: it understates multi-period growth and the two must not be
// mixed within one codebase.
func (s *Service) sharpeRatio(weights []float64, returns [][]float64, volatility float64) float64 {
	var annualizedReturn float64
	for i, series := range returns {
		annualizedReturn += weights[i] * formulas.CompoundAnnualize(formulas.Mean(series))
	}
	return formulas.SharpeRatio(annualizedReturn, volatility, s.cfg.RiskFreeRate)
}

// navVolatility is the standard deviation of the portfolio's own NAV
// returns since inception. Fewer than two records yields zero.
func (s *Service) navVolatility() (float64, error) {
	navReturns, err := s.navRepo.Returns()
	if err != nil {
		return 0, err
	}
	if len(navReturns) < 2 {
		return 0, nil
	}
	return formulas.StdDev(navReturns), nil
}

// ValueAtRisk computes the historical-simulation VaR for the given method.
// Only "historical" is supported; parametric and Monte Carlo estimates are
// rejected as unsupported configuration.
func (s *Service) ValueAtRisk(ctx context.Context, method string) (float64, []float64, bool, error) {
	if method != "historical" {
		return 0, nil, false, &domain.ConfigurationError{
			Param:  "var_method",
			Detail: fmt.Sprintf("unsupported method %q, only historical simulation is available", method),
		}
	}

	snap, err := s.valuator.LiveSnapshot(ctx)
	if err != nil {
		return 0, nil, false, err
	}
	if len(snap.Lines) == 0 {
		return 0, nil, false, &domain.ConfigurationError{Param: "portfolio", Detail: "no open equity positions"}
	}

	isins := make([]string, len(snap.Lines))
	quantities := make(map[string]float64, len(snap.Lines))
	for i, line := range snap.Lines {
		isins[i] = line.ISIN
		quantities[line.ISIN] = line.Quantity
	}

	losses, valueAtRisk, err := s.valueAtRisk(snap.Date, isins, quantities)
	if err != nil {
		return 0, nil, false, err
	}
	return valueAtRisk, losses, len(losses) < MinVaRObservations, nil
}

// valueAtRisk runs the historical simulation: rebuild the portfolio's daily
// mark-to-market value over the lookback window, difference it into daily
// P&L, and pick the loss at the requested percentile rank.
func (s *Service) valueAtRisk(asOf time.Time, isins []string, currentQuantities map[string]float64) ([]float64, float64, error) {
	marketValues, err := s.simulatedMarketValues(isins, currentQuantities)
	if err != nil {
		return nil, 0, err
	}
	if len(marketValues) < 2 {
		return nil, 0, &domain.InsufficientHistoryError{
			ISIN:      isins[0],
			Requested: s.cfg.LookbackDays,
			Available: len(marketValues) - 1,
		}
	}

	losses := make([]float64, 0, len(marketValues)-1)
	for i := 1; i < len(marketValues); i++ {
		losses = append(losses, -(marketValues[i] - marketValues[i-1]))
	}
	sort.Float64s(losses)

	valueAtRisk, err := LossAtPercentile(losses, s.cfg.VaRPercentile)
	if err != nil {
		return nil, 0, err
	}

	s.log.Debug().
		Time("as_of", asOf).
		Int("observations", len(losses)).
		Float64("var", valueAtRisk).
		Msg("Historical VaR simulated")

	return losses, valueAtRisk, nil
}

// simulatedMarketValues rebuilds the portfolio's daily value over the
// lookback window, oldest first. In current-weights mode today's quantities
// apply across the whole window; in historical mode the quantities actually
// held on each date are reconstructed from the ledger.
func (s *Service) simulatedMarketValues(isins []string, currentQuantities map[string]float64) ([]float64, error) {
	window := s.cfg.LookbackDays + 1

	series := make(map[string][]quotes.Close, len(isins))
	for _, isin := range isins {
		closes, err := s.quotes.RecentCloses(isin, window)
		if err != nil {
			return nil, err
		}
		if len(closes) < window {
			return nil, &domain.InsufficientHistoryError{
				ISIN:      isin,
				Requested: s.cfg.LookbackDays,
				Available: len(closes) - 1,
			}
		}
		// Reverse to oldest first
		for i, j := 0, len(closes)-1; i < j; i, j = i+1, j-1 {
			closes[i], closes[j] = closes[j], closes[i]
		}
		series[isin] = closes
	}

	// All instruments trade the same calendar, so rows align by index. A
	// date mismatch means the stores disagree and the simulation would mix
	// sessions.
	reference := series[isins[0]]
	for _, isin := range isins[1:] {
		for i, c := range series[isin] {
			if !c.Date.Equal(reference[i].Date) {
				return nil, &domain.DataIntegrityError{
					Detail: fmt.Sprintf("price calendars misaligned: %s has %s where %s has %s",
						isin, c.Date.Format("2006-01-02"), isins[0], reference[i].Date.Format("2006-01-02")),
				}
			}
		}
	}

	marketValues := make([]float64, window)
	for i := 0; i < window; i++ {
		quantities := currentQuantities
		if s.cfg.VaRWeightMode == WeightModeHistorical {
			_, positions, err := s.ledger.PositionsAsOf(reference[i].Date)
			if err != nil {
				return nil, err
			}
			quantities = make(map[string]float64, len(positions))
			for isin, pos := range positions {
				quantities[isin] = pos.Quantity
			}
		}

		for _, isin := range isins {
			marketValues[i] += quantities[isin] * series[isin][i].Price
		}
	}

	return marketValues, nil
}

// LossAtPercentile picks the loss at the percentile rank from a series
// sorted ascending (worst losses last). The rank counts from the worst end:
// rank = round(percentile/100 x N), and the reported value is the smallest
// of the worst `rank` losses.
func LossAtPercentile(sortedLosses []float64, percentile int) (float64, error) {
	n := len(sortedLosses)
	if n == 0 {
		return 0, &domain.ConfigurationError{Param: "var_percentile", Detail: "empty loss series"}
	}
	rank := int(math.Round(float64(percentile) / 100 * float64(n)))
	if rank < 1 || rank > n {
		return 0, &domain.ConfigurationError{
			Param:  "var_percentile",
			Detail: fmt.Sprintf("percentile %d yields rank %d outside [1, %d]", percentile, rank, n),
		}
	}
	return sortedLosses[n-rank], nil
}
