package screener

import (
	"fmt"
	"math"
	"sort"
	"strings"

	talib "github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/aristath/helmsman/internal/domain"
	"github.com/aristath/helmsman/internal/modules/quotes"
)

// RSIPeriod and SMAPeriod are the windows used by the momentum metrics.
const (
	RSIPeriod = 14
	SMAPeriod = 50
)

// MetricInput feeds one instrument's data into a metric function.
type MetricInput struct {
	Fundamentals Fundamentals
	Price        float64
	Closes       []float64 // oldest first
}

// MetricFunc computes one metric for one instrument. A metric that cannot
// be computed from the available data returns an error and excludes the
// instrument from the screen.
type MetricFunc func(in MetricInput) (float64, error)

// Range is the open interval a metric must fall into to pass a filter.
type Range struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Result is one instrument that passed every filter of a screen.
type Result struct {
	ISIN    string             `json:"isin"`
	Name    string             `json:"name"`
	Sector  string             `json:"sector"`
	Metrics map[string]float64 `json:"metrics"`
}

// metricRegistry dispatches metric names to their implementations. Names are
// validated against it when a screen is constructed, never at run time.
var metricRegistry = map[string]MetricFunc{
	"eps":              metricEPS,
	"per":              metricPER,
	"roe":              metricROE,
	"gearing":          metricGearing,
	"operating_margin": metricOperatingMargin,
	"rsi":              metricRSI,
	"sma_ratio":        metricSMARatio,
}

// AvailableMetrics returns the sorted metric names the screener supports.
func AvailableMetrics() []string {
	names := make([]string, 0, len(metricRegistry))
	for name := range metricRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Screen is a validated set of metric filters.
type Screen struct {
	filters map[string]Range
}

// NewScreen validates the filter names against the metric registry. An
// unknown metric is a ConfigurationError at construction, so a bad screen
// never reaches the data layer.
func NewScreen(filters map[string]Range) (*Screen, error) {
	if len(filters) == 0 {
		return nil, &domain.ConfigurationError{Param: "filters", Detail: "at least one metric filter is required"}
	}
	for name := range filters {
		if _, ok := metricRegistry[name]; !ok {
			return nil, &domain.ConfigurationError{
				Param:  "filters",
				Detail: fmt.Sprintf("unknown metric %q, available: %s", name, strings.Join(AvailableMetrics(), ", ")),
			}
		}
	}
	return &Screen{filters: filters}, nil
}

// Service runs screens over the stored fundamentals and price history.
type Service struct {
	repo   *Repository
	quotes *quotes.Repository
	log    zerolog.Logger
}

// NewService creates a new screener service
func NewService(repo *Repository, quotesRepo *quotes.Repository, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		quotes: quotesRepo,
		log:    log.With().Str("service", "screener").Logger(),
	}
}

// Run evaluates the screen over every instrument with stored fundamentals.
// An instrument passes only if every filtered metric is computable and
// falls strictly inside its range.
func (s *Service) Run(screen *Screen) ([]Result, error) {
	all, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, f := range all {
		in, err := s.buildInput(f)
		if err != nil {
			// No price history for this instrument, skip it
			s.log.Debug().Str("isin", f.ISIN).Err(err).Msg("Skipping instrument")
			continue
		}

		metrics := make(map[string]float64, len(screen.filters))
		pass := true
		for name, rng := range screen.filters {
			value, err := metricRegistry[name](in)
			if err != nil {
				pass = false
				break
			}
			if value <= rng.Lower || value >= rng.Upper {
				pass = false
				break
			}
			metrics[name] = value
		}

		if pass {
			results = append(results, Result{
				ISIN:    f.ISIN,
				Name:    f.Name,
				Sector:  f.Sector,
				Metrics: metrics,
			})
		}
	}

	s.log.Info().
		Int("universe", len(all)).
		Int("passed", len(results)).
		Msg("Screen completed")

	return results, nil
}

func (s *Service) buildInput(f Fundamentals) (MetricInput, error) {
	latest, err := s.quotes.LatestPrice(f.ISIN)
	if err != nil {
		return MetricInput{}, err
	}

	// Momentum metrics need a SMA-period window plus headroom for the
	// indicator warmup.
	recent, err := s.quotes.RecentCloses(f.ISIN, SMAPeriod+RSIPeriod)
	if err != nil {
		return MetricInput{}, err
	}
	closes := make([]float64, len(recent))
	for i, c := range recent {
		closes[len(recent)-1-i] = c.Price
	}

	return MetricInput{Fundamentals: f, Price: latest.Price, Closes: closes}, nil
}

func metricEPS(in MetricInput) (float64, error) {
	if in.Fundamentals.SharesOutstanding == 0 {
		return 0, fmt.Errorf("no shares outstanding for %s", in.Fundamentals.ISIN)
	}
	return in.Fundamentals.NetIncome / in.Fundamentals.SharesOutstanding, nil
}

func metricPER(in MetricInput) (float64, error) {
	eps, err := metricEPS(in)
	if err != nil {
		return 0, err
	}
	if eps == 0 {
		return 0, fmt.Errorf("zero EPS for %s", in.Fundamentals.ISIN)
	}
	return in.Price / eps, nil
}

func metricROE(in MetricInput) (float64, error) {
	if in.Fundamentals.TotalEquity == 0 {
		return 0, fmt.Errorf("zero total equity for %s", in.Fundamentals.ISIN)
	}
	return in.Fundamentals.NetIncome / in.Fundamentals.TotalEquity, nil
}

func metricGearing(in MetricInput) (float64, error) {
	if in.Fundamentals.TotalEquity == 0 {
		return 0, fmt.Errorf("zero total equity for %s", in.Fundamentals.ISIN)
	}
	return in.Fundamentals.TotalDebt / in.Fundamentals.TotalEquity, nil
}

func metricOperatingMargin(in MetricInput) (float64, error) {
	if in.Fundamentals.Revenue == 0 {
		return 0, fmt.Errorf("zero revenue for %s", in.Fundamentals.ISIN)
	}
	return in.Fundamentals.OperatingIncome / in.Fundamentals.Revenue, nil
}

func metricRSI(in MetricInput) (float64, error) {
	if len(in.Closes) < RSIPeriod+1 {
		return 0, fmt.Errorf("need %d closes for RSI, have %d", RSIPeriod+1, len(in.Closes))
	}
	rsi := talib.Rsi(in.Closes, RSIPeriod)
	value := rsi[len(rsi)-1]
	if math.IsNaN(value) {
		return 0, fmt.Errorf("RSI undefined for %s", in.Fundamentals.ISIN)
	}
	return value, nil
}

func metricSMARatio(in MetricInput) (float64, error) {
	if len(in.Closes) < SMAPeriod {
		return 0, fmt.Errorf("need %d closes for SMA, have %d", SMAPeriod, len(in.Closes))
	}
	sma := talib.Sma(in.Closes, SMAPeriod)
	value := sma[len(sma)-1]
	if value == 0 || math.IsNaN(value) {
		return 0, fmt.Errorf("SMA undefined for %s", in.Fundamentals.ISIN)
	}
	return in.Price / value, nil
}
