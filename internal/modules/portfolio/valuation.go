package portfolio

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/helmsman/internal/clients/euronext"
	"github.com/aristath/helmsman/internal/domain"
	"github.com/aristath/helmsman/internal/modules/ledger"
	"github.com/aristath/helmsman/internal/modules/quotes"
)

// MarketDataProvider supplies live session data for an instrument.
type MarketDataProvider interface {
	GetInstrumentDetails(ctx context.Context, isin, mic string) (*euronext.InstrumentDetails, error)
}

// Valuator builds portfolio snapshots from ledger positions, stored closes
// and live market data.
type Valuator struct {
	ledger *ledger.Service
	quotes *quotes.Repository
	market MarketDataProvider
	log    zerolog.Logger
}

// NewValuator creates a new valuator. market may be nil, in which case only
// historical snapshots are available.
func NewValuator(ledgerSvc *ledger.Service, quotesRepo *quotes.Repository, market MarketDataProvider, log zerolog.Logger) *Valuator {
	return &Valuator{
		ledger: ledgerSvc,
		quotes: quotesRepo,
		market: market,
		log:    log.With().Str("service", "valuation").Logger(),
	}
}

// linePricing holds the per-instrument market data gathered before the
// snapshot is assembled.
type linePricing struct {
	name               string
	price              float64
	previousPrice      float64
	perfSinceOpen      float64
	perfSinceLastClose float64
}

// LiveSnapshot values the portfolio at the current moment using the live
// gateway. Any instrument the gateway cannot price fails the whole
// snapshot: a partially priced portfolio would misstate every weight.
func (v *Valuator) LiveSnapshot(ctx context.Context) (*Snapshot, error) {
	if v.market == nil {
		return nil, &domain.ConfigurationError{Param: "market_data", Detail: "no live market data provider configured"}
	}
	return v.snapshot(ctx, time.Now().UTC(), true)
}

// HistoricalSnapshot values the portfolio as of a past date using stored
// daily closes. A missing close for any open position fails the whole
// snapshot. asOf is normalized to UTC midnight so intraday timestamps
// match the stored closes.
func (v *Valuator) HistoricalSnapshot(ctx context.Context, asOf time.Time) (*Snapshot, error) {
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	return v.snapshot(ctx, day, false)
}

func (v *Valuator) snapshot(ctx context.Context, asOf time.Time, live bool) (*Snapshot, error) {
	cash, positions, err := v.ledger.PositionsAsOf(asOf)
	if err != nil {
		return nil, err
	}

	// Stable iteration order so snapshots and their logs are reproducible
	isins := make([]string, 0, len(positions))
	for isin := range positions {
		isins = append(isins, isin)
	}
	sort.Strings(isins)

	pricing := make(map[string]linePricing, len(isins))
	for _, isin := range isins {
		pos := positions[isin]

		var lp linePricing
		if live {
			lp, err = v.livePricing(ctx, pos)
		} else {
			lp, err = v.historicalPricing(pos, asOf)
		}
		if err != nil {
			return nil, err
		}
		pricing[isin] = lp
	}

	// Market value at current and at previous-session prices. Cash enters
	// both totals at face value.
	marketValue := cash
	previousMarketValue := cash
	for _, isin := range isins {
		qty := positions[isin].Quantity
		marketValue += pricing[isin].price * qty
		previousMarketValue += pricing[isin].previousPrice * qty
	}

	snap := &Snapshot{
		Date:        asOf,
		Live:        live,
		Cash:        cash,
		MarketValue: marketValue,
	}
	if marketValue != 0 {
		snap.CashWeight = cash / marketValue
	}

	for _, isin := range isins {
		pos := positions[isin]
		lp := pricing[isin]

		mv := lp.price * pos.Quantity
		line := Line{
			ISIN:               isin,
			MIC:                pos.MIC,
			Name:               lp.name,
			Quantity:           pos.Quantity,
			LastPrice:          lp.price,
			PerfSinceOpen:      lp.perfSinceOpen,
			PerfSinceLastClose: lp.perfSinceLastClose,
			MarketValue:        mv,
		}
		if marketValue != 0 {
			line.Weight = mv / marketValue
		}

		pnl, err := v.openLotPnL(isin, asOf, lp.price)
		if err != nil {
			return nil, err
		}
		line.PnL = pnl

		snap.Lines = append(snap.Lines, line)

		// Portfolio daily performance weights each instrument by its share
		// of the previous session's market value, so the cash sleeve drags
		// the figure toward zero as it should.
		if previousMarketValue != 0 {
			prevWeight := pos.Quantity * lp.previousPrice / previousMarketValue
			snap.Perf += prevWeight * lp.perfSinceLastClose
		}
	}

	v.log.Debug().
		Time("as_of", asOf).
		Bool("live", live).
		Int("lines", len(snap.Lines)).
		Float64("market_value", snap.MarketValue).
		Msg("Snapshot built")

	return snap, nil
}

func (v *Valuator) livePricing(ctx context.Context, pos domain.EquityPosition) (linePricing, error) {
	details, err := v.market.GetInstrumentDetails(ctx, pos.ISIN, pos.MIC)
	if err != nil {
		return linePricing{}, fmt.Errorf("live pricing failed for %s: %w", pos.ISIN, err)
	}

	lp := linePricing{
		name:               details.Name,
		price:              details.LastPrice,
		previousPrice:      details.PreviousClose,
		perfSinceLastClose: details.PerfSinceLastClose,
	}
	if details.OpenPrice != 0 {
		lp.perfSinceOpen = details.LastPrice/details.OpenPrice - 1
	}
	return lp, nil
}

func (v *Valuator) historicalPricing(pos domain.EquityPosition, asOf time.Time) (linePricing, error) {
	price, err := v.quotes.PriceOn(pos.ISIN, asOf)
	if err != nil {
		return linePricing{}, err
	}

	prev, err := v.quotes.LastCloseBefore(pos.ISIN, asOf)
	if err != nil {
		return linePricing{}, err
	}

	lp := linePricing{
		name:          v.instrumentName(pos.ISIN, asOf),
		price:         price,
		previousPrice: prev.Price,
	}
	if prev.Price != 0 {
		lp.perfSinceLastClose = price/prev.Price - 1
	}
	// Intraday opens are not stored, so a historical session's performance
	// since open equals its close-to-close performance.
	lp.perfSinceOpen = lp.perfSinceLastClose
	return lp, nil
}

// instrumentName recovers the display name from the most recent transaction.
func (v *Valuator) instrumentName(isin string, asOf time.Time) string {
	txns, err := v.ledger.TransactionsFor(isin, asOf)
	if err != nil {
		return ""
	}
	for _, txn := range txns {
		if txn.Name != "" {
			return txn.Name
		}
	}
	return ""
}

// openLotPnL computes the return of the currently open lot against its
// weighted average cost. The walk starts from the newest transaction and
// stops where the cumulative position last touched zero: everything before
// that point belongs to closed round trips and must not dilute the cost
// basis of the shares held today.
func (v *Valuator) openLotPnL(isin string, asOf time.Time, currentPrice float64) (float64, error) {
	txns, err := v.ledger.TransactionsFor(isin, asOf)
	if err != nil {
		return 0, err
	}

	// Trades only, oldest first, with the running position after each one
	var trades []domain.Transaction
	for i := len(txns) - 1; i >= 0; i-- {
		switch txns[i].Type {
		case domain.TransactionBuy, domain.TransactionSell, domain.TransactionStockSplit:
			trades = append(trades, txns[i])
		}
	}
	if len(trades) == 0 {
		return 0, nil
	}

	cumulative := make([]float64, len(trades))
	running := 0.0
	for i, trade := range trades {
		running += trade.Quantity
		cumulative[i] = running
	}

	var sumQuantity, sumCost float64
	for i := len(trades) - 1; i >= 0; i-- {
		if cumulative[i] == 0 {
			break
		}
		switch trades[i].Type {
		case domain.TransactionBuy, domain.TransactionStockSplit:
			sumQuantity += trades[i].Quantity
			sumCost += trades[i].Quantity * trades[i].Price
		}
	}

	if sumQuantity == 0 {
		return 0, nil
	}
	weightedAverageCost := sumCost / sumQuantity
	if weightedAverageCost == 0 {
		return 0, nil
	}

	return currentPrice/weightedAverageCost - 1, nil
}
