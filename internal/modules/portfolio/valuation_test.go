package portfolio

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/helmsman/internal/clients/euronext"
	"github.com/aristath/helmsman/internal/domain"
	"github.com/aristath/helmsman/internal/modules/ledger"
	"github.com/aristath/helmsman/internal/modules/quotes"
)

func day(d int) time.Time {
	return time.Date(2024, 2, d, 0, 0, 0, 0, time.UTC)
}

type testFixture struct {
	t          *testing.T
	ledgerSvc  *ledger.Service
	quotesRepo *quotes.Repository
	quotesDB   *sql.DB
}

func setupFixture(t *testing.T) *testFixture {
	t.Helper()

	ledgerDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { ledgerDB.Close() })

	_, err = ledgerDB.Exec(`
		CREATE TABLE transactions (
			id TEXT PRIMARY KEY,
			date INTEGER NOT NULL,
			type TEXT NOT NULL,
			isin TEXT,
			mic TEXT,
			name TEXT,
			quantity REAL NOT NULL DEFAULT 0,
			price REAL NOT NULL DEFAULT 0,
			gross_amount REAL NOT NULL DEFAULT 0,
			fee REAL NOT NULL DEFAULT 0,
			transaction_tax REAL NOT NULL DEFAULT 0,
			net_cashflow REAL NOT NULL DEFAULT 0,
			notes TEXT,
			created_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	quotesDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { quotesDB.Close() })

	_, err = quotesDB.Exec(`
		CREATE TABLE daily_prices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			isin TEXT NOT NULL,
			date INTEGER NOT NULL,
			close REAL NOT NULL,
			UNIQUE(isin, date)
		)
	`)
	require.NoError(t, err)

	ledgerRepo := ledger.NewRepository(ledgerDB, zerolog.Nop())
	return &testFixture{
		t:          t,
		ledgerSvc:  ledger.NewService(ledgerRepo, zerolog.Nop()),
		quotesRepo: quotes.NewRepository(quotesDB, zerolog.Nop()),
		quotesDB:   quotesDB,
	}
}

func (f *testFixture) record(txn domain.Transaction, err error) {
	f.t.Helper()
	require.NoError(f.t, err)
	require.NoError(f.t, f.ledgerSvc.Record(&txn))
}

func (f *testFixture) storeClose(t *testing.T, isin string, date time.Time, close float64) {
	t.Helper()
	require.NoError(t, f.quotesRepo.Store(isin, date, close))
}

// fakeMarket serves canned instrument details for live snapshots.
type fakeMarket struct {
	details map[string]*euronext.InstrumentDetails
}

func (m *fakeMarket) GetInstrumentDetails(_ context.Context, isin, _ string) (*euronext.InstrumentDetails, error) {
	d, ok := m.details[isin]
	if !ok {
		return nil, &domain.PriceNotFoundError{ISIN: isin}
	}
	return d, nil
}

func TestHistoricalSnapshot_IntradayTimestampNormalizedToMidnight(t *testing.T) {
	f := setupFixture(t)

	f.record(domain.NewInflow(day(1), 10000, ""))
	f.record(domain.NewBuy(day(2), "FR0000120271", "XPAR", "TotalEnergies", 10, 60.0, 2.0, true, ""))

	f.storeClose(t, "FR0000120271", day(9), 61.0)
	f.storeClose(t, "FR0000120271", day(10), 62.0)

	v := NewValuator(f.ledgerSvc, f.quotesRepo, nil, zerolog.Nop())

	// Closes are stored at midnight; an afternoon timestamp must still
	// find them.
	afternoon := day(10).Add(15*time.Hour + 42*time.Minute)
	snap, err := v.HistoricalSnapshot(context.Background(), afternoon)
	require.NoError(t, err)

	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 62.0, snap.Lines[0].LastPrice)
	assert.Equal(t, day(10), snap.Date)
}

func TestHistoricalSnapshot_WeightsSumToOne(t *testing.T) {
	f := setupFixture(t)

	f.record(domain.NewInflow(day(1), 10000, ""))
	f.record(domain.NewBuy(day(2), "FR0000120271", "XPAR", "TotalEnergies", 10, 60.0, 2.0, true, ""))
	f.record(domain.NewBuy(day(2), "NL0000235190", "XPAR", "Airbus", 5, 130.0, 2.0, true, ""))

	f.storeClose(t, "FR0000120271", day(9), 61.0)
	f.storeClose(t, "FR0000120271", day(10), 62.0)
	f.storeClose(t, "NL0000235190", day(9), 132.0)
	f.storeClose(t, "NL0000235190", day(10), 135.0)

	v := NewValuator(f.ledgerSvc, f.quotesRepo, nil, zerolog.Nop())
	snap, err := v.HistoricalSnapshot(context.Background(), day(10))
	require.NoError(t, err)

	require.Len(t, snap.Lines, 2)

	weightSum := snap.CashWeight
	for _, line := range snap.Lines {
		weightSum += line.Weight
	}
	assert.InDelta(t, 1.0, weightSum, 1e-9)

	// Market value ties out against prices and cash
	wantMV := snap.Cash + 10*62.0 + 5*135.0
	assert.InDelta(t, wantMV, snap.MarketValue, 1e-6)
}

func TestHistoricalSnapshot_MissingPriceFailsWholeSnapshot(t *testing.T) {
	f := setupFixture(t)

	f.record(domain.NewInflow(day(1), 10000, ""))
	f.record(domain.NewBuy(day(2), "FR0000120271", "XPAR", "TotalEnergies", 10, 60.0, 2.0, true, ""))
	f.record(domain.NewBuy(day(2), "NL0000235190", "XPAR", "Airbus", 5, 130.0, 2.0, true, ""))

	// Only one of the two instruments has a close on the valuation date
	f.storeClose(t, "FR0000120271", day(9), 61.0)
	f.storeClose(t, "FR0000120271", day(10), 62.0)

	v := NewValuator(f.ledgerSvc, f.quotesRepo, nil, zerolog.Nop())
	snap, err := v.HistoricalSnapshot(context.Background(), day(10))
	require.Error(t, err)
	assert.Nil(t, snap)

	var notFound *domain.PriceNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "NL0000235190", notFound.ISIN)
}

func TestOpenLotPnL_IgnoresClosedRoundTrips(t *testing.T) {
	f := setupFixture(t)

	f.record(domain.NewInflow(day(1), 20000, ""))
	// First round trip: buy 10 @ 50, sell all 10 @ 55. Position returns to zero.
	f.record(domain.NewBuy(day(2), "FR0000120271", "XPAR", "TotalEnergies", 10, 50.0, 2.0, true, ""))
	f.record(domain.NewSell(day(3), "FR0000120271", "XPAR", "TotalEnergies", -10, 55.0, 2.0, ""))
	// Open lot: buy 10 @ 60 then 10 @ 70, weighted average cost 65.
	f.record(domain.NewBuy(day(4), "FR0000120271", "XPAR", "TotalEnergies", 10, 60.0, 2.0, true, ""))
	f.record(domain.NewBuy(day(5), "FR0000120271", "XPAR", "TotalEnergies", 10, 70.0, 2.0, true, ""))

	f.storeClose(t, "FR0000120271", day(9), 70.0)
	f.storeClose(t, "FR0000120271", day(10), 71.5)

	v := NewValuator(f.ledgerSvc, f.quotesRepo, nil, zerolog.Nop())
	snap, err := v.HistoricalSnapshot(context.Background(), day(10))
	require.NoError(t, err)

	require.Len(t, snap.Lines, 1)
	// 71.5 / 65 - 1, untouched by the earlier 50-cost round trip
	assert.InDelta(t, 71.5/65.0-1, snap.Lines[0].PnL, 1e-9)
}

func TestOpenLotPnL_PartialSellKeepsFullCostBasis(t *testing.T) {
	f := setupFixture(t)

	f.record(domain.NewInflow(day(1), 20000, ""))
	// Buy 10 @ 60 and 10 @ 70, then sell 5. The position never reaches
	// zero, so both buys stay in the cost basis.
	f.record(domain.NewBuy(day(2), "FR0000120271", "XPAR", "TotalEnergies", 10, 60.0, 2.0, true, ""))
	f.record(domain.NewBuy(day(3), "FR0000120271", "XPAR", "TotalEnergies", 10, 70.0, 2.0, true, ""))
	f.record(domain.NewSell(day(4), "FR0000120271", "XPAR", "TotalEnergies", -5, 72.0, 2.0, ""))

	f.storeClose(t, "FR0000120271", day(9), 70.0)
	f.storeClose(t, "FR0000120271", day(10), 78.0)

	v := NewValuator(f.ledgerSvc, f.quotesRepo, nil, zerolog.Nop())
	snap, err := v.HistoricalSnapshot(context.Background(), day(10))
	require.NoError(t, err)

	require.Len(t, snap.Lines, 1)
	assert.InDelta(t, 15.0, snap.Lines[0].Quantity, 1e-9)
	assert.InDelta(t, 78.0/65.0-1, snap.Lines[0].PnL, 1e-9)
}

func TestLiveSnapshot_UsesGatewayPrices(t *testing.T) {
	f := setupFixture(t)

	f.record(domain.NewInflow(day(1), 10000, ""))
	f.record(domain.NewBuy(day(2), "FR0000120271", "XPAR", "TotalEnergies", 10, 60.0, 2.0, true, ""))

	market := &fakeMarket{details: map[string]*euronext.InstrumentDetails{
		"FR0000120271": {
			ISIN:               "FR0000120271",
			Name:               "TOTALENERGIES SE",
			LastPrice:          62.5,
			OpenPrice:          62.0,
			PreviousClose:      61.9,
			PerfSinceLastClose: 62.5/61.9 - 1,
		},
	}}

	v := NewValuator(f.ledgerSvc, f.quotesRepo, market, zerolog.Nop())
	snap, err := v.LiveSnapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Lines, 1)
	line := snap.Lines[0]
	assert.True(t, snap.Live)
	assert.Equal(t, "TOTALENERGIES SE", line.Name)
	assert.InDelta(t, 62.5, line.LastPrice, 1e-9)
	assert.InDelta(t, 62.5/62.0-1, line.PerfSinceOpen, 1e-9)

	// Portfolio perf is the stock's daily perf scaled by its previous
	// session weight; the cash sleeve contributes nothing.
	prevMV := snap.Cash + 10*61.9
	wantPerf := (10 * 61.9 / prevMV) * (62.5/61.9 - 1)
	assert.InDelta(t, wantPerf, snap.Perf, 1e-9)
}

func TestLiveSnapshot_NoProviderConfigured(t *testing.T) {
	f := setupFixture(t)

	v := NewValuator(f.ledgerSvc, f.quotesRepo, nil, zerolog.Nop())
	_, err := v.LiveSnapshot(context.Background())
	require.Error(t, err)

	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
