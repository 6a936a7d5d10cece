package risk

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/helmsman/internal/domain"
	"github.com/aristath/helmsman/internal/modules/quotes"
	"github.com/aristath/helmsman/pkg/formulas"
)

func day(d int) time.Time {
	return time.Date(2024, 4, d, 0, 0, 0, 0, time.UTC)
}

func setupQuotes(t *testing.T) (*quotes.Repository, *sql.DB) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE daily_prices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			isin TEXT NOT NULL,
			date INTEGER NOT NULL,
			close REAL NOT NULL,
			UNIQUE(isin, date)
		)
	`)
	require.NoError(t, err)

	return quotes.NewRepository(db, zerolog.Nop()), db
}

func storeSeries(t *testing.T, repo *quotes.Repository, isin string, prices ...float64) {
	t.Helper()
	for i, p := range prices {
		require.NoError(t, repo.Store(isin, day(i+1), p))
	}
}

func TestHistoricalReturns_ExactWindow(t *testing.T) {
	repo, _ := setupQuotes(t)
	storeSeries(t, repo, "AAA", 100, 110, 99, 108.9)

	b := NewReturnsBuilder(repo)
	returns, err := b.HistoricalReturns([]string{"AAA"}, 3)
	require.NoError(t, err)

	require.Len(t, returns, 1)
	require.Len(t, returns[0], 3)
	assert.InDelta(t, 0.10, returns[0][0], 1e-9)
	assert.InDelta(t, -0.10, returns[0][1], 1e-9)
	assert.InDelta(t, 0.10, returns[0][2], 1e-9)
}

func TestHistoricalReturns_UsesMostRecentWindow(t *testing.T) {
	repo, _ := setupQuotes(t)
	// Five closes but only a 2-return window requested: the oldest closes
	// must be ignored.
	storeSeries(t, repo, "AAA", 50, 80, 100, 110, 121)

	b := NewReturnsBuilder(repo)
	returns, err := b.HistoricalReturns([]string{"AAA"}, 2)
	require.NoError(t, err)

	require.Len(t, returns[0], 2)
	assert.InDelta(t, 0.10, returns[0][0], 1e-9)
	assert.InDelta(t, 0.10, returns[0][1], 1e-9)
}

func TestHistoricalReturns_InsufficientHistory(t *testing.T) {
	repo, _ := setupQuotes(t)
	storeSeries(t, repo, "AAA", 100, 110, 121)
	storeSeries(t, repo, "BBB", 50, 55)

	b := NewReturnsBuilder(repo)
	_, err := b.HistoricalReturns([]string{"AAA", "BBB"}, 2)
	require.Error(t, err)

	var insufficient *domain.InsufficientHistoryError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "BBB", insufficient.ISIN)
	assert.Equal(t, 2, insufficient.Requested)
	assert.Equal(t, 1, insufficient.Available)
}

func TestCovarianceMatrix_Annualized(t *testing.T) {
	returns := [][]float64{
		{0.01, -0.02, 0.015, 0.005, -0.01},
		{0.02, -0.01, 0.01, -0.005, 0.005},
	}

	cov := CovarianceMatrix(returns)

	// Elementwise equal to daily covariance times 252
	assert.InDelta(t, formulas.Variance(returns[0])*252, cov.At(0, 0), 1e-12)
	assert.InDelta(t, formulas.Variance(returns[1])*252, cov.At(1, 1), 1e-12)
	assert.InDelta(t, formulas.Covariance(returns[0], returns[1])*252, cov.At(0, 1), 1e-12)
	assert.InDelta(t, cov.At(0, 1), cov.At(1, 0), 1e-12)
}

func TestCorrelationMatrix_UnitDiagonal(t *testing.T) {
	returns := [][]float64{
		{0.01, -0.02, 0.015, 0.005},
		{0.02, -0.01, 0.01, -0.005},
	}

	corr := CorrelationMatrix(returns)

	assert.InDelta(t, 1.0, corr.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0, corr.At(1, 1), 1e-12)
	assert.InDelta(t, formulas.Correlation(returns[0], returns[1]), corr.At(0, 1), 1e-12)
	assert.LessOrEqual(t, corr.At(0, 1), 1.0)
	assert.GreaterOrEqual(t, corr.At(0, 1), -1.0)
}

func TestPortfolioVariance_QuadraticForm(t *testing.T) {
	returns := [][]float64{
		{0.01, -0.02, 0.015, 0.005, -0.01},
		{0.02, -0.01, 0.01, -0.005, 0.005},
	}
	cov := CovarianceMatrix(returns)
	w := []float64{0.6, 0.4}

	got := PortfolioVariance(w, cov)

	want := 0.0
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			want += w[i] * w[j] * cov.At(i, j)
		}
	}
	assert.InDelta(t, want, got, 1e-12)
	assert.Greater(t, got, 0.0)
}
