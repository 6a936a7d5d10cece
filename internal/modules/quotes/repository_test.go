package quotes

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/helmsman/internal/domain"
)

// setupTestQuotesDB creates an in-memory SQLite database with the daily_prices table.
// The unique constraint is deliberately omitted so duplicate-row detection can be tested.
func setupTestQuotesDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE daily_prices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			isin TEXT NOT NULL,
			date INTEGER NOT NULL,
			close REAL NOT NULL
		)
	`)
	require.NoError(t, err)

	return db
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func insertClose(t *testing.T, db *sql.DB, isin string, date time.Time, close float64) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO daily_prices (isin, date, close) VALUES (?, ?, ?)`,
		isin, date.Unix(), close)
	require.NoError(t, err)
}

func TestPriceOn_Found(t *testing.T) {
	db := setupTestQuotesDB(t)
	repo := NewRepository(db, zerolog.Nop())

	insertClose(t, db, "FR0000120271", day(1), 60.5)

	price, err := repo.PriceOn("FR0000120271", day(1))
	require.NoError(t, err)
	assert.InDelta(t, 60.5, price, 1e-9)
}

func TestPriceOn_Missing(t *testing.T) {
	repo := NewRepository(setupTestQuotesDB(t), zerolog.Nop())

	_, err := repo.PriceOn("FR0000120271", day(1))
	require.Error(t, err)

	var notFound *domain.PriceNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "FR0000120271", notFound.ISIN)
	assert.Equal(t, day(1), notFound.Date)
}

func TestPriceOn_DuplicateRows(t *testing.T) {
	db := setupTestQuotesDB(t)
	repo := NewRepository(db, zerolog.Nop())

	insertClose(t, db, "FR0000120271", day(1), 60.5)
	insertClose(t, db, "FR0000120271", day(1), 61.0)

	_, err := repo.PriceOn("FR0000120271", day(1))
	require.Error(t, err)

	var integrity *domain.DataIntegrityError
	assert.ErrorAs(t, err, &integrity)
}

func TestLatestPrice(t *testing.T) {
	db := setupTestQuotesDB(t)
	repo := NewRepository(db, zerolog.Nop())

	insertClose(t, db, "FR0000120271", day(1), 60.0)
	insertClose(t, db, "FR0000120271", day(3), 62.0)
	insertClose(t, db, "FR0000120271", day(2), 61.0)

	latest, err := repo.LatestPrice("FR0000120271")
	require.NoError(t, err)
	assert.Equal(t, day(3), latest.Date)
	assert.InDelta(t, 62.0, latest.Price, 1e-9)

	_, err = repo.LatestPrice("UNKNOWN")
	var notFound *domain.PriceNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestRecentCloses_NewestFirst(t *testing.T) {
	db := setupTestQuotesDB(t)
	repo := NewRepository(db, zerolog.Nop())

	for d := 1; d <= 5; d++ {
		insertClose(t, db, "FR0000120271", day(d), 60.0+float64(d))
	}

	closes, err := repo.RecentCloses("FR0000120271", 3)
	require.NoError(t, err)
	require.Len(t, closes, 3)
	assert.Equal(t, day(5), closes[0].Date)
	assert.Equal(t, day(4), closes[1].Date)
	assert.Equal(t, day(3), closes[2].Date)

	// Fewer rows than requested is fine
	closes, err = repo.RecentCloses("FR0000120271", 100)
	require.NoError(t, err)
	assert.Len(t, closes, 5)
}

func TestLastCloseBefore(t *testing.T) {
	db := setupTestQuotesDB(t)
	repo := NewRepository(db, zerolog.Nop())

	insertClose(t, db, "FR0000120271", day(1), 60.0)
	insertClose(t, db, "FR0000120271", day(3), 62.0)

	prev, err := repo.LastCloseBefore("FR0000120271", day(3))
	require.NoError(t, err)
	assert.Equal(t, day(1), prev.Date)
	assert.InDelta(t, 60.0, prev.Price, 1e-9)

	_, err = repo.LastCloseBefore("FR0000120271", day(1))
	var notFound *domain.PriceNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestStore_Upsert(t *testing.T) {
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

	repo := NewRepository(db, zerolog.Nop())

	require.NoError(t, repo.Store("FR0000120271", day(1), 60.0))
	require.NoError(t, repo.Store("FR0000120271", day(1), 60.5))

	price, err := repo.PriceOn("FR0000120271", day(1))
	require.NoError(t, err)
	assert.InDelta(t, 60.5, price, 1e-9)
}

func setupUpsertDB(t *testing.T) *sql.DB {
	t.Helper()

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

	return db
}

func TestStoreBatch_AllOrNothing(t *testing.T) {
	db := setupUpsertDB(t)
	repo := NewRepository(db, zerolog.Nop())

	// The third close is invalid, so the first two must roll back too.
	err := repo.StoreBatch([]Close{
		{ISIN: "FR0000120271", Date: day(1), Price: 60.0},
		{ISIN: "FR0000120271", Date: day(4), Price: 61.0},
		{ISIN: "FR0000120271", Date: day(5), Price: 0},
	})
	require.Error(t, err)

	var integrityErr *domain.DataIntegrityError
	assert.ErrorAs(t, err, &integrityErr)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM daily_prices`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestStoreBatch_StoresAndUpserts(t *testing.T) {
	db := setupUpsertDB(t)
	repo := NewRepository(db, zerolog.Nop())

	require.NoError(t, repo.StoreBatch([]Close{
		{ISIN: "FR0000120271", Date: day(1), Price: 60.0},
		{ISIN: "FR0000120271", Date: day(1), Price: 60.5},
		{ISIN: "NL0000235190", Date: day(1), Price: 130.0},
	}))

	price, err := repo.PriceOn("FR0000120271", day(1))
	require.NoError(t, err)
	assert.InDelta(t, 60.5, price, 1e-9)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM daily_prices`).Scan(&count))
	assert.Equal(t, 2, count)
}
