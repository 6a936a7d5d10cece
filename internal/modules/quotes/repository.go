// Package quotes stores and serves daily close prices.
package quotes

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/helmsman/internal/database"
	"github.com/aristath/helmsman/internal/domain"
)

// Close is a single daily close observation.
type Close struct {
	ISIN  string    `json:"isin"`
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// Repository handles daily price database operations
// Database: quotes.db (daily_prices table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new quotes repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "quotes").Logger(),
	}
}

// Store upserts a daily close price.
func (r *Repository) Store(isin string, date time.Time, close float64) error {
	query := `INSERT INTO daily_prices (isin, date, close) VALUES (?, ?, ?)
		ON CONFLICT(isin, date) DO UPDATE SET close = excluded.close`

	if _, err := r.db.Exec(query, isin, date.Unix(), close); err != nil {
		return &domain.DataError{Store: "quotes", Err: fmt.Errorf("failed to store price for %s: %w", isin, err)}
	}
	return nil
}

// StoreBatch upserts a set of daily closes in one transaction: either the
// whole batch lands or none of it does. Invalid entries abort the batch.
func (r *Repository) StoreBatch(closes []Close) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		query := `INSERT INTO daily_prices (isin, date, close) VALUES (?, ?, ?)
			ON CONFLICT(isin, date) DO UPDATE SET close = excluded.close`

		for _, c := range closes {
			if c.ISIN == "" || c.Price <= 0 {
				return &domain.DataIntegrityError{
					Detail: fmt.Sprintf("invalid close for %q on %s: price %v", c.ISIN, c.Date.Format("2006-01-02"), c.Price),
				}
			}
			if _, err := tx.Exec(query, c.ISIN, c.Date.Unix(), c.Price); err != nil {
				return &domain.DataError{Store: "quotes", Err: fmt.Errorf("failed to store price for %s: %w", c.ISIN, err)}
			}
		}
		return nil
	})
}

// PriceOn returns the close price for an instrument on an exact date.
// A missing row is a PriceNotFoundError; more than one row means the store
// is corrupt and is reported as a DataIntegrityError.
func (r *Repository) PriceOn(isin string, date time.Time) (float64, error) {
	query := `SELECT close FROM daily_prices WHERE isin = ? AND date = ?`

	rows, err := r.db.Query(query, isin, date.Unix())
	if err != nil {
		return 0, &domain.DataError{Store: "quotes", Err: fmt.Errorf("failed to query price for %s: %w", isin, err)}
	}
	defer rows.Close()

	var price float64
	count := 0
	for rows.Next() {
		if err := rows.Scan(&price); err != nil {
			return 0, &domain.DataError{Store: "quotes", Err: fmt.Errorf("failed to scan price for %s: %w", isin, err)}
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, &domain.DataError{Store: "quotes", Err: err}
	}

	switch {
	case count == 0:
		return 0, &domain.PriceNotFoundError{ISIN: isin, Date: date}
	case count > 1:
		return 0, &domain.DataIntegrityError{
			Detail: fmt.Sprintf("%d close prices for %s on %s, expected one", count, isin, date.Format("2006-01-02")),
		}
	}

	return price, nil
}

// LatestPrice returns the most recent stored close for an instrument.
func (r *Repository) LatestPrice(isin string) (Close, error) {
	query := `SELECT date, close FROM daily_prices WHERE isin = ? ORDER BY date DESC LIMIT 1`

	var dateUnix int64
	var price float64
	err := r.db.QueryRow(query, isin).Scan(&dateUnix, &price)
	if err == sql.ErrNoRows {
		return Close{}, &domain.PriceNotFoundError{ISIN: isin}
	}
	if err != nil {
		return Close{}, &domain.DataError{Store: "quotes", Err: fmt.Errorf("failed to query latest price for %s: %w", isin, err)}
	}

	return Close{ISIN: isin, Date: time.Unix(dateUnix, 0).UTC(), Price: price}, nil
}

// RecentCloses returns up to n most recent closes for an instrument, newest
// first. Fewer rows than requested is not an error here; callers that need a
// minimum history length enforce it themselves.
func (r *Repository) RecentCloses(isin string, n int) ([]Close, error) {
	query := `SELECT date, close FROM daily_prices WHERE isin = ? ORDER BY date DESC LIMIT ?`

	rows, err := r.db.Query(query, isin, n)
	if err != nil {
		return nil, &domain.DataError{Store: "quotes", Err: fmt.Errorf("failed to query closes for %s: %w", isin, err)}
	}
	defer rows.Close()

	var closes []Close
	for rows.Next() {
		var dateUnix int64
		var price float64
		if err := rows.Scan(&dateUnix, &price); err != nil {
			return nil, &domain.DataError{Store: "quotes", Err: fmt.Errorf("failed to scan close for %s: %w", isin, err)}
		}
		closes = append(closes, Close{ISIN: isin, Date: time.Unix(dateUnix, 0).UTC(), Price: price})
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.DataError{Store: "quotes", Err: err}
	}

	return closes, nil
}

// LastCloseBefore returns the most recent close strictly before the given
// date. Valuations use it to anchor previous-session weights.
func (r *Repository) LastCloseBefore(isin string, date time.Time) (Close, error) {
	query := `SELECT date, close FROM daily_prices WHERE isin = ? AND date < ? ORDER BY date DESC LIMIT 1`

	var dateUnix int64
	var price float64
	err := r.db.QueryRow(query, isin, date.Unix()).Scan(&dateUnix, &price)
	if err == sql.ErrNoRows {
		return Close{}, &domain.PriceNotFoundError{ISIN: isin, Date: date}
	}
	if err != nil {
		return Close{}, &domain.DataError{Store: "quotes", Err: fmt.Errorf("failed to query close before %s for %s: %w", date.Format("2006-01-02"), isin, err)}
	}

	return Close{ISIN: isin, Date: time.Unix(dateUnix, 0).UTC(), Price: price}, nil
}
