// Package screener filters instruments by fundamental and momentum metrics.
package screener

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/helmsman/internal/domain"
)

// Fundamentals holds the raw statement values stored per instrument.
type Fundamentals struct {
	ISIN              string    `json:"isin"`
	Name              string    `json:"name"`
	MIC               string    `json:"mic"`
	Sector            string    `json:"sector"`
	NetIncome         float64   `json:"net_income"`
	TotalEquity       float64   `json:"total_equity"`
	TotalDebt         float64   `json:"total_debt"`
	OperatingIncome   float64   `json:"operating_income"`
	Revenue           float64   `json:"revenue"`
	SharesOutstanding float64   `json:"shares_outstanding"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Repository handles fundamentals database operations
// Database: quotes.db (fundamentals table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new screener repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "screener").Logger(),
	}
}

const fundamentalsColumns = `isin, name, mic, sector, net_income, total_equity,
	total_debt, operating_income, revenue, shares_outstanding, updated_at`

// Upsert stores the fundamentals for one instrument.
func (r *Repository) Upsert(f Fundamentals) error {
	query := `INSERT INTO fundamentals (` + fundamentalsColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(isin) DO UPDATE SET
			name = excluded.name,
			mic = excluded.mic,
			sector = excluded.sector,
			net_income = excluded.net_income,
			total_equity = excluded.total_equity,
			total_debt = excluded.total_debt,
			operating_income = excluded.operating_income,
			revenue = excluded.revenue,
			shares_outstanding = excluded.shares_outstanding,
			updated_at = excluded.updated_at`

	_, err := r.db.Exec(query,
		f.ISIN, f.Name, f.MIC, f.Sector,
		f.NetIncome, f.TotalEquity, f.TotalDebt, f.OperatingIncome,
		f.Revenue, f.SharesOutstanding, time.Now().Unix(),
	)
	if err != nil {
		return &domain.DataError{Store: "quotes", Err: fmt.Errorf("failed to upsert fundamentals for %s: %w", f.ISIN, err)}
	}
	return nil
}

// GetAll returns the stored fundamentals for every instrument.
func (r *Repository) GetAll() ([]Fundamentals, error) {
	query := `SELECT ` + fundamentalsColumns + ` FROM fundamentals ORDER BY isin`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, &domain.DataError{Store: "quotes", Err: fmt.Errorf("failed to query fundamentals: %w", err)}
	}
	defer rows.Close()

	var all []Fundamentals
	for rows.Next() {
		var f Fundamentals
		var name, mic, sector sql.NullString
		var updatedAtUnix int64

		if err := rows.Scan(
			&f.ISIN, &name, &mic, &sector,
			&f.NetIncome, &f.TotalEquity, &f.TotalDebt, &f.OperatingIncome,
			&f.Revenue, &f.SharesOutstanding, &updatedAtUnix,
		); err != nil {
			return nil, &domain.DataError{Store: "quotes", Err: fmt.Errorf("failed to scan fundamentals: %w", err)}
		}

		f.Name = name.String
		f.MIC = mic.String
		f.Sector = sector.String
		f.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()
		all = append(all, f)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.DataError{Store: "quotes", Err: err}
	}

	return all, nil
}
