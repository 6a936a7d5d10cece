package portfolio

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/helmsman/internal/domain"
)

// NAVRepository handles net asset value history operations
// Database: ledger.db (nav_records table)
type NAVRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewNAVRepository creates a new NAV repository
func NewNAVRepository(db *sql.DB, log zerolog.Logger) *NAVRepository {
	return &NAVRepository{
		db:  db,
		log: log.With().Str("repo", "nav").Logger(),
	}
}

// Append inserts a NAV record. Each date appears at most once in the
// history; a second record for the same date is a DataIntegrityError.
func (r *NAVRepository) Append(rec NAVRecord) error {
	query := `INSERT INTO nav_records (date, assets, shares, cashflows, created_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query, rec.Date.Unix(), rec.Assets, rec.Shares, rec.Cashflows, time.Now().Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return &domain.DataIntegrityError{
				Detail: fmt.Sprintf("NAV record already exists for %s", rec.Date.Format("2006-01-02")),
			}
		}
		return &domain.DataError{Store: "nav", Err: fmt.Errorf("failed to insert NAV record: %w", err)}
	}

	r.log.Info().
		Time("date", rec.Date).
		Float64("assets", rec.Assets).
		Float64("shares", rec.Shares).
		Float64("nav", rec.NAV()).
		Msg("NAV record appended")

	return nil
}

// Latest returns the most recent NAV record.
func (r *NAVRepository) Latest() (NAVRecord, error) {
	query := `SELECT date, assets, shares, cashflows FROM nav_records ORDER BY date DESC LIMIT 1`

	var rec NAVRecord
	var dateUnix int64
	err := r.db.QueryRow(query).Scan(&dateUnix, &rec.Assets, &rec.Shares, &rec.Cashflows)
	if err == sql.ErrNoRows {
		return NAVRecord{}, &domain.DataError{Store: "nav", Err: fmt.Errorf("NAV history is empty")}
	}
	if err != nil {
		return NAVRecord{}, &domain.DataError{Store: "nav", Err: fmt.Errorf("failed to query latest NAV: %w", err)}
	}

	rec.Date = time.Unix(dateUnix, 0).UTC()
	return rec, nil
}

// Series returns the full NAV history, oldest first.
func (r *NAVRepository) Series() ([]NAVRecord, error) {
	query := `SELECT date, assets, shares, cashflows FROM nav_records ORDER BY date ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, &domain.DataError{Store: "nav", Err: fmt.Errorf("failed to query NAV history: %w", err)}
	}
	defer rows.Close()

	var records []NAVRecord
	for rows.Next() {
		var rec NAVRecord
		var dateUnix int64
		if err := rows.Scan(&dateUnix, &rec.Assets, &rec.Shares, &rec.Cashflows); err != nil {
			return nil, &domain.DataError{Store: "nav", Err: fmt.Errorf("failed to scan NAV record: %w", err)}
		}
		rec.Date = time.Unix(dateUnix, 0).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.DataError{Store: "nav", Err: err}
	}

	return records, nil
}

// Returns computes the period-over-period returns of the per-share NAV,
// oldest first. Cashflow-driven share issuance leaves the per-share value
// unchanged, so these are clean performance returns.
func (r *NAVRepository) Returns() ([]float64, error) {
	records, err := r.Series()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, nil
	}

	returns := make([]float64, 0, len(records)-1)
	for i := 1; i < len(records); i++ {
		prev := records[i-1].NAV()
		if prev == 0 {
			return nil, &domain.DataIntegrityError{
				Detail: fmt.Sprintf("zero NAV on %s", records[i-1].Date.Format("2006-01-02")),
			}
		}
		returns = append(returns, records[i].NAV()/prev-1)
	}

	return returns, nil
}
