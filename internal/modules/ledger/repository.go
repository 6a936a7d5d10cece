// Package ledger manages the append-only transaction log and derives
// portfolio positions from it.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/helmsman/internal/domain"
)

// Repository handles transaction database operations
// Database: ledger.db (transactions table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new transaction repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

const transactionColumns = `id, date, type, isin, mic, name, quantity, price,
	gross_amount, fee, transaction_tax, net_cashflow, notes, created_at`

// Append validates and inserts a transaction. The log is append-only, so
// there is no update or delete counterpart.
func (r *Repository) Append(txn *domain.Transaction) error {
	if err := txn.Validate(); err != nil {
		return err
	}

	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query,
		txn.ID,
		txn.Date.Unix(),
		string(txn.Type),
		txn.ISIN,
		txn.MIC,
		txn.Name,
		txn.Quantity,
		txn.Price,
		txn.GrossAmount,
		txn.Fee,
		txn.TransactionTax,
		txn.NetCashflow,
		txn.Notes,
		txn.CreatedAt.Unix(),
	)
	if err != nil {
		return &domain.DataError{Store: "ledger", Err: fmt.Errorf("failed to insert transaction: %w", err)}
	}

	r.log.Debug().
		Str("id", txn.ID).
		Str("type", string(txn.Type)).
		Str("isin", txn.ISIN).
		Float64("quantity", txn.Quantity).
		Msg("Transaction appended")

	return nil
}

// GetAsOf returns all transactions with date on or before asOf, oldest first.
func (r *Repository) GetAsOf(asOf time.Time) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE date <= ? ORDER BY date ASC, created_at ASC`

	rows, err := r.db.Query(query, asOf.Unix())
	if err != nil {
		return nil, &domain.DataError{Store: "ledger", Err: fmt.Errorf("failed to query transactions: %w", err)}
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetByISIN returns all transactions for one instrument up to asOf, newest
// first. Cost basis walks consume this ordering directly.
func (r *Repository) GetByISIN(isin string, asOf time.Time) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE isin = ? AND date <= ? ORDER BY date DESC, created_at DESC`

	rows, err := r.db.Query(query, isin, asOf.Unix())
	if err != nil {
		return nil, &domain.DataError{Store: "ledger", Err: fmt.Errorf("failed to query transactions for %s: %w", isin, err)}
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// CashAsOf returns the cash balance: the sum of net cashflows of every
// transaction dated on or before asOf.
func (r *Repository) CashAsOf(asOf time.Time) (float64, error) {
	query := `SELECT COALESCE(SUM(net_cashflow), 0) FROM transactions WHERE date <= ?`

	var cash float64
	if err := r.db.QueryRow(query, asOf.Unix()).Scan(&cash); err != nil {
		return 0, &domain.DataError{Store: "ledger", Err: fmt.Errorf("failed to sum cashflows: %w", err)}
	}
	return cash, nil
}

func scanTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	for rows.Next() {
		var txn domain.Transaction
		var txnType string
		var isin, mic, name, notes sql.NullString
		var dateUnix, createdAtUnix int64

		if err := rows.Scan(
			&txn.ID,
			&dateUnix,
			&txnType,
			&isin,
			&mic,
			&name,
			&txn.Quantity,
			&txn.Price,
			&txn.GrossAmount,
			&txn.Fee,
			&txn.TransactionTax,
			&txn.NetCashflow,
			&notes,
			&createdAtUnix,
		); err != nil {
			return nil, &domain.DataError{Store: "ledger", Err: fmt.Errorf("failed to scan transaction: %w", err)}
		}

		txn.Type = domain.TransactionType(txnType)
		txn.ISIN = isin.String
		txn.MIC = mic.String
		txn.Name = name.String
		txn.Notes = notes.String
		txn.Date = time.Unix(dateUnix, 0).UTC()
		txn.CreatedAt = time.Unix(createdAtUnix, 0).UTC()

		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.DataError{Store: "ledger", Err: fmt.Errorf("error iterating transactions: %w", err)}
	}

	return txns, nil
}
