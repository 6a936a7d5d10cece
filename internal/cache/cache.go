// Package cache provides a TTL'd key-value store for expensive calculations.
package cache

import (
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/helmsman/internal/domain"
)

// Repository stores calculation payloads with expiry
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new cache repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "cache").Logger(),
	}
}

// Get returns the payload for key, or false when absent or expired.
func (r *Repository) Get(key string) ([]byte, bool) {
	var (
		payload   []byte
		expiresAt int64
	)
	err := r.db.QueryRow(
		`SELECT payload, expires_at FROM calculation_cache WHERE cache_key = ?`,
		key,
	).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		return nil, false
	}
	if time.Now().Unix() >= expiresAt {
		return nil, false
	}
	return payload, true
}

// Put stores a payload under key with the given TTL, replacing any
// previous entry.
func (r *Repository) Put(key string, payload []byte, ttl time.Duration) error {
	now := time.Now()
	_, err := r.db.Exec(
		`INSERT INTO calculation_cache (cache_key, payload, created_at, expires_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		key, payload, now.Unix(), now.Add(ttl).Unix(),
	)
	if err != nil {
		return &domain.DataError{Store: "cache", Err: err}
	}
	return nil
}

// PurgeExpired deletes entries past their expiry. Returns rows removed.
func (r *Repository) PurgeExpired() (int64, error) {
	res, err := r.db.Exec(
		`DELETE FROM calculation_cache WHERE expires_at <= ?`,
		time.Now().Unix(),
	)
	if err != nil {
		return 0, &domain.DataError{Store: "cache", Err: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}
