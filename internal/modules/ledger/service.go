package ledger

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/helmsman/internal/domain"
)

// Service derives portfolio state from the transaction log.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new ledger service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "ledger").Logger(),
	}
}

// Record validates and appends a transaction to the log.
func (s *Service) Record(txn *domain.Transaction) error {
	return s.repo.Append(txn)
}

// PositionsAsOf replays the transaction log up to asOf and returns the cash
// balance plus the open equity positions. Instruments whose quantities sum
// to zero are closed and omitted.
func (s *Service) PositionsAsOf(asOf time.Time) (float64, map[string]domain.EquityPosition, error) {
	txns, err := s.repo.GetAsOf(asOf)
	if err != nil {
		return 0, nil, err
	}

	cash := 0.0
	positions := make(map[string]domain.EquityPosition)

	for _, txn := range txns {
		cash += txn.NetCashflow

		if txn.ISIN == "" {
			continue
		}

		pos, ok := positions[txn.ISIN]
		if !ok {
			pos = domain.EquityPosition{ISIN: txn.ISIN, MIC: txn.MIC}
		}
		pos.Quantity += txn.Quantity
		// Later transactions carry the freshest venue information
		if txn.MIC != "" {
			pos.MIC = txn.MIC
		}
		positions[txn.ISIN] = pos
	}

	for isin, pos := range positions {
		if pos.Quantity == 0 {
			delete(positions, isin)
		}
	}

	s.log.Debug().
		Time("as_of", asOf).
		Float64("cash", cash).
		Int("open_positions", len(positions)).
		Msg("Positions derived from ledger")

	return cash, positions, nil
}

// TransactionsFor returns an instrument's transactions up to asOf, newest
// first, for cost basis calculations.
func (s *Service) TransactionsFor(isin string, asOf time.Time) ([]domain.Transaction, error) {
	return s.repo.GetByISIN(isin, asOf)
}

// History returns the full transaction log up to asOf, oldest first.
func (s *Service) History(asOf time.Time) ([]domain.Transaction, error) {
	return s.repo.GetAsOf(asOf)
}
