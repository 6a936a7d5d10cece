package portfolio

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Service combines valuation and NAV bookkeeping.
type Service struct {
	valuator *Valuator
	navRepo  *NAVRepository
	log      zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(valuator *Valuator, navRepo *NAVRepository, log zerolog.Logger) *Service {
	return &Service{
		valuator: valuator,
		navRepo:  navRepo,
		log:      log.With().Str("service", "portfolio").Logger(),
	}
}

// Valuator exposes the snapshot builder for other modules.
func (s *Service) Valuator() *Valuator {
	return s.valuator
}

// NAVHistory returns the stored NAV records, oldest first.
func (s *Service) NAVHistory() ([]NAVRecord, error) {
	return s.navRepo.Series()
}

// NAVReturns returns period-over-period per-share NAV returns.
func (s *Service) NAVReturns() ([]float64, error) {
	return s.navRepo.Returns()
}

// RecordNAV values the portfolio live and appends a NAV record for the
// given date. When cashflows moved in or out since the last record, shares
// must be the new total issued; otherwise pass shares <= 0 to carry the
// previous share count forward.
func (s *Service) RecordNAV(ctx context.Context, date time.Time, shares, cashflows float64) error {
	snap, err := s.valuator.LiveSnapshot(ctx)
	if err != nil {
		return err
	}

	if shares <= 0 {
		latest, err := s.navRepo.Latest()
		if err != nil {
			return err
		}
		shares = latest.Shares
	}

	return s.navRepo.Append(NAVRecord{
		Date:      date,
		Assets:    snap.MarketValue,
		Shares:    shares,
		Cashflows: cashflows,
	})
}
