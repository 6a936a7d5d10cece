package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/helmsman/internal/modules/portfolio"
)

// NAVSnapshotJob records an end-of-day NAV observation from a live valuation.
// Passing zero shares carries the previous share count forward.
type NAVSnapshotJob struct {
	portfolioSvc *portfolio.Service
	log          zerolog.Logger
}

// NewNAVSnapshotJob creates a new NAV snapshot job
func NewNAVSnapshotJob(portfolioSvc *portfolio.Service, log zerolog.Logger) *NAVSnapshotJob {
	return &NAVSnapshotJob{
		portfolioSvc: portfolioSvc,
		log:          log.With().Str("job", "nav_snapshot").Logger(),
	}
}

// Name returns the job name
func (j *NAVSnapshotJob) Name() string {
	return "nav_snapshot"
}

// Run values the portfolio and appends today's NAV record
func (j *NAVSnapshotJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := j.portfolioSvc.RecordNAV(ctx, time.Now().UTC(), 0, 0); err != nil {
		return err
	}

	j.log.Info().Msg("NAV snapshot recorded")
	return nil
}
