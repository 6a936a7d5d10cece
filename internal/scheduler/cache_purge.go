package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/aristath/helmsman/internal/cache"
)

// CachePurgeJob removes expired calculation cache entries.
type CachePurgeJob struct {
	repo *cache.Repository
	log  zerolog.Logger
}

// NewCachePurgeJob creates a new cache purge job
func NewCachePurgeJob(repo *cache.Repository, log zerolog.Logger) *CachePurgeJob {
	return &CachePurgeJob{
		repo: repo,
		log:  log.With().Str("job", "cache_purge").Logger(),
	}
}

// Name returns the job name
func (j *CachePurgeJob) Name() string {
	return "cache_purge"
}

// Run deletes entries past their expiry
func (j *CachePurgeJob) Run() error {
	removed, err := j.repo.PurgeExpired()
	if err != nil {
		return err
	}
	if removed > 0 {
		j.log.Info().Int64("removed", removed).Msg("Expired cache entries purged")
	}
	return nil
}
