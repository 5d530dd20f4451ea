// Package services runs the background work of the API server
package services

import (
	"context"
	"sync"
	"time"

	"github.com/celestiaorg/cloudjob/internal/logger"
)

// Purger deletes finished jobs from the ledger
type Purger interface {
	PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// LaunchPurgeWorker removes jobs that finished more than retention ago, once
// at start and then every interval, until ctx is done
func LaunchPurgeWorker(ctx context.Context, wg *sync.WaitGroup, purger Purger, retention, interval time.Duration) {
	defer wg.Done()

	logger.Infof("Purge worker started, retention %s every %s", retention, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		purge(ctx, purger, retention)

		select {
		case <-ctx.Done():
			logger.Info("Purge worker received shutdown signal, stopping...")
			return
		case <-ticker.C:
		}
	}
}

func purge(ctx context.Context, purger Purger, retention time.Duration) {
	cutoff := time.Now().Add(-retention)
	removed, err := purger.PurgeCompletedBefore(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			logger.Errorf("Purge worker failed to purge jobs: %v", err)
		}
		return
	}
	if removed > 0 {
		logger.InfoWithFields("Purged finished jobs", map[string]interface{}{
			"removed": removed,
			"cutoff":  cutoff.Format(time.RFC3339),
		})
	}
}
