package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/kenko/clinic-api/internal/repository"
	"github.com/kenko/clinic-api/pkg/logger"
	"github.com/kenko/clinic-api/pkg/metrics"
)

type OutboxCleanupConfig struct {
	Retention time.Duration
	Interval  time.Duration
}

// OutboxCleanupWorker deletes processed outbox events older than the
// retention period.
type OutboxCleanupWorker struct {
	repo    repository.OutboxRepository
	config  OutboxCleanupConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, config OutboxCleanupConfig, logger *logger.Logger, metrics *metrics.Metrics) *OutboxCleanupWorker {
	return &OutboxCleanupWorker{
		repo:    repo,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Start returns at once when cleanup is disabled by a non-positive interval
// or retention.
func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	if w.config.Interval <= 0 || w.config.Retention <= 0 {
		return
	}

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil {
				w.logger.Error(err, "Failed to clean up outbox events")
			}
		}
	}
}

func (w *OutboxCleanupWorker) Cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.config.Retention)

	start := time.Now()
	rows, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	w.metrics.ObserveDB("delete_processed_events", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up outbox events: %w", err)
	}

	w.metrics.OutboxEventsCleaned.Add(float64(rows))
	if rows > 0 {
		w.logger.Info("Cleaned up outbox events", "count", rows, "cutoff", cutoff)
	}
	return rows, nil
}
