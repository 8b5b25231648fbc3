package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/vida-health/vida/internal/repositories"
	"github.com/vida-health/vida/internal/security"
)

// CleanupManager periodically prunes denied access events past their retention
// window and purges stale failed-attempt counters.
type CleanupManager struct {
	events    *repositories.AccessEventRepository
	tracker   *security.FailedAttemptTracker
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	stopCh    chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	events *repositories.AccessEventRepository,
	tracker *security.FailedAttemptTracker,
	logger *slog.Logger,
	interval time.Duration,
	retention time.Duration,
) *CleanupManager {
	return &CleanupManager{
		events:    events,
		tracker:   tracker,
		logger:    logger,
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := cm.events.CleanupExpired(cleanupCtx, cm.retention)
	if err != nil {
		cm.logger.Error("failed to cleanup access events", slog.Any("error", err))
	} else if rowsDeleted > 0 {
		cm.logger.Info("access event cleanup completed", slog.Int64("rows_deleted", rowsDeleted))
	}

	if purged := cm.tracker.Purge(); purged > 0 {
		cm.logger.Info("stale failure counters purged", slog.Int("purged", purged))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
