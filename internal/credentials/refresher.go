package credentials

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Refresher re-runs FetchAll on a fixed interval. This is the only path that
// picks up quota changes and out-of-band deletions, since neither has an
// incremental update.
type Refresher struct {
	logger   *zap.Logger
	manager  *Manager
	interval time.Duration
}

// NewRefresher creates a Refresher. Intervals below one second are raised to
// one second.
func NewRefresher(logger *zap.Logger, manager *Manager, interval time.Duration) *Refresher {
	if interval < time.Second {
		interval = time.Second
	}
	return &Refresher{
		logger:   logger.Named("refresher"),
		manager:  manager,
		interval: interval,
	}
}

// Run blocks until the context is cancelled, refreshing on every tick. A
// failed refresh leaves the store empty (FetchAll contract) and is retried
// on the next tick.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("Refresher started", zap.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Refresher stopped")
			return
		case <-ticker.C:
			if err := r.manager.FetchAll(ctx); err != nil {
				r.logger.Error("Periodic refresh failed", zap.Error(err))
			}
		}
	}
}
