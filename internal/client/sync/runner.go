package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/agrisync/agrisync/internal/client/storage"
)

// Runner drives periodic background sync rounds. Failures are logged and
// swallowed: a device out of coverage just tries again next interval.
type Runner struct {
	service  Service
	logger   *slog.Logger
	interval time.Duration
}

// NewRunner creates a background sync runner.
func NewRunner(service Service, interval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		service:  service,
		logger:   logger,
		interval: interval,
	}
}

// Run syncs once immediately, then on every interval tick until ctx is
// cancelled. Blocks; start it in a goroutine.
func (r *Runner) Run(ctx context.Context) {
	r.round(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.round(ctx)
		}
	}
}

func (r *Runner) round(ctx context.Context) {
	result, err := r.service.Sync(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			r.logger.Debug("background sync skipped, not logged in")
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		r.logger.Warn("background sync failed", "error", err)
		return
	}

	if result.Pushed+result.Pulled > 0 {
		r.logger.Info("background sync",
			"pushed", result.Pushed,
			"pulled", result.Pulled,
			"conflicts", result.Conflicts)
	}
}
