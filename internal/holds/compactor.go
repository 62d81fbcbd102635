package holds

import (
	"context"
	"time"

	"github.com/coachpoint/scheduling-platform/pkg/logging"
)

// Compactor lazily deletes expired holds on a ticker. Readers already
// ignore expired rows, so a missed run costs storage, not correctness.
type Compactor struct {
	manager  *Manager
	interval time.Duration
	logger   *logging.Logger
}

// NewCompactor creates a compaction task for the hold table.
func NewCompactor(manager *Manager, interval time.Duration, logger *logging.Logger) *Compactor {
	if manager == nil {
		panic("holds: manager required")
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Compactor{manager: manager, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, compacting once per interval.
func (c *Compactor) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("hold compactor stopped")
			return
		case <-ticker.C:
			removed, err := c.manager.DeleteExpired(ctx)
			if err != nil {
				c.logger.Error("hold compaction failed", "error", err)
				continue
			}
			if removed > 0 {
				c.logger.Info("expired holds compacted", "removed", removed)
			}
		}
	}
}
