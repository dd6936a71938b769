// Package sweep removes expired entries on an interval.
package sweep

import (
	"context"
	"time"

	"github.com/colonyops/kvstore/internal/core/logging"
)

// Cleaner removes expired entries, reporting false on failure.
type Cleaner interface {
	CleanUp(ctx context.Context) bool
}

// Start periodically calls CleanUp on c until ctx is cancelled. It blocks,
// so callers wanting a background sweep run it in a goroutine. onSweep, when
// non-nil, is called after each pass with its result.
func Start(ctx context.Context, c Cleaner, interval time.Duration, onSweep func(ok bool)) {
	logger := logging.Component("sweep")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok := c.CleanUp(ctx)
			if !ok {
				logger.Debug().Ctx(ctx).Msg("sweep failed")
			}
			if onSweep != nil {
				onSweep(ok)
			}
		}
	}
}
