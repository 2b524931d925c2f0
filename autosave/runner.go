package autosave

import (
	"context"
	"time"

	"github.com/meridianpress/draftsync/internal/logging"
)

// DefaultInterval is the autosave tick period.
const DefaultInterval = 2 * time.Second

// Runner drives the autosave tick loop. Ticks are serialized: a new tick
// does not start until the previous tick callback has returned. The
// callback itself may hand slow work (a remote save) to a goroutine, so a
// save still in flight when the next tick fires is accepted.
type Runner struct {
	interval time.Duration
	logger   logging.Logger
	tick     func(ctx context.Context)
}

func NewRunner(interval time.Duration, logger logging.Logger, tick func(ctx context.Context)) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{
		interval: interval,
		logger:   logger.With("module", "autosave"),
		tick:     tick,
	}
}

// Run blocks, firing the tick callback at the fixed interval until ctx is
// cancelled. Typically launched in its own goroutine.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Debug(ctx, "autosave runner started", "interval", r.interval)

	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-ctx.Done():
			r.logger.Debug(ctx, "autosave runner stopped")
			return
		}
	}
}
