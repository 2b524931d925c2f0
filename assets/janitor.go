package assets

import (
	"context"
	"time"

	"github.com/meridianpress/draftsync/internal/logging"
	"github.com/sethvargo/go-retry"
)

// Remover is the slice of Coordinator the janitor needs.
type Remover interface {
	Remove(ctx context.Context, storagePath string) error
}

// Janitor removes superseded assets best-effort. A failed cleanup is
// retried a bounded number of times and then logged; it never propagates
// to the document update that replaced the asset.
type Janitor struct {
	remover  Remover
	logger   logging.Logger
	backoff  time.Duration
	attempts uint64
}

func NewJanitor(remover Remover, logger logging.Logger) *Janitor {
	return &Janitor{
		remover:  remover,
		logger:   logger.With("module", "asset_janitor"),
		backoff:  time.Second,
		attempts: 4,
	}
}

// Cleanup deletes the object at storagePath, retrying on failure with a
// constant backoff. It blocks until the object is gone or attempts are
// exhausted; use CleanupAsync from write paths.
func (j *Janitor) Cleanup(ctx context.Context, storagePath string) {
	if storagePath == "" {
		return
	}

	b := retry.WithMaxRetries(j.attempts, retry.NewConstant(j.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := j.remover.Remove(ctx, storagePath); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		j.logger.Warn(ctx, "superseded asset left behind", "path", storagePath, "error", err)
		return
	}
	j.logger.Debug(ctx, "superseded asset removed", "path", storagePath)
}

// CleanupAsync runs Cleanup in its own goroutine.
func (j *Janitor) CleanupAsync(ctx context.Context, storagePath string) {
	go j.Cleanup(ctx, storagePath)
}
