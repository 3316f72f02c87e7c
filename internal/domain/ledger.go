package domain

import (
	"context"
	"log/slog"
	"time"
)

// LedgerPruner is implemented by dispatch ledgers that can expire entries.
type LedgerPruner interface {
	DeleteNotifiedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StartLedgerPruneJob removes ledger entries older than maxAge. It runs
// immediately on start and then repeats at the given interval. It blocks
// until ctx is cancelled.
func StartLedgerPruneJob(ctx context.Context, pruner LedgerPruner, interval, maxAge time.Duration, logger *slog.Logger) {
	prune := func() {
		deleted, err := pruner.DeleteNotifiedBefore(ctx, time.Now().UTC().Add(-maxAge))
		if err != nil {
			logger.Error("ledger prune failed", "error", err)
		} else if deleted > 0 {
			logger.Info("ledger prune complete", "deleted", deleted)
		}
	}
	prune()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
