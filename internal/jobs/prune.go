package jobs

import (
	"context"
	"log/slog"
	"time"
)

// RunPruner deletes terminal jobs older than retention once immediately and
// then every interval until ctx is done.
func RunPruner(ctx context.Context, store Store, retention, interval time.Duration, log *slog.Logger) {
	if retention <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}

	prune := func() {
		n, err := store.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			log.Warn("job prune failed", slog.String("error", err.Error()))
			return
		}
		if n > 0 {
			log.Debug("job prune", slog.Int("removed", n))
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
