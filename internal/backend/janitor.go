package backend

// janitor.go purges expired sessions and one-time codes on a timer. It is
// context-aware for graceful shutdown and logs, rather than returns, the
// failures of individual runs.

import (
	"context"
	"log/slog"
	"time"
)

// CodeRetention is how long expired codes are kept for troubleshooting.
const CodeRetention = 24 * time.Hour

// Purger deletes expired auth state.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time, retention time.Duration) (int64, error)
}

// StartJanitor runs one purge immediately, then every interval, until ctx
// is cancelled. Call it in its own goroutine.
func StartJanitor(ctx context.Context, p Purger, interval time.Duration) {
	slog.Info("session janitor started", "interval", interval.String())

	runPurge(ctx, p)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session janitor stopped")
			return
		case <-ticker.C:
			runPurge(ctx, p)
		}
	}
}

func runPurge(ctx context.Context, p Purger) {
	start := time.Now()
	n, err := p.PurgeExpired(ctx, start.UTC(), CodeRetention)
	if err != nil {
		slog.Error("purge expired sessions failed", "error", err)
		return
	}
	slog.Debug("purged expired sessions and codes",
		"rows", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
