package store

import (
	"context"
	"log/slog"
	"time"
)

const ttlSweepInterval = 5 * time.Minute

// StartTTLWorker runs a background goroutine that periodically drops
// transcripts idle longer than ttl. A ttl of zero disables eviction, which
// matches the reference behavior of never expiring a conversation.
func StartTTLWorker(ctx context.Context, s SessionStore, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	ticker := time.NewTicker(ttlSweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session TTL worker started", "interval", ttlSweepInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				removed, err := s.CleanupIdleSessions(ctx, ttl)
				if err != nil {
					slog.Error("Session TTL sweep failed", "error", err)
					continue
				}
				if removed > 0 {
					slog.Info("Session TTL sweep removed idle sessions", "count", removed)
				}
			case <-ctx.Done():
				slog.Info("Session TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
