// Package store provides conversation-state persistence interfaces and
// implementations.
package store

import (
	"context"
	"time"

	"github.com/spiralhq/doomspiral/internal/domain"
)

// SessionStore holds per-user conversation transcripts and request counters.
//
// The memory implementation reproduces the reference behavior: process-wide
// state, reset on restart. The SQLite implementation keeps transcripts and
// quotas across restarts.
type SessionStore interface {
	// History returns the transcript for a user, oldest turn first.
	// An unknown user yields an empty transcript, not an error.
	History(ctx context.Context, userID string) ([]domain.Turn, error)

	// AppendTurn appends one turn to a user's transcript, creating the
	// session if it does not exist yet.
	AppendTurn(ctx context.Context, userID string, turn domain.Turn) error

	// CountUserTurns counts user-authored turns in a user's transcript.
	CountUserTurns(ctx context.Context, userID string) (int, error)

	// ClearHistory removes a user's session entirely. A subsequent History
	// starts fresh.
	ClearHistory(ctx context.Context, userID string) error

	// IncrementRequestCount increments and returns the user's request count
	// for the current quota window.
	IncrementRequestCount(ctx context.Context, userID string) (int, error)

	// RequestCount returns the user's request count without incrementing.
	RequestCount(ctx context.Context, userID string) (int, error)

	// ResetRequestCount clears a user's request count (administrative reset).
	ResetRequestCount(ctx context.Context, userID string) error

	// CleanupIdleSessions removes transcripts idle longer than idleFor and
	// returns how many sessions were removed. Request counters are left
	// alone; the quota window policy owns their lifetime.
	CleanupIdleSessions(ctx context.Context, idleFor time.Duration) (int64, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close() error
}
