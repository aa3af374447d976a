package store

import (
	"context"
	"sync"
	"time"

	"github.com/spiralhq/doomspiral/internal/domain"
)

type memorySession struct {
	turns      []domain.Turn
	lastActive time.Time
}

type memoryCounter struct {
	count       int
	windowStart time.Time
}

// MemoryStore implements SessionStore with process-wide maps. State is lost
// on restart, which matches the reference behavior.
type MemoryStore struct {
	mu          sync.Mutex
	quotaWindow time.Duration
	sessions    map[string]*memorySession
	counters    map[string]*memoryCounter
	now         func() time.Time
}

// NewMemory creates an in-memory session store. quotaWindow controls request
// counting: zero means lifetime counts with no reset, a positive duration
// restarts the count once the window has elapsed.
func NewMemory(quotaWindow time.Duration) *MemoryStore {
	return &MemoryStore{
		quotaWindow: quotaWindow,
		sessions:    make(map[string]*memorySession),
		counters:    make(map[string]*memoryCounter),
		now:         time.Now,
	}
}

// History returns a copy of the user's transcript, oldest turn first.
func (s *MemoryStore) History(_ context.Context, userID string) ([]domain.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	out := make([]domain.Turn, len(sess.turns))
	copy(out, sess.turns)
	return out, nil
}

// AppendTurn appends one turn, creating the session if needed.
func (s *MemoryStore) AppendTurn(_ context.Context, userID string, turn domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		sess = &memorySession{}
		s.sessions[userID] = sess
	}
	sess.turns = append(sess.turns, turn)
	sess.lastActive = s.now()
	return nil
}

// CountUserTurns counts user-authored turns in the transcript.
func (s *MemoryStore) CountUserTurns(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return 0, nil
	}
	n := 0
	for _, t := range sess.turns {
		if t.Role == domain.RoleUser {
			n++
		}
	}
	return n, nil
}

// ClearHistory removes the session entirely.
func (s *MemoryStore) ClearHistory(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, userID)
	return nil
}

// IncrementRequestCount increments and returns the user's request count for
// the current quota window.
func (s *MemoryStore) IncrementRequestCount(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.counters[userID]
	if !ok {
		c = &memoryCounter{windowStart: now}
		s.counters[userID] = c
	}
	if s.quotaWindow > 0 && now.Sub(c.windowStart) >= s.quotaWindow {
		c.count = 0
		c.windowStart = now
	}
	c.count++
	return c.count, nil
}

// RequestCount returns the current count without incrementing.
func (s *MemoryStore) RequestCount(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[userID]
	if !ok {
		return 0, nil
	}
	if s.quotaWindow > 0 && s.now().Sub(c.windowStart) >= s.quotaWindow {
		return 0, nil
	}
	return c.count, nil
}

// ResetRequestCount clears the user's request count.
func (s *MemoryStore) ResetRequestCount(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.counters, userID)
	return nil
}

// CleanupIdleSessions removes transcripts idle longer than idleFor.
func (s *MemoryStore) CleanupIdleSessions(_ context.Context, idleFor time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idleFor)
	var removed int64
	for userID, sess := range s.sessions {
		if sess.lastActive.Before(cutoff) {
			delete(s.sessions, userID)
			removed++
		}
	}
	return removed, nil
}

// Ping always succeeds for the memory store.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }
