// Package relay implements the conversation protocol: per-message quota and
// turn policy, the two-phase backend strategy, and delivery of either a
// narration reply or a terminal doom receipt.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spiralhq/doomspiral/internal/domain"
	"github.com/spiralhq/doomspiral/internal/drama"
	"github.com/spiralhq/doomspiral/internal/snap"
	"github.com/spiralhq/doomspiral/internal/store"
)

const (
	fallbackNotice = "The Spiral is catching its breath. Try again in a moment."
	receiptCaption = "Your doom receipt is ready. Share it on Instagram."
)

// DramaBackend generates the storyteller's replies.
type DramaBackend interface {
	Respond(ctx context.Context, req drama.Request) (string, error)
}

// ReceiptRenderer produces a receipt image file and returns its path.
type ReceiptRenderer interface {
	Render(data domain.Receipt) (string, error)
}

// Messenger delivers outbound messages and media.
type Messenger interface {
	SendText(ctx context.Context, to, body string) error
	UploadMedia(ctx context.Context, path, mimeType string) (string, error)
	SendImageByID(ctx context.Context, to, mediaID, caption string) error
}

// Options tune the per-message policy.
type Options struct {
	// MaxRequestsPerUser caps processed messages per user and quota window.
	// Zero disables the quota.
	MaxRequestsPerUser int
	// SnapTurnThreshold is the user-turn count at which a non-terminating
	// free reply triggers a forced termination call.
	SnapTurnThreshold int
	// ProcessTimeout bounds the whole per-message chain of outbound calls.
	// Zero means no bound.
	ProcessTimeout time.Duration
}

// Service orchestrates one inbound message end to end.
type Service struct {
	store     store.SessionStore
	backend   DramaBackend
	renderer  ReceiptRenderer
	messenger Messenger
	opts      Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a relay service with the given collaborators.
func NewService(s store.SessionStore, backend DramaBackend, renderer ReceiptRenderer, messenger Messenger, opts Options) *Service {
	return &Service{
		store:     s,
		backend:   backend,
		renderer:  renderer,
		messenger: messenger,
		opts:      opts,
		locks:     make(map[string]*sync.Mutex),
	}
}

// userLock returns the per-user mutex, creating it on first use. Messages
// for the same user serialize; different users proceed in parallel.
func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// HandleMessage processes one inbound message. It never returns an error:
// every internal failure ends in a logged, best-effort fallback reply so the
// webhook delivery can always be acknowledged.
func (s *Service) HandleMessage(ctx context.Context, msg domain.IncomingMessage) {
	lock := s.userLock(msg.From)
	lock.Lock()
	defer lock.Unlock()

	if s.opts.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ProcessTimeout)
		defer cancel()
	}

	count, err := s.store.IncrementRequestCount(ctx, msg.From)
	if err != nil {
		s.recover(ctx, msg.From, fmt.Errorf("increment request count: %w", err))
		return
	}
	if s.opts.MaxRequestsPerUser > 0 && count > s.opts.MaxRequestsPerUser {
		notice := fmt.Sprintf("You have reached the %d message limit for now. Try again later.",
			s.opts.MaxRequestsPerUser)
		if err := s.messenger.SendText(ctx, msg.From, notice); err != nil {
			slog.Warn("Failed to send quota notice", "user_id", msg.From, "error", err)
		}
		return
	}

	if err := s.process(ctx, msg); err != nil {
		s.recover(ctx, msg.From, err)
	}
}

// recover is the top-level failure boundary: log the cause, tell the user to
// retry, and leave the session untouched so no progress is lost.
func (s *Service) recover(ctx context.Context, userID string, cause error) {
	slog.Error("Message handling failed", "user_id", userID, "error", cause)
	if err := s.messenger.SendText(ctx, userID, fallbackNotice); err != nil {
		slog.Warn("Failed to send fallback message", "user_id", userID, "error", err)
	}
}

func (s *Service) process(ctx context.Context, msg domain.IncomingMessage) error {
	if err := s.store.AppendTurn(ctx, msg.From, domain.UserTurn(msg.Text)); err != nil {
		return fmt.Errorf("append user turn: %w", err)
	}
	turnCount, err := s.store.CountUserTurns(ctx, msg.From)
	if err != nil {
		return fmt.Errorf("count user turns: %w", err)
	}
	history, err := s.store.History(ctx, msg.From)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	reply, err := s.backend.Respond(ctx, drama.Request{
		History:   history,
		TurnCount: turnCount,
		UserName:  msg.Name,
	})
	if err != nil {
		return fmt.Errorf("free-mode backend call: %w", err)
	}

	result := snap.Parse(reply)
	if result == nil && turnCount >= s.opts.SnapTurnThreshold {
		// The backend is told to self-terminate but is not reliable about
		// it; a constrained second call bounds the conversation length.
		reply, err = s.backend.Respond(ctx, drama.Request{
			History:   history,
			TurnCount: turnCount,
			UserName:  msg.Name,
			ForceSnap: true,
		})
		if err != nil {
			return fmt.Errorf("forced backend call: %w", err)
		}
		result = snap.Parse(reply)
	}

	if result != nil {
		return s.terminate(ctx, msg, result)
	}

	if err := s.messenger.SendText(ctx, msg.From, reply); err != nil {
		return fmt.Errorf("send narration: %w", err)
	}
	if err := s.store.AppendTurn(ctx, msg.From, domain.AssistantTurn(reply)); err != nil {
		return fmt.Errorf("append assistant turn: %w", err)
	}
	return nil
}

func (s *Service) terminate(ctx context.Context, msg domain.IncomingMessage, result *snap.Result) error {
	path, err := s.renderer.Render(domain.Receipt{
		UserName:     msg.Name,
		DoomScore:    result.DoomScore,
		Summary:      result.Summary,
		RealityCheck: result.RealityCheck,
	})
	if err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}
	// The artifact is transient: removed after the upload attempt whether or
	// not delivery succeeds. Removal failure is logged, never propagated.
	defer func() {
		if err := os.Remove(path); err != nil {
			slog.Warn("Failed to delete receipt file", "path", path, "error", err)
		}
	}()

	mediaID, err := s.messenger.UploadMedia(ctx, path, "image/png")
	if err != nil {
		return fmt.Errorf("upload receipt: %w", err)
	}
	if mediaID == "" {
		return errors.New("media upload returned no id")
	}

	if err := s.messenger.SendImageByID(ctx, msg.From, mediaID, receiptCaption); err != nil {
		return fmt.Errorf("send receipt image: %w", err)
	}

	if err := s.store.ClearHistory(ctx, msg.From); err != nil {
		// The receipt reached the user; a stale transcript is the lesser
		// problem, so don't route this through the fallback notice.
		slog.Error("Failed to clear session after termination", "user_id", msg.From, "error", err)
	}
	return nil
}
