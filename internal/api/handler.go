// Package api provides the webhook HTTP handlers.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/spiralhq/doomspiral/internal/domain"
	"github.com/spiralhq/doomspiral/internal/whatsapp"
)

// Inbound message bodies above this size are rejected by the decoder.
const maxWebhookBody = 2 << 20

// MessageHandler processes one actionable inbound message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg domain.IncomingMessage)
}

// Handler exposes the webhook verification and intake endpoints.
type Handler struct {
	relay       MessageHandler
	verifyToken string
}

// NewHandler creates a webhook handler.
func NewHandler(relay MessageHandler, verifyToken string) *Handler {
	return &Handler{relay: relay, verifyToken: verifyToken}
}

// RegisterRoutes registers the webhook endpoints on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/webhook", h.verify)
	r.Post("/webhook", h.receive)
}

// verify answers the platform's subscription handshake: echo the challenge
// only for mode "subscribe" with the configured verify token.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
		return
	}
	w.WriteHeader(http.StatusForbidden)
}

// receive accepts one webhook delivery. It always acknowledges with 200 so
// the platform's retry policy never storms us over internal failures.
func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	var payload whatsapp.WebhookPayload
	body := http.MaxBytesReader(w, r.Body, maxWebhookBody)
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		slog.Warn("Ignoring undecodable webhook payload", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	incoming := whatsapp.ParseIncoming(payload)
	if incoming == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	h.relay.HandleMessage(r.Context(), *incoming)
	w.WriteHeader(http.StatusOK)
}
