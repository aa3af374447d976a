package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/spiralhq/doomspiral/internal/domain"
)

type recordingRelay struct {
	handled []domain.IncomingMessage
}

func (r *recordingRelay) HandleMessage(_ context.Context, msg domain.IncomingMessage) {
	r.handled = append(r.handled, msg)
}

func newTestRouter(relay *recordingRelay) chi.Router {
	r := chi.NewRouter()
	NewHandler(relay, "expected-token").RegisterRoutes(r)
	return r
}

func TestVerifySuccess(t *testing.T) {
	router := newTestRouter(&recordingRelay{})

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=expected-token&hub.challenge=12345", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body, _ := io.ReadAll(w.Result().Body)
	if string(body) != "12345" {
		t.Errorf("body = %q, want the challenge echoed", body)
	}
}

func TestVerifyRejections(t *testing.T) {
	cases := []struct {
		name  string
		query string
	}{
		{"wrong token", "hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1"},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=expected-token&hub.challenge=1"},
		{"no params", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&recordingRelay{})
			req := httptest.NewRequest(http.MethodGet, "/webhook?"+tc.query, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusForbidden {
				t.Errorf("status = %d, want 403", w.Code)
			}
		})
	}
}

func TestReceiveTextMessage(t *testing.T) {
	relay := &recordingRelay{}
	router := newTestRouter(relay)

	payload := `{
		"entry": [{"changes": [{"value": {
			"contacts": [{"profile": {"name": "Alice"}}],
			"messages": [{"from": "15551234", "type": "text", "text": {"body": "hello"}}]
		}}]}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(relay.handled) != 1 {
		t.Fatalf("handled = %d messages, want 1", len(relay.handled))
	}
	got := relay.handled[0]
	if got.From != "15551234" || got.Text != "hello" || got.Name != "Alice" {
		t.Errorf("unexpected message: %+v", got)
	}
}

func TestReceiveNonActionableStillAcks(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"status update", `{"entry": [{"changes": [{"value": {"statuses": [{}]}}]}]}`},
		{"image message", `{"entry": [{"changes": [{"value": {"messages": [{"from": "1", "type": "image"}]}}]}]}`},
		{"malformed json", `{"entry": [`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			relay := &recordingRelay{}
			router := newTestRouter(relay)

			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want 200 (always acknowledge)", w.Code)
			}
			if len(relay.handled) != 0 {
				t.Errorf("non-actionable payload reached the relay: %+v", relay.handled)
			}
		})
	}
}
