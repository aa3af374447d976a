package drama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spiralhq/doomspiral/internal/domain"
)

func newStubBackend(t *testing.T, reply string, captured *openai.ChatCompletionRequest) *Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
			t.Errorf("decode completion request: %v", err)
		}
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: "assistant", Content: reply}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode completion response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	return NewWithBaseURL("test-key", "test-model", srv.URL+"/v1")
}

func TestRespondMissingAPIKey(t *testing.T) {
	c := New("", "")

	_, err := c.Respond(context.Background(), Request{})
	if err != ErrMissingAPIKey {
		t.Errorf("Respond error = %v, want ErrMissingAPIKey", err)
	}
}

func TestRespondFreeMode(t *testing.T) {
	var captured openai.ChatCompletionRequest
	c := newStubBackend(t, "  The oven plots against you.  ", &captured)

	got, err := c.Respond(context.Background(), Request{
		History:   []domain.Turn{domain.UserTurn("I left the oven on.")},
		TurnCount: 1,
		UserName:  "Alice",
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got != "The oven plots against you." {
		t.Errorf("reply = %q, want trimmed narration", got)
	}

	if captured.Model != "test-model" {
		t.Errorf("model = %q, want test-model", captured.Model)
	}
	if captured.Temperature != freeTemperature {
		t.Errorf("temperature = %v, want %v", captured.Temperature, freeTemperature)
	}
	if captured.MaxTokens != maxOutputTokens {
		t.Errorf("max tokens = %d, want %d", captured.MaxTokens, maxOutputTokens)
	}

	if len(captured.Messages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(captured.Messages))
	}
	system := captured.Messages[0]
	if system.Role != openai.ChatMessageRoleSystem {
		t.Errorf("first message role = %q, want system", system.Role)
	}
	if !strings.Contains(system.Content, "UserName: Alice") {
		t.Error("system prompt is missing the user name")
	}
	if !strings.Contains(system.Content, "UserTurnCount: 1") {
		t.Error("system prompt is missing the turn count")
	}
	if captured.Messages[1].Role != "user" || captured.Messages[1].Content != "I left the oven on." {
		t.Errorf("unexpected history message: %+v", captured.Messages[1])
	}
}

func TestRespondForcedSnapMode(t *testing.T) {
	var captured openai.ChatCompletionRequest
	c := newStubBackend(t, `{"Status":"SNAP","DoomScore":87}`, &captured)

	_, err := c.Respond(context.Background(), Request{
		History:   []domain.Turn{domain.UserTurn("hi")},
		TurnCount: 4,
		UserName:  "Alice",
		ForceSnap: true,
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if captured.Temperature != forcedTemperature {
		t.Errorf("temperature = %v, want %v", captured.Temperature, forcedTemperature)
	}
	system := captured.Messages[0].Content
	if !strings.Contains(system, `Return JSON ONLY with Status "SNAP"`) {
		t.Errorf("forced mode did not use the snap-only prompt: %q", system)
	}
	if strings.Contains(system, "Drama Queen") {
		t.Error("forced mode leaked the free-mode persona prompt")
	}
}
