// Package drama drives the generative backend behind the relay: an
// escalating storyteller persona that eventually terminates a conversation
// with a structured SNAP payload.
package drama

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spiralhq/doomspiral/internal/domain"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o"

const (
	freeTemperature   = 0.9
	forcedTemperature = 0.4
	maxOutputTokens   = 400
)

// ErrMissingAPIKey is returned when no backend API key is configured. The
// check happens at call time, not startup, so the server can come up and
// verify webhooks without credentials.
var ErrMissingAPIKey = errors.New("missing OPENAI_API_KEY")

// Request describes one backend invocation.
type Request struct {
	History   []domain.Turn
	TurnCount int
	UserName  string
	// ForceSnap switches to the constrained termination prompt with lower
	// sampling temperature, used to deterministically end a conversation
	// once the turn threshold is reached.
	ForceSnap bool
}

// Client calls the chat-completion backend.
type Client struct {
	api    *openai.Client
	apiKey string
	model  string
}

// New creates a backend client. model may be empty, in which case
// DefaultModel is used.
func New(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		api:    openai.NewClient(apiKey),
		apiKey: apiKey,
		model:  model,
	}
}

// NewWithBaseURL creates a client pointed at an alternate API origin. Used
// by tests to target a stub server.
func NewWithBaseURL(apiKey, model, baseURL string) *Client {
	if model == "" {
		model = DefaultModel
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &Client{
		api:    openai.NewClientWithConfig(cfg),
		apiKey: apiKey,
		model:  model,
	}
}

// Respond sends the conversation to the backend and returns its trimmed
// free-text reply. An empty reply means the backend returned no content.
func (c *Client) Respond(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	var systemPrompt string
	var temperature float32
	if req.ForceSnap {
		systemPrompt = snapOnlyPrompt
		temperature = forcedTemperature
	} else {
		systemPrompt = buildSystemPrompt(req.TurnCount, req.UserName)
		temperature = freeTemperature
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, turn := range req.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
