package whatsapp

import (
	"strings"

	"github.com/spiralhq/doomspiral/internal/domain"
)

// WebhookPayload is the inbound webhook delivery shape.
type WebhookPayload struct {
	Entry []Entry `json:"entry"`
}

// Entry groups webhook changes for one account.
type Entry struct {
	Changes []Change `json:"changes"`
}

// Change is one notification inside an entry.
type Change struct {
	Value ChangeValue `json:"value"`
}

// ChangeValue carries the messages and contacts of a change.
type ChangeValue struct {
	Messages []Message `json:"messages"`
	Contacts []Contact `json:"contacts"`
}

// Message is one inbound message.
type Message struct {
	From string      `json:"from"`
	Type string      `json:"type"`
	Text MessageText `json:"text"`
}

// MessageText holds the body of a text message.
type MessageText struct {
	Body string `json:"body"`
}

// Contact describes the sender.
type Contact struct {
	Profile ContactProfile `json:"profile"`
}

// ContactProfile carries the sender's display name.
type ContactProfile struct {
	Name string `json:"name"`
}

// ParseIncoming extracts the actionable message from a webhook delivery: the
// first message of the first change of the first entry, only when it is a
// text message with a non-blank body. Anything else returns nil and the
// delivery is acknowledged without processing.
func ParseIncoming(payload WebhookPayload) *domain.IncomingMessage {
	if len(payload.Entry) == 0 || len(payload.Entry[0].Changes) == 0 {
		return nil
	}
	value := payload.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		return nil
	}

	msg := value.Messages[0]
	if msg.Type != "text" {
		return nil
	}
	text := strings.TrimSpace(msg.Text.Body)
	if text == "" {
		return nil
	}

	name := "Friend"
	if len(value.Contacts) > 0 && value.Contacts[0].Profile.Name != "" {
		name = value.Contacts[0].Profile.Name
	}

	return &domain.IncomingMessage{From: msg.From, Text: text, Name: name}
}
