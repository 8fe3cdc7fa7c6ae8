package provider

import (
	"context"
	"strings"
)

// LLMProvider defines the interface for interacting with an LLM provider.
type LLMProvider interface {
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error)
}

// CompletionRequest represents a request to an LLM for completion.
type CompletionRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Stream event types.
const (
	EventTextDelta = "text_delta"
	EventStop      = "stop"
	EventError     = "error"
)

// StreamEvent represents a single event in a streaming response.
type StreamEvent struct {
	Type  string
	Text  string
	Error error
}

// NewUserMessage creates a new user message.
func NewUserMessage(text string) Message {
	return Message{Role: "user", Content: text}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(text string) Message {
	return Message{Role: "assistant", Content: text}
}

// Collect drains ch and returns the concatenated text. onDelta, when not
// nil, sees every text fragment as it arrives. The first error event ends
// collection.
func Collect(ch <-chan StreamEvent, onDelta func(string)) (string, error) {
	var sb strings.Builder
	for evt := range ch {
		switch evt.Type {
		case EventTextDelta:
			sb.WriteString(evt.Text)
			if onDelta != nil {
				onDelta(evt.Text)
			}
		case EventError:
			// Drain so the producer goroutine can exit.
			go func() {
				for range ch {
				}
			}()
			return sb.String(), evt.Error
		}
	}
	return sb.String(), nil
}
