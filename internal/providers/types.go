// Package providers talks to the LLM backend that generates personality
// responses.
package providers

import (
	"context"
	"fmt"
)

// Message is one turn in a chat exchange.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is a chat-completion call.
type ChatRequest struct {
	Model    string
	Messages []Message

	// UserToken, when set, authenticates the call as the acting user
	// rather than with the service-level API key.
	UserToken string
}

// ChatResponse is the backend's reply.
type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        *Usage
}

// Usage reports token accounting when the backend returns it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// HTTPError is a non-200 backend response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Body)
}

// Provider generates a chat completion.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
