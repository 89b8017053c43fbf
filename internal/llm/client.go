// Package llm defines the text-generation client interface and the
// Ollama-backed implementation used for automated replies.
package llm

import (
	"context"
	"time"
)

// CompletionRequest is the input to a Complete call. The prompt carries
// everything the model needs; there is no separate chat history because
// prompts are fully composed upstream.
type CompletionRequest struct {
	Prompt      string   `json:"prompt"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// CompletionResponse is the result of a completion.
type CompletionResponse struct {
	Content  string        `json:"content"`
	Model    string        `json:"model,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Client is the interface all generation providers implement.
type Client interface {
	// Complete sends a request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g. "ollama").
	Name() string
}
