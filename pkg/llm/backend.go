// Package llm provides the chat-completion backends used for SQL generation
// and result analysis.
package llm

import (
	"context"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a single chat-completion call.
type CompletionRequest struct {
	SystemPrompt string
	History      []Message
	UserMessage  string
	Temperature  float64
	MaxTokens    int
}

// Completion is the text a backend produced plus token usage.
type Completion struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// Backend is a chat-completion provider for one model.
// Use this interface for dependency injection to enable mocking in tests.
type Backend interface {
	// Complete sends the system prompt, history and user message and
	// returns the raw completion text. Failures are *Error values.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// Model returns the provider model name.
	Model() string

	// IsLocal reports whether the model runs locally with a small context
	// window, which callers use to budget the prompt.
	IsLocal() bool
}
