// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (e.g., OpenAI, Anthropic,
// or a local Ollama instance) and exposes a uniform completion call so that
// résumé parsing, question generation and grading can run against any of them
// without coupling to a specific SDK.
//
// Implementors must be safe for concurrent use.
package llm

import (
	"context"
	"errors"
)

// ErrNoChoices is returned by adapters when the backend answered without a
// single completion choice.
var ErrNoChoices = errors.New("llm: response has no choices")

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role is one of [RoleSystem], [RoleUser] or [RoleAssistant].
	Role string

	// Content is the text content of the message.
	Content string
}

// UserMessage is shorthand for a user-role [Message].
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message is typically from
	// the user role and drives the response.
	Messages []Message

	// Temperature controls output randomness in the range [0.0, 2.0]. Zero
	// leaves the provider default in place.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means provider
	// default.
	MaxTokens int

	// SystemPrompt is an optional instruction placed before Messages. Providers
	// without a dedicated system field prepend it as a system-role message.
	SystemPrompt string

	// JSON asks the provider to constrain output to a JSON object where the
	// backend supports it. Callers must still validate the result.
	JSON bool
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
//
// Complete must propagate context cancellation promptly and return an error if
// the request fails or ctx is cancelled before the completion arrives.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Func adapts an ordinary function to the [Provider] interface.
type Func func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

// Complete calls f(ctx, req).
func (f Func) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return f(ctx, req)
}
