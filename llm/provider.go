// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific error handling
// - Tool-call accumulation during streaming

package llm

import (
	"context"
)

// TextFunc receives text chunks as they arrive from a streaming completion.
// Implementations must be fast; slow handlers delay the stream.
type TextFunc func(text string)

// Provider defines the abstract interface for LLM providers.
// Implementations hide provider-specific details while exposing
// a consistent interface for tool-augmented chat completions.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// ChatWithTools sends a chat completion request with tool definitions.
	// The LLM may respond with tool calls in LLMResponse.ToolCalls.
	ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (LLMResponse, error)

	// StreamChatWithTools streams a chat completion with tool definitions.
	// Text chunks are delivered through onText in arrival order; the
	// returned response carries the full accumulated content plus any
	// tool calls the model requested during the turn.
	StreamChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, onText TextFunc) (LLMResponse, error)
}
