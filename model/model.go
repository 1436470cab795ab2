// Package model defines the narrow completion interface the agents use for
// analysis narrative, plus provider adapters in subpackages. Agents issue
// single-shot, non-streaming completions; tool calling and conversation
// history are deliberately out of scope, so the interface stays minimal and
// providers remain trivially swappable.
package model

import "context"

// Request is a single-shot completion request.
type Request struct {
	// Instructions is the system-level framing for the completion.
	Instructions string `json:"instructions,omitempty"`
	// Prompt is the user-level content to complete against.
	Prompt string `json:"prompt"`
}

// Usage captures token usage statistics for a response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the provider's completion output.
type Response struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", etc.
}

// Model is implemented by provider adapters. Complete must respect context
// cancellation and deadlines; the orchestrator applies a per-call timeout.
type Model interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Info() Info
}
