// Package llm defines the narrow contract to the chat completion inference
// service and its OpenAI-compatible implementation.
package llm

import (
	"context"
	"encoding/json"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of the chat transcript sent to the model.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // assistant messages echoing requested calls
	ToolCallID string     // tool messages referencing the call they answer
	Name       string     // tool messages: tool name
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolDef is one entry of the callable-function catalog advertised to the
// model. Parameters is a JSON-schema object.
type ToolDef struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// CompletionRequest is a single chat completion call.
type CompletionRequest struct {
	Messages    []Message
	Tools       []ToolDef
	Temperature float64
	MaxTokens   int
}

// Completion is the model's reply: either content, or one or more tool calls.
type Completion struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// StreamFunc receives incremental content deltas. Returning an error aborts
// the stream; the error is propagated out of Stream.
type StreamFunc func(delta string) error

// Client is the inference service contract consumed by the gateway and the
// executor's tool-calling loop.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
	Stream(ctx context.Context, req CompletionRequest, fn StreamFunc) error
}
