package llm

import (
	"context"
)

// Message represents a chat message
type Message struct {
	Role       string     `json:"role"` // "system", "user", "assistant", "tool"
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// ToolCall is a complete tool invocation requested by the model.
// Arguments is the raw JSON argument string as produced by the provider.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResultStatus reports whether a tool execution succeeded.
type ToolResultStatus string

const (
	ToolStatusOK    ToolResultStatus = "ok"
	ToolStatusError ToolResultStatus = "error"
)

// ToolResult is the outcome of executing one ToolCall.
type ToolResult struct {
	ToolCallID string           `json:"tool_call_id"`
	Status     ToolResultStatus `json:"status"`
	Content    string           `json:"content"`
}

// ToolDefinition describes a tool the model may be bound to.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
}

// Usage carries provider-reported token counts for one invocation.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ToolCallFragment is one streamed piece of a tool call. Providers stream
// structured arguments piecemeal; fragments sharing the same Index belong to
// the same call and their Arguments concatenate in arrival order.
type ToolCallFragment struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Fragment is one increment of a streamed model response. A fragment with a
// non-empty FinishReason is the last one the provider will send.
type Fragment struct {
	Text         string
	ToolCalls    []ToolCallFragment
	FinishReason string
	Usage        *Usage
}

// IsTerminalStop reports whether a finish reason means the model is done
// with the whole turn, as opposed to pausing for tool results.
func IsTerminalStop(reason string) bool {
	switch reason {
	case "stop", "end_turn", "length", "max_tokens", "stop_sequence":
		return true
	default:
		return false
	}
}

// FragmentHandler receives streamed fragments. Returning an error stops the
// stream and propagates out of Stream.
type FragmentHandler func(Fragment) error

// CompletionRequest represents a completion request
type CompletionRequest struct {
	Messages     []*Message       `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Temperature  float64          `json:"temperature,omitempty"`
	MaxTokens    int              `json:"max_tokens,omitempty"`
	SystemPrompt string           `json:"system_prompt,omitempty"`
}

// Client is the interface for streaming LLM clients
type Client interface {
	// Complete is a blocking single-prompt completion, used for
	// history summarization.
	Complete(ctx context.Context, prompt string) (string, error)
	// Stream sends a completion request and delivers the response as an
	// incremental fragment sequence.
	Stream(ctx context.Context, req *CompletionRequest, fn FragmentHandler) error
	// ModelName returns the model identifier
	ModelName() string
	// ProviderName returns the provider identifier, e.g. "openai"
	ProviderName() string
}
