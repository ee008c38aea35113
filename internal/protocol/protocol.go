// Package protocol encodes orchestration events into the response stream.
// Two encodings exist: server-sent events for media type json, and plain
// incremental text for media type text. Encoders guarantee exactly one
// terminal event per stream.
package protocol

import (
	"github.com/codefionn/modelgate/internal/llm"
	"github.com/codefionn/modelgate/internal/rag"
)

// ChunkKind discriminates the variants of a Chunk.
type ChunkKind string

const (
	KindStart            ChunkKind = "start"
	KindToken            ChunkKind = "token"
	KindToolCall         ChunkKind = "tool_call"
	KindToolResult       ChunkKind = "tool_result"
	KindApprovalRequired ChunkKind = "approval_required"
	KindError            ChunkKind = "error"
	KindEnd              ChunkKind = "end"
)

// Chunk is one orchestration event. Exactly one payload field matching
// Kind is set.
type Chunk struct {
	Kind ChunkKind

	ConversationID string          // KindStart
	Token          string          // KindToken
	ToolCall       *llm.ToolCall   // KindToolCall, KindApprovalRequired
	ToolResult     *llm.ToolResult // KindToolResult
	ApprovalID     string          // KindApprovalRequired
	Err            *ErrorPayload   // KindError
	End            *EndPayload     // KindEnd
}

// ErrorPayload is the terminal error event body.
type ErrorPayload struct {
	StatusCode int    `json:"status_code"`
	Response   string `json:"response"`
	Cause      string `json:"cause"`
}

// ErrorPayloadFrom converts a classified upstream error into the wire shape.
func ErrorPayloadFrom(classified llm.ClassifiedError) *ErrorPayload {
	return &ErrorPayload{
		StatusCode: classified.StatusCode,
		Response:   classified.Response,
		Cause:      classified.Cause,
	}
}

// EndPayload is the terminal success event body.
type EndPayload struct {
	ReferencedDocuments []rag.ReferencedDocument `json:"referenced_documents"`
	Truncated           bool                     `json:"truncated"`
	InputTokens         int                      `json:"input_tokens"`
	OutputTokens        int                      `json:"output_tokens"`
	AvailableQuotas     map[string]int64         `json:"available_quotas"`
}

// Encoder writes chunks to the client. Implementations must tolerate
// chunks arriving after a terminal chunk by dropping them, so that no
// failure path can produce a second terminal event.
type Encoder interface {
	Encode(chunk Chunk) error
	// ContentType is the response content type for this encoding.
	ContentType() string
}

// StartChunk builds the stream-opening event.
func StartChunk(conversationID string) Chunk {
	return Chunk{Kind: KindStart, ConversationID: conversationID}
}

// TokenChunk builds a text-delta event.
func TokenChunk(text string) Chunk {
	return Chunk{Kind: KindToken, Token: text}
}

// ToolCallChunk builds a tool-call event.
func ToolCallChunk(call llm.ToolCall) Chunk {
	return Chunk{Kind: KindToolCall, ToolCall: &call}
}

// ToolResultChunk builds a tool-result event.
func ToolResultChunk(result llm.ToolResult) Chunk {
	return Chunk{Kind: KindToolResult, ToolResult: &result}
}

// ApprovalRequiredChunk builds an approval-request event.
func ApprovalRequiredChunk(approvalID string, call llm.ToolCall) Chunk {
	return Chunk{Kind: KindApprovalRequired, ApprovalID: approvalID, ToolCall: &call}
}

// ErrorChunk builds the terminal error event.
func ErrorChunk(payload *ErrorPayload) Chunk {
	return Chunk{Kind: KindError, Err: payload}
}

// EndChunk builds the terminal success event.
func EndChunk(payload *EndPayload) Chunk {
	return Chunk{Kind: KindEnd, End: payload}
}
