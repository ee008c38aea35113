package protocol

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/codefionn/modelgate/internal/logger"
)

// SSEEncoder frames each chunk as "data: <json>\n\n". The JSON envelope
// is {"event": <kind>, "data": <payload>} so a consumer can dispatch
// without inspecting payload shapes.
type SSEEncoder struct {
	w        io.Writer
	flusher  http.Flusher
	log      *logger.Logger
	tokenSeq int
	done     bool
}

// NewSSEEncoder wraps a response writer. Flushing after every event is
// what makes the stream incremental; a writer without http.Flusher still
// works but delivers in whole-response batches.
func NewSSEEncoder(w io.Writer) *SSEEncoder {
	enc := &SSEEncoder{
		w:   w,
		log: logger.Global().WithPrefix("sse"),
	}
	if flusher, ok := w.(http.Flusher); ok {
		enc.flusher = flusher
	}
	return enc
}

func (e *SSEEncoder) ContentType() string { return "text/event-stream" }

type sseEnvelope struct {
	Event ChunkKind   `json:"event"`
	Data  interface{} `json:"data"`
}

type ssePayloadStart struct {
	ConversationID string `json:"conversation_id"`
}

type ssePayloadToken struct {
	ID    int    `json:"id"`
	Token string `json:"token"`
}

type ssePayloadToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type ssePayloadToolResult struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Content string `json:"content"`
}

type ssePayloadApproval struct {
	ApprovalID string             `json:"approval_id"`
	ToolCall   ssePayloadToolCall `json:"tool_call"`
}

func (e *SSEEncoder) Encode(chunk Chunk) error {
	if e.done {
		// A terminal event already went out; drop stragglers.
		return nil
	}

	var payload interface{}
	switch chunk.Kind {
	case KindStart:
		payload = ssePayloadStart{ConversationID: chunk.ConversationID}
	case KindToken:
		payload = ssePayloadToken{ID: e.tokenSeq, Token: chunk.Token}
		e.tokenSeq++
	case KindToolCall:
		payload = toolCallPayload(chunk)
	case KindToolResult:
		payload = ssePayloadToolResult{
			ID:      chunk.ToolResult.ToolCallID,
			Status:  string(chunk.ToolResult.Status),
			Content: chunk.ToolResult.Content,
		}
	case KindApprovalRequired:
		payload = ssePayloadApproval{
			ApprovalID: chunk.ApprovalID,
			ToolCall:   toolCallPayload(chunk),
		}
	case KindError:
		payload = chunk.Err
		e.done = true
	case KindEnd:
		payload = chunk.End
		e.done = true
	default:
		return fmt.Errorf("unknown chunk kind: %s", chunk.Kind)
	}

	body, err := json.Marshal(sseEnvelope{Event: chunk.Kind, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", chunk.Kind, err)
	}

	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", body); err != nil {
		return fmt.Errorf("failed to write %s event: %w", chunk.Kind, err)
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

func toolCallPayload(chunk Chunk) ssePayloadToolCall {
	payload := ssePayloadToolCall{
		ID:   chunk.ToolCall.ID,
		Name: chunk.ToolCall.Name,
	}
	args := []byte(chunk.ToolCall.Arguments)
	if json.Valid(args) && len(args) > 0 {
		payload.Arguments = json.RawMessage(args)
	} else {
		quoted, _ := json.Marshal(chunk.ToolCall.Arguments)
		payload.Arguments = json.RawMessage(quoted)
	}
	return payload
}
