package protocol

import (
	"fmt"
	"io"
	"net/http"
)

// TextEncoder degrades the event stream to plain incremental text. Tool
// activity is invisible in this mode; referenced documents trail the
// response in a separator block and errors render as sentences.
type TextEncoder struct {
	w       io.Writer
	flusher http.Flusher
	done    bool
}

// NewTextEncoder wraps a response writer for media type text.
func NewTextEncoder(w io.Writer) *TextEncoder {
	enc := &TextEncoder{w: w}
	if flusher, ok := w.(http.Flusher); ok {
		enc.flusher = flusher
	}
	return enc
}

func (e *TextEncoder) ContentType() string { return "text/plain; charset=utf-8" }

func (e *TextEncoder) Encode(chunk Chunk) error {
	if e.done {
		return nil
	}

	switch chunk.Kind {
	case KindToken:
		if err := e.write(chunk.Token); err != nil {
			return err
		}
	case KindError:
		e.done = true
		msg := fmt.Sprintf("Error: %s (%s)\n", chunk.Err.Response, chunk.Err.Cause)
		if err := e.write(msg); err != nil {
			return err
		}
	case KindEnd:
		e.done = true
		if len(chunk.End.ReferencedDocuments) > 0 {
			if err := e.write("\n\n---\n\n"); err != nil {
				return err
			}
			for _, doc := range chunk.End.ReferencedDocuments {
				if err := e.write(fmt.Sprintf("%s: %s\n", doc.Title, doc.URL)); err != nil {
					return err
				}
			}
		}
	case KindStart, KindToolCall, KindToolResult, KindApprovalRequired:
		// Not representable as plain text.
	}
	return nil
}

func (e *TextEncoder) write(s string) error {
	if _, err := io.WriteString(e.w, s); err != nil {
		return fmt.Errorf("failed to write response text: %w", err)
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}
