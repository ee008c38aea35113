package rag

import (
	"context"
	"strings"
)

// Retriever looks up knowledge chunks relevant to a query. The gateway
// prepends retrieved chunks to the model context and reports their source
// documents in the end-of-stream event.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]Chunk, error)
}

// NoopRetriever retrieves nothing. Used when no knowledge base is
// configured.
type NoopRetriever struct{}

func (NoopRetriever) Retrieve(ctx context.Context, query string) ([]Chunk, error) {
	return nil, nil
}

// ContextBlock renders chunks into a system-prompt section. Returns the
// empty string when there is nothing to render.
func ContextBlock(chunks []Chunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Use the following reference material when it is relevant:\n")
	for _, chunk := range chunks {
		b.WriteString("\n---\n")
		if chunk.DocTitle != "" {
			b.WriteString(chunk.DocTitle)
			b.WriteString("\n")
		}
		b.WriteString(chunk.Content)
		b.WriteString("\n")
	}
	return b.String()
}
