// Package rag holds the retrieved-context types the gateway reports back to
// callers. Retrieval and ranking themselves happen outside the core.
package rag

// Chunk is one retrieved context snippet together with its source document.
type Chunk struct {
	Content  string  `json:"content"`
	DocTitle string  `json:"doc_title"`
	DocURL   string  `json:"doc_url"`
	Score    float64 `json:"score,omitempty"`
}

// ReferencedDocument identifies a source document cited in a response.
type ReferencedDocument struct {
	Title string `json:"doc_title"`
	URL   string `json:"doc_url"`
}

// CollectReferencedDocuments extracts the documents behind a set of chunks,
// deduplicated by (title, url). The first occurrence wins and insertion
// order is preserved.
func CollectReferencedDocuments(chunks []Chunk) []ReferencedDocument {
	seen := make(map[ReferencedDocument]struct{}, len(chunks))
	docs := make([]ReferencedDocument, 0, len(chunks))

	for _, chunk := range chunks {
		doc := ReferencedDocument{Title: chunk.DocTitle, URL: chunk.DocURL}
		if doc.Title == "" && doc.URL == "" {
			continue
		}
		if _, ok := seen[doc]; ok {
			continue
		}
		seen[doc] = struct{}{}
		docs = append(docs, doc)
	}

	return docs
}

// DedupDocuments removes duplicate (title, url) pairs from an already
// assembled document list, keeping first-seen order.
func DedupDocuments(docs []ReferencedDocument) []ReferencedDocument {
	seen := make(map[ReferencedDocument]struct{}, len(docs))
	result := make([]ReferencedDocument, 0, len(docs))

	for _, doc := range docs {
		if _, ok := seen[doc]; ok {
			continue
		}
		seen[doc] = struct{}{}
		result = append(result, doc)
	}

	return result
}
