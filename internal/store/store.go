// Package store persists conversation history keyed by user and
// conversation. The gateway core only relies on the Get/Append/Delete
// contract; the engines here are interchangeable.
package store

import (
	"context"
	"time"
)

// TurnText is one side of a conversational turn with free-form metadata
// such as timestamps and the provider/model used.
type TurnText struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CacheEntry is one conversational turn: a user query and an optionally
// absent model response (absent e.g. mid-stream). Immutable once created,
// ordered within a conversation by insertion time.
type CacheEntry struct {
	Query    TurnText  `json:"query"`
	Response *TurnText `json:"response,omitempty"`
}

// NewEntry builds a turn from a query/response pair, stamping the time and
// model provenance into the metadata.
func NewEntry(query, response, provider, model string) CacheEntry {
	now := time.Now().UTC().Format(time.RFC3339)
	entry := CacheEntry{
		Query: TurnText{
			Content:  query,
			Metadata: map[string]string{"created_at": now},
		},
	}
	if response != "" {
		entry.Response = &TurnText{
			Content: response,
			Metadata: map[string]string{
				"created_at": now,
				"provider":   provider,
				"model":      model,
			},
		}
	}
	return entry
}

// Key identifies one conversation for one user.
type Key struct {
	UserID         string
	ConversationID string
}

// Store is the conversation persistence contract. Implementations must
// provide read-your-writes consistency per key; no cross-key guarantees are
// required.
type Store interface {
	// Get returns the conversation's entries oldest first, or an empty
	// slice when the conversation does not exist.
	Get(ctx context.Context, key Key) ([]CacheEntry, error)
	// Append inserts the conversation if absent and appends the entries
	// in order otherwise.
	Append(ctx context.Context, key Key, entries ...CacheEntry) error
	// Delete removes the conversation entirely. Deleting a missing
	// conversation is not an error.
	Delete(ctx context.Context, key Key) error
	// Close releases any underlying resources.
	Close() error
}
