package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	key := Key{UserID: "alice", ConversationID: "conv-1"}
	other := Key{UserID: "alice", ConversationID: "conv-2"}

	// Missing conversation reads as empty.
	entries, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Empty(t, entries)

	// Append then read back in order.
	require.NoError(t, s.Append(ctx, key,
		NewEntry("first question", "first answer", "openai", "gpt-4o"),
		NewEntry("second question", "second answer", "openai", "gpt-4o"),
	))
	require.NoError(t, s.Append(ctx, key, NewEntry("third question", "", "", "")))

	entries, err = s.Get(ctx, key)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "first question", entries[0].Query.Content)
	require.Equal(t, "second question", entries[1].Query.Content)
	require.Equal(t, "third question", entries[2].Query.Content)
	require.NotNil(t, entries[0].Response)
	require.Equal(t, "first answer", entries[0].Response.Content)
	require.Equal(t, "gpt-4o", entries[0].Response.Metadata["model"])
	require.Nil(t, entries[2].Response, "mid-stream entry has no response yet")

	// Other conversations are unaffected.
	entries, err = s.Get(ctx, other)
	require.NoError(t, err)
	require.Empty(t, entries)

	// Delete is idempotent.
	require.NoError(t, s.Delete(ctx, key))
	entries, err = s.Get(ctx, key)
	require.NoError(t, err)
	require.Empty(t, entries)
	require.NoError(t, s.Delete(ctx, key))
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := NewRedisStore(mr.Addr(), "", 0)
	require.NoError(t, err)
	defer s.Close()

	testStoreContract(t, s)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	key := Key{UserID: "u", ConversationID: "c"}

	require.NoError(t, s.Append(ctx, key, NewEntry("q", "a", "p", "m")))

	first, err := s.Get(ctx, key)
	require.NoError(t, err)
	first[0].Query.Content = "mutated"

	second, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "q", second[0].Query.Content)
}
