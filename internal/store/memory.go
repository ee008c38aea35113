package store

import (
	"context"
	"sync"
)

// MemoryStore keeps conversations in process memory. The default engine for
// tests and single-instance deployments.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[Key][]CacheEntry
}

// NewMemoryStore creates an empty in-memory conversation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[Key][]CacheEntry),
	}
}

func (s *MemoryStore) Get(_ context.Context, key Key) ([]CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.conversations[key]
	out := make([]CacheEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, key Key, entries ...CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[key] = append(s.conversations[key], entries...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, key)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
