// Package approval suspends risky tool calls until a human decision
// arrives or a timeout elapses. The rendezvous is an injectable store plus
// a polling waiter; polling keeps the waiter logic unchanged if the store
// later moves to a persistent, cross-process backend.
package approval

import (
	"context"
	"sync"
	"time"

	"github.com/codefionn/modelgate/internal/logger"
)

// Outcome is the result of waiting for one approval.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeError    Outcome = "error"
)

// ResolveStatus reports what a resolution attempt did.
type ResolveStatus string

const (
	ResolveApplied         ResolveStatus = "applied"
	ResolveNotFound        ResolveStatus = "not_found"
	ResolveAlreadyResolved ResolveStatus = "already_resolved"
)

// PendingApproval is one outstanding approval record. It exists only for
// the lifetime of the wait and is removed on every exit path.
type PendingApproval struct {
	ID       string
	Resolved bool
	Approved bool
}

// Store holds pending approvals. Modeled as an explicit object rather than
// a process-wide map so concurrent tests run in isolation.
type Store interface {
	// Register upserts a pending record, discarding any prior
	// unresolved state for the same id.
	Register(id string)
	// Get returns the current record, reporting whether it exists.
	Get(id string) (PendingApproval, bool)
	// Resolve applies a decision. The first resolution wins.
	Resolve(id string, approved bool) ResolveStatus
	// Delete removes the record. Deleting a missing id is a no-op.
	Delete(id string)
}

// MemoryStore is the in-process Store implementation.
type MemoryStore struct {
	mu      sync.Mutex
	pending map[string]*PendingApproval
}

// NewMemoryStore creates an empty approval store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pending: make(map[string]*PendingApproval)}
}

func (s *MemoryStore) Register(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[id] = &PendingApproval{ID: id}
}

func (s *MemoryStore) Get(id string) (PendingApproval, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.pending[id]
	if !ok {
		return PendingApproval{}, false
	}
	return *record, true
}

func (s *MemoryStore) Resolve(id string, approved bool) ResolveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.pending[id]
	if !ok {
		return ResolveNotFound
	}
	if record.Resolved {
		return ResolveAlreadyResolved
	}

	record.Resolved = true
	record.Approved = approved
	return ResolveApplied
}

func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// Gate is the approval rendezvous used by the orchestrator.
type Gate struct {
	store        Store
	pollInterval time.Duration
	log          *logger.Logger
}

const defaultPollInterval = 500 * time.Millisecond

// NewGate creates a gate over the given store.
func NewGate(store Store) *Gate {
	return &Gate{
		store:        store,
		pollInterval: defaultPollInterval,
		log:          logger.Global().WithPrefix("approval"),
	}
}

// Register announces a pending approval. Registering an id twice discards
// the earlier unresolved state; the latest request wins.
func (g *Gate) Register(id string) {
	g.store.Register(id)
}

// Resolve applies a human decision to a pending approval.
func (g *Gate) Resolve(id string, approved bool) ResolveStatus {
	status := g.store.Resolve(id, approved)
	g.log.Debug("resolve %s: approved=%v status=%s", id, approved, status)
	return status
}

// Abandon removes a pending approval that will never be awaited, such as
// when the client disconnects between registration and the wait.
func (g *Gate) Abandon(id string) {
	g.store.Delete(id)
}

// AwaitDecision blocks until the approval is resolved, the timeout passes,
// or the context is cancelled. The record is removed on every exit path.
func (g *Gate) AwaitDecision(ctx context.Context, id string, timeout time.Duration) Outcome {
	defer g.store.Delete(id)

	deadline := time.Now().Add(timeout)

	for {
		record, ok := g.store.Get(id)
		if !ok {
			// The record vanished underneath the wait; treat as an
			// error rather than guessing a decision.
			return OutcomeError
		}
		if record.Resolved {
			if record.Approved {
				return OutcomeApproved
			}
			return OutcomeRejected
		}

		if !time.Now().Before(deadline) {
			g.log.Warn("approval %s timed out after %s", id, timeout)
			return OutcomeTimeout
		}

		select {
		case <-ctx.Done():
			return OutcomeError
		case <-time.After(g.pollInterval):
		}
	}
}
