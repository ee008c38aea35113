package approval

import (
	"context"
	"testing"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

func newTestGate() (*Gate, *MemoryStore) {
	store := NewMemoryStore()
	gate := NewGate(store)
	gate.pollInterval = time.Millisecond
	return gate, store
}

func TestResolveBeforeAwait(t *testing.T) {
	gate, _ := newTestGate()
	gate.Register("call-1")

	if status := gate.Resolve("call-1", true); status != ResolveApplied {
		t.Fatalf("expected applied, got %s", status)
	}

	outcome := gate.AwaitDecision(context.Background(), "call-1", time.Second)
	if outcome != OutcomeApproved {
		t.Fatalf("expected approved, got %s", outcome)
	}
}

func TestResolveDuringAwait(t *testing.T) {
	gate, _ := newTestGate()
	gate.Register("call-1")

	done := make(chan Outcome, 1)
	go func() {
		done <- gate.AwaitDecision(context.Background(), "call-1", 5*time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	if status := gate.Resolve("call-1", false); status != ResolveApplied {
		t.Fatalf("expected applied, got %s", status)
	}

	select {
	case outcome := <-done:
		if outcome != OutcomeRejected {
			t.Fatalf("expected rejected, got %s", outcome)
		}
	case <-time.After(time.Second):
		t.Fatal("await did not return after resolution")
	}
}

func TestAwaitTimeout(t *testing.T) {
	gate, store := newTestGate()
	gate.Register("call-1")

	outcome := gate.AwaitDecision(context.Background(), "call-1", 20*time.Millisecond)
	if outcome != OutcomeTimeout {
		t.Fatalf("expected timeout, got %s", outcome)
	}

	if _, ok := store.Get("call-1"); ok {
		t.Fatal("record should be removed after timeout")
	}
}

// A decision that arrives after the deadline expired must not execute the
// tool: the waiter has already cleaned up, so the late resolve reports
// not_found.
func TestLateResolutionReportsNotFound(t *testing.T) {
	gate, _ := newTestGate()
	gate.Register("call-1")

	outcome := gate.AwaitDecision(context.Background(), "call-1", 10*time.Millisecond)
	if outcome != OutcomeTimeout {
		t.Fatalf("expected timeout, got %s", outcome)
	}

	if status := gate.Resolve("call-1", true); status != ResolveNotFound {
		t.Fatalf("expected not_found for late resolution, got %s", status)
	}
}

func TestSecondResolutionReportsAlreadyResolved(t *testing.T) {
	gate, _ := newTestGate()
	gate.Register("call-1")

	if status := gate.Resolve("call-1", true); status != ResolveApplied {
		t.Fatalf("expected applied, got %s", status)
	}
	if status := gate.Resolve("call-1", false); status != ResolveAlreadyResolved {
		t.Fatalf("expected already_resolved, got %s", status)
	}

	// The first decision stands.
	outcome := gate.AwaitDecision(context.Background(), "call-1", time.Second)
	if outcome != OutcomeApproved {
		t.Fatalf("expected approved, got %s", outcome)
	}
}

func TestResolveUnknownID(t *testing.T) {
	gate, _ := newTestGate()
	if status := gate.Resolve("nope", true); status != ResolveNotFound {
		t.Fatalf("expected not_found, got %s", status)
	}
}

func TestReRegisterDiscardsPriorState(t *testing.T) {
	gate, _ := newTestGate()
	gate.Register("call-1")
	gate.Resolve("call-1", true)

	gate.Register("call-1")
	record, ok := gate.store.Get("call-1")
	if !ok {
		t.Fatal("record missing after re-register")
	}
	if record.Resolved {
		t.Fatal("re-register should discard the earlier decision")
	}
}

func TestAwaitCancelledContext(t *testing.T) {
	gate, store := newTestGate()
	gate.Register("call-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := gate.AwaitDecision(ctx, "call-1", time.Minute)
	if outcome != OutcomeError {
		t.Fatalf("expected error outcome, got %s", outcome)
	}
	if _, ok := store.Get("call-1"); ok {
		t.Fatal("record should be removed after cancellation")
	}
}

func boolPtr(b bool) *bool { return &b }

func TestNeedsApproval(t *testing.T) {
	readOnly := &mcptypes.ToolAnnotation{ReadOnlyHint: boolPtr(true)}
	mutating := &mcptypes.ToolAnnotation{ReadOnlyHint: boolPtr(false)}
	unhinted := &mcptypes.ToolAnnotation{}

	tests := []struct {
		name        string
		streaming   bool
		mode        Mode
		annotations *mcptypes.ToolAnnotation
		want        bool
	}{
		{"non-streaming never gates", false, ModeAlways, mutating, false},
		{"mode never", true, ModeNever, mutating, false},
		{"mode always", true, ModeAlways, readOnly, true},
		{"annotation read-only exempt", true, ModeByAnnotation, readOnly, false},
		{"annotation mutating gates", true, ModeByAnnotation, mutating, true},
		{"annotation hint absent gates", true, ModeByAnnotation, unhinted, true},
		{"annotations missing gates", true, ModeByAnnotation, nil, true},
		{"unknown mode gates", true, Mode("sometimes"), readOnly, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsApproval(tt.streaming, tt.mode, tt.annotations); got != tt.want {
				t.Fatalf("NeedsApproval(%v, %q) = %v, want %v", tt.streaming, tt.mode, got, tt.want)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"never", "always", "by-tool-annotation"} {
		if _, ok := ParseMode(valid); !ok {
			t.Fatalf("ParseMode(%q) rejected a valid mode", valid)
		}
	}
	if _, ok := ParseMode("ask-nicely"); ok {
		t.Fatal("ParseMode accepted an unknown mode")
	}
}
