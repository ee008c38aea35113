package llm

import (
	"testing"
)

func TestMergeToolCallFragmentsConcatenatesArguments(t *testing.T) {
	fragments := []ToolCallFragment{
		{Index: 0, ID: "call_1", Name: "search"},
		{Index: 0, Arguments: `{"query":`},
		{Index: 0, Arguments: `"golang"}`},
	}

	calls := MergeToolCallFragments(fragments)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}

	call := calls[0]
	if call.ID != "call_1" {
		t.Errorf("expected id call_1, got %q", call.ID)
	}
	if call.Name != "search" {
		t.Errorf("expected name search, got %q", call.Name)
	}
	if call.Arguments != `{"query":"golang"}` {
		t.Errorf("arguments not concatenated in order: %q", call.Arguments)
	}
}

func TestMergeToolCallFragmentsInterleaved(t *testing.T) {
	fragments := []ToolCallFragment{
		{Index: 0, ID: "a", Name: "first", Arguments: "{"},
		{Index: 1, ID: "b", Name: "second", Arguments: "{}"},
		{Index: 0, Arguments: "}"},
	}

	calls := MergeToolCallFragments(fragments)
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}

	if calls[0].ID != "a" || calls[0].Arguments != "{}" {
		t.Errorf("first call merged wrong: %+v", calls[0])
	}
	if calls[1].ID != "b" || calls[1].Arguments != "{}" {
		t.Errorf("second call merged wrong: %+v", calls[1])
	}
}

func TestMergeToolCallFragmentsGeneratesMissingIDs(t *testing.T) {
	fragments := []ToolCallFragment{
		{Index: 0, Name: "lookup", Arguments: "{}"},
		{Index: 3, Arguments: "{}"},
	}

	calls := MergeToolCallFragments(fragments)
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}

	if calls[0].ID != "call_lookup_1" {
		t.Errorf("expected generated id for named call, got %q", calls[0].ID)
	}
	if calls[1].ID != "call_2" {
		t.Errorf("expected generated id for anonymous call, got %q", calls[1].ID)
	}
}

func TestMergeToolCallFragmentsEmpty(t *testing.T) {
	if calls := MergeToolCallFragments(nil); calls != nil {
		t.Errorf("expected nil for empty input, got %v", calls)
	}
}

func TestIsTerminalStop(t *testing.T) {
	terminal := []string{"stop", "end_turn", "length", "max_tokens", "stop_sequence"}
	for _, reason := range terminal {
		if !IsTerminalStop(reason) {
			t.Errorf("expected %q to be terminal", reason)
		}
	}

	for _, reason := range []string{"tool_calls", "tool_use", ""} {
		if IsTerminalStop(reason) {
			t.Errorf("expected %q not to be terminal", reason)
		}
	}
}
