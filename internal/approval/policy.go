package approval

import (
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Mode selects when tool calls are gated behind human approval.
type Mode string

const (
	// ModeNever executes every tool call without asking.
	ModeNever Mode = "never"
	// ModeAlways gates every tool call.
	ModeAlways Mode = "always"
	// ModeByAnnotation gates tool calls unless the tool declares itself
	// read-only via its MCP annotations.
	ModeByAnnotation Mode = "by-tool-annotation"
)

// ParseMode validates a mode string from configuration.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeNever, ModeAlways, ModeByAnnotation:
		return Mode(s), true
	}
	return "", false
}

// NeedsApproval decides whether a tool call must wait for a human.
//
// Non-streaming requests never gate: there is no channel to surface the
// request on, so gating would deadlock the caller. In by-annotation mode
// only an explicit readOnlyHint of true exempts a tool; an absent or
// unparseable annotation gates the call.
func NeedsApproval(streaming bool, mode Mode, annotations *mcptypes.ToolAnnotation) bool {
	if !streaming {
		return false
	}

	switch mode {
	case ModeNever:
		return false
	case ModeAlways:
		return true
	case ModeByAnnotation:
		if annotations == nil || annotations.ReadOnlyHint == nil {
			return true
		}
		return !*annotations.ReadOnlyHint
	default:
		// Unknown mode from config: gate rather than execute.
		return true
	}
}
