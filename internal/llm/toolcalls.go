package llm

import (
	"fmt"
	"sort"
)

// MergeToolCallFragments assembles complete ToolCalls from the buffered
// fragments of one round. Fragments sharing an index describe the same call;
// the first non-empty ID and Name win and argument strings concatenate in
// arrival order. Calls come back sorted by stream index.
func MergeToolCallFragments(fragments []ToolCallFragment) []ToolCall {
	if len(fragments) == 0 {
		return nil
	}

	type partial struct {
		call  ToolCall
		order int
	}

	byIndex := make(map[int]*partial)
	orderCounter := 0

	for _, frag := range fragments {
		p, ok := byIndex[frag.Index]
		if !ok {
			p = &partial{order: orderCounter}
			orderCounter++
			byIndex[frag.Index] = p
		}

		if p.call.ID == "" && frag.ID != "" {
			p.call.ID = frag.ID
		}
		if p.call.Name == "" && frag.Name != "" {
			p.call.Name = frag.Name
		}
		p.call.Arguments += frag.Arguments
	}

	partials := make([]*partial, 0, len(byIndex))
	for _, p := range byIndex {
		partials = append(partials, p)
	}
	sort.Slice(partials, func(i, j int) bool {
		return partials[i].order < partials[j].order
	})

	calls := make([]ToolCall, 0, len(partials))
	for i, p := range partials {
		if p.call.ID == "" {
			// Some providers omit call IDs, which breaks downstream
			// requests that require tool_call_id on tool messages.
			if p.call.Name != "" {
				p.call.ID = fmt.Sprintf("call_%s_%d", p.call.Name, i+1)
			} else {
				p.call.ID = fmt.Sprintf("call_%d", i+1)
			}
		}
		calls = append(calls, p.call)
	}

	return calls
}
