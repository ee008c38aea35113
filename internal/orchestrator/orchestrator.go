// Package orchestrator runs the multi-round tool-calling loop for one
// request: invoke the model, forward text as it streams, merge tool-call
// fragments, gate risky calls behind human approval, execute tools, and
// feed results back until the model completes or the round limit is hit.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"github.com/codefionn/modelgate/internal/approval"
	"github.com/codefionn/modelgate/internal/budget"
	"github.com/codefionn/modelgate/internal/llm"
	"github.com/codefionn/modelgate/internal/logger"
	"github.com/codefionn/modelgate/internal/protocol"
)

// ToolExecutor is the tool execution collaborator.
type ToolExecutor interface {
	Tools() []llm.ToolDefinition
	Annotations(toolName string) *mcptypes.ToolAnnotation
	Execute(ctx context.Context, call llm.ToolCall) llm.ToolResult
}

// Emitter receives chunks in production order. An emitter error aborts the
// request; it usually means the client went away.
type Emitter func(chunk protocol.Chunk) error

// Options bound one orchestration run.
type Options struct {
	MaxRounds         int
	PerRoundTimeout   time.Duration
	ToolsEnabled      bool
	Streaming         bool
	ApprovalMode      approval.Mode
	ApprovalTimeout   time.Duration
	MaxResponseTokens int
}

const (
	DefaultMaxRounds       = 5
	DefaultPerRoundTimeout = 2 * time.Minute
	DefaultApprovalTimeout = 60 * time.Second
)

// Result is what one run produced, for the caller to persist.
type Result struct {
	Response  string
	ToolCalls int
	Counter   budget.TokenCounter
}

// Orchestrator drives the round loop. One instance is shared across
// requests; all per-request state lives in Run.
type Orchestrator struct {
	client llm.Client
	tools  ToolExecutor
	gate   *approval.Gate
	log    *logger.Logger
}

// New wires an orchestrator to its collaborators.
func New(client llm.Client, tools ToolExecutor, gate *approval.Gate) *Orchestrator {
	return &Orchestrator{
		client: client,
		tools:  tools,
		gate:   gate,
		log:    logger.Global().WithPrefix("orchestrator"),
	}
}

// WithClient returns a copy of the orchestrator bound to a different
// model client, keeping the tool and approval collaborators. Used for
// per-request provider overrides.
func (o *Orchestrator) WithClient(client llm.Client) *Orchestrator {
	return &Orchestrator{
		client: client,
		tools:  o.tools,
		gate:   o.gate,
		log:    o.log,
	}
}

// Run executes the round loop over the prepared message list. Text is
// emitted as it arrives; the returned Result carries the accumulated
// response and token usage. A non-nil error means the caller must
// terminate the stream with a single error event.
//
// The whole run is bounded by PerRoundTimeout times MaxRounds; expiry
// aborts whatever is in flight, including tool calls and approval waits.
func (o *Orchestrator) Run(ctx context.Context, messages []*llm.Message, emit Emitter, opts Options) (*Result, error) {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	if opts.PerRoundTimeout <= 0 {
		opts.PerRoundTimeout = DefaultPerRoundTimeout
	}
	if opts.ApprovalTimeout <= 0 {
		opts.ApprovalTimeout = DefaultApprovalTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, opts.PerRoundTimeout*time.Duration(opts.MaxRounds))
	defer cancel()

	result := &Result{}
	var response strings.Builder

	for round := 1; round <= opts.MaxRounds; round++ {
		final := !opts.ToolsEnabled || round == opts.MaxRounds

		req := &llm.CompletionRequest{
			Messages:  messages,
			MaxTokens: opts.MaxResponseTokens,
		}
		if !final {
			req.Tools = o.tools.Tools()
		}

		var roundText strings.Builder
		var fragments []llm.ToolCallFragment
		terminal := false

		err := o.client.Stream(ctx, req, func(f llm.Fragment) error {
			if f.Usage != nil {
				result.Counter.Add(f.Usage.InputTokens, f.Usage.OutputTokens)
			}
			if f.Text != "" {
				roundText.WriteString(f.Text)
				response.WriteString(f.Text)
				if err := emit(protocol.TokenChunk(f.Text)); err != nil {
					return err
				}
			}
			fragments = append(fragments, f.ToolCalls...)
			if f.FinishReason != "" && llm.IsTerminalStop(f.FinishReason) {
				terminal = true
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("model invocation failed in round %d: %w", round, err)
		}

		if terminal || final {
			break
		}

		calls := llm.MergeToolCallFragments(fragments)
		if len(calls) == 0 {
			// The model stopped without asking for tools.
			break
		}
		o.log.Debug("round %d produced %d tool calls", round, len(calls))

		messages = append(messages, &llm.Message{
			Role:      "assistant",
			Content:   roundText.String(),
			ToolCalls: calls,
		})

		for _, call := range calls {
			toolResult, err := o.runToolCall(ctx, call, emit, opts)
			if err != nil {
				return nil, err
			}
			result.ToolCalls++
			messages = append(messages, &llm.Message{
				Role:       "tool",
				Content:    toolResult.Content,
				ToolCallID: toolResult.ToolCallID,
				ToolName:   call.Name,
			})
			if err := emit(protocol.ToolResultChunk(toolResult)); err != nil {
				return nil, err
			}
		}
	}

	result.Response = response.String()
	return result, nil
}

// runToolCall applies the approval policy and executes one call. Refusals
// and tool failures come back as error-status results so the model can
// react on the next round; only emitter and context failures abort the run.
func (o *Orchestrator) runToolCall(ctx context.Context, call llm.ToolCall, emit Emitter, opts Options) (llm.ToolResult, error) {
	if err := emit(protocol.ToolCallChunk(call)); err != nil {
		return llm.ToolResult{}, err
	}

	needed := approval.NeedsApproval(opts.Streaming, opts.ApprovalMode, o.tools.Annotations(call.Name))
	if !needed {
		return o.tools.Execute(ctx, call), nil
	}

	o.gate.Register(call.ID)
	if err := emit(protocol.ApprovalRequiredChunk(call.ID, call)); err != nil {
		// The client is gone; make sure the record does not linger.
		o.gate.Abandon(call.ID)
		return llm.ToolResult{}, err
	}

	outcome := o.gate.AwaitDecision(ctx, call.ID, opts.ApprovalTimeout)
	switch outcome {
	case approval.OutcomeApproved:
		return o.tools.Execute(ctx, call), nil
	case approval.OutcomeRejected:
		return refusalResult(call, "the user rejected this tool call"), nil
	case approval.OutcomeTimeout:
		return refusalResult(call, fmt.Sprintf("no approval decision arrived within %s", opts.ApprovalTimeout)), nil
	default:
		if err := ctx.Err(); err != nil {
			return llm.ToolResult{}, err
		}
		return refusalResult(call, "the approval wait failed"), nil
	}
}

func refusalResult(call llm.ToolCall, reason string) llm.ToolResult {
	return llm.ToolResult{
		ToolCallID: call.ID,
		Status:     llm.ToolStatusError,
		Content:    fmt.Sprintf("tool %s was not executed: %s", call.Name, reason),
	}
}
