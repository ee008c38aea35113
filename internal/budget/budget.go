// Package budget computes how many prompt tokens a request may spend and
// counts tokens with a deliberate over-estimate, so that an imprecise
// tokenizer never causes a silent context-window overflow.
package budget

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// safetyMargin inflates approximate token counts. The encoding used here
// may differ from the tokenizer of the target model, so over-estimating is
// the safe direction.
const safetyMargin = 1.2

// PromptTooLongError reports a prompt that leaves no room for a response
// within the model's context window. User-correctable, reported distinctly
// from generic failures.
type PromptTooLongError struct {
	Limit  int
	Actual int
}

func (e *PromptTooLongError) Error() string {
	return fmt.Sprintf("prompt is too long: %d tokens exceeds the limit of %d", e.Actual, e.Limit)
}

// CalculateAvailable returns how many tokens remain for history and context
// after the rendered prompt and the reserved response budget are accounted
// for. Fails with PromptTooLongError when nothing remains.
func CalculateAvailable(promptTokens, contextWindow, reservedResponse int) (int, error) {
	available := contextWindow - reservedResponse - promptTokens
	if available <= 0 {
		return 0, &PromptTooLongError{
			Limit:  contextWindow - reservedResponse,
			Actual: promptTokens,
		}
	}
	return available, nil
}

// Counter counts tokens for arbitrary text using a fixed encoding plus the
// safety margin.
type Counter struct {
	encoder *tiktoken.Tiktoken
}

// NewCounter returns a Counter backed by the cl100k_base encoding. When the
// encoding is unavailable (offline, unknown), the counter falls back to a
// character heuristic; the margin still applies.
func NewCounter() *Counter {
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		encoder = nil
	}
	return &Counter{encoder: encoder}
}

// Count returns the margin-inflated token count for text, rounded up.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}

	var raw int
	if c.encoder != nil {
		raw = len(c.encoder.Encode(text, nil, nil))
	} else {
		// Rough heuristic: 1 token per 4 characters.
		raw = (utf8.RuneCountInString(text) + 3) / 4
	}

	if raw == 0 {
		return 0
	}
	return int(math.Ceil(float64(raw) * safetyMargin))
}

// TokenCounter accumulates input/output token usage across the model
// invocations of one request. Never shared across requests.
type TokenCounter struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add records the usage of one model invocation.
func (t *TokenCounter) Add(input, output int) {
	t.InputTokens += input
	t.OutputTokens += output
}
