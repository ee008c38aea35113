package llm

import (
	"context"
	"errors"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	openai "github.com/openai/openai-go"
)

// ClassifiedError is a provider failure reduced to the fields the stream
// protocol reports to callers.
type ClassifiedError struct {
	StatusCode int    `json:"status_code"`
	Response   string `json:"response"`
	Cause      string `json:"cause"`
}

// ClassifyError maps an upstream failure onto a status code, a short
// response line, and the underlying cause. SDK errors carry their HTTP
// status; everything else is reported as a generic 500-style failure.
func ClassifyError(err error) ClassifiedError {
	if err == nil {
		return ClassifiedError{}
	}

	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return ClassifiedError{
			StatusCode: openaiErr.StatusCode,
			Response:   "Model invocation failed",
			Cause:      err.Error(),
		}
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return ClassifiedError{
			StatusCode: anthropicErr.StatusCode,
			Response:   "Model invocation failed",
			Cause:      err.Error(),
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassifiedError{
			StatusCode: 504,
			Response:   "Model invocation timed out",
			Cause:      err.Error(),
		}
	}

	status := 500
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"):
		status = 429
	case strings.Contains(msg, "502"):
		status = 502
	case strings.Contains(msg, "503"):
		status = 503
	}

	return ClassifiedError{
		StatusCode: status,
		Response:   "Model invocation failed",
		Cause:      err.Error(),
	}
}
