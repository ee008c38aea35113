package llm

import (
	"fmt"
	"strings"
)

// NewClient creates a client for the named provider.
func NewClient(provider, apiKey, model string) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		return NewOpenAIClient(apiKey, model)
	case "anthropic":
		return NewAnthropicClient(apiKey, model)
	default:
		return nil, fmt.Errorf("unknown provider: %q", provider)
	}
}
