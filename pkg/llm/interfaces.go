// Package llm provides the text-generation client used by graph agents.
// Responses are treated as unreliable: callers go through the tolerant
// JSON extraction in this package rather than parsing raw output.
package llm

import "context"

// Client defines the interface for LLM operations. Use this interface
// for dependency injection to enable mocking in tests.
type Client interface {
	// GenerateResponse generates a chat completion response.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// Ensure implementations satisfy Client at compile time.
var (
	_ Client = (*OpenAIClient)(nil)
	_ Client = (*AnthropicClient)(nil)
	_ Client = (*MockClient)(nil)
)
