// ABOUTME: ProviderAdapter interface implemented by each LLM provider integration.
// ABOUTME: Adapters translate the unified Request/Response to provider SDK calls.
package llm

import "context"

// ProviderAdapter is implemented by each provider integration (OpenAI,
// Anthropic). Adapters are safe for concurrent use.
type ProviderAdapter interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
	Close() error
}
