// ABOUTME: Core request/response types for the unified text-generation client.
// ABOUTME: One Request in, one Response out; providers translate to their own wire formats.
package llm

// Request is a provider-neutral text-generation request.
type Request struct {
	// Provider routes the request; empty uses the client default.
	Provider string `json:"provider,omitempty"`
	// Model is the provider's model identifier or a catalog alias.
	Model string `json:"model"`
	// System is the system prompt, if any.
	System string `json:"system,omitempty"`
	// Prompt is the user prompt.
	Prompt string `json:"prompt"`
	// MaxTokens caps the completion length. Zero uses the provider default.
	MaxTokens int `json:"max_tokens,omitempty"`
	// Temperature controls sampling. Negative means provider default.
	Temperature float64 `json:"temperature,omitempty"`
}

// Usage is the token accounting for one completed call. CostUSD is filled
// by the cost middleware from the model catalog when pricing is known.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Response is the provider-neutral result of a generation call.
type Response struct {
	Text     string `json:"text"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Usage    Usage  `json:"usage"`
}
