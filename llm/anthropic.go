// ABOUTME: Anthropic provider adapter implementing ProviderAdapter over the official Go SDK.
// ABOUTME: Translates unified Request/Response to the Messages API and maps errors by status code.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicAdapter implements ProviderAdapter for the Anthropic Messages API.
type AnthropicAdapter struct {
	client anthropic.Client
}

// AnthropicOption is a functional option for configuring an AnthropicAdapter.
type AnthropicOption func(*[]option.RequestOption)

// WithAnthropicBaseURL overrides the default Anthropic API base URL.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(opts *[]option.RequestOption) {
		*opts = append(*opts, option.WithBaseURL(url))
	}
}

// NewAnthropicAdapter creates an AnthropicAdapter with the given API key and options.
func NewAnthropicAdapter(apiKey string, opts ...AnthropicOption) *AnthropicAdapter {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, opt := range opts {
		opt(&reqOpts)
	}
	return &AnthropicAdapter{client: anthropic.NewClient(reqOpts...)}
}

// Name returns the provider name "anthropic".
func (a *AnthropicAdapter) Name() string { return "anthropic" }

// Close releases any resources held by the adapter.
func (a *AnthropicAdapter) Close() error { return nil }

// Generate sends a completion request to the Messages API.
func (a *AnthropicAdapter) Generate(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		// max_tokens is required for Anthropic
		maxTokens = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, a.mapError(err)
	}
	if msg.StopReason == "refusal" {
		return nil, &ContentFilterError{ProviderError: ProviderError{
			SDKError: SDKError{Message: "anthropic refused the completion"},
			Provider: "anthropic",
		}}
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Response{
		Text:     text.String(),
		Model:    string(msg.Model),
		Provider: "anthropic",
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}, nil
}

// mapError converts SDK errors into the unified error hierarchy.
func (a *AnthropicAdapter) mapError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		var raw json.RawMessage
		if apierr.RawJSON() != "" {
			raw = json.RawMessage(apierr.RawJSON())
		}
		return ErrorFromStatusCode(apierr.StatusCode, apierr.Error(), "anthropic", raw)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &RequestTimeoutError{SDKError: SDKError{Message: "anthropic request timed out", Cause: err}}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &NetworkError{SDKError: SDKError{Message: "anthropic request failed", Cause: err}}
}
