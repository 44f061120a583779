// ABOUTME: OpenAI provider adapter implementing ProviderAdapter over the official Go SDK.
// ABOUTME: Translates unified Request/Response to the Chat Completions API and maps errors by status code.
package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIAdapter implements ProviderAdapter for the OpenAI Chat Completions API.
type OpenAIAdapter struct {
	client openai.Client
}

// OpenAIOption is a functional option for configuring an OpenAIAdapter.
type OpenAIOption func(*[]option.RequestOption)

// WithOpenAIBaseURL overrides the default OpenAI API base URL.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(opts *[]option.RequestOption) {
		*opts = append(*opts, option.WithBaseURL(url))
	}
}

// NewOpenAIAdapter creates an OpenAIAdapter with the given API key and options.
func NewOpenAIAdapter(apiKey string, opts ...OpenAIOption) *OpenAIAdapter {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, opt := range opts {
		opt(&reqOpts)
	}
	return &OpenAIAdapter{client: openai.NewClient(reqOpts...)}
}

// Name returns the provider name "openai".
func (a *OpenAIAdapter) Name() string { return "openai" }

// Close releases any resources held by the adapter.
func (a *OpenAIAdapter) Close() error { return nil }

// Generate sends a completion request to the Chat Completions API.
func (a *OpenAIAdapter) Generate(ctx context.Context, req Request) (*Response, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	completion, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, a.mapError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, &InvalidRequestError{ProviderError: ProviderError{
			SDKError: SDKError{Message: "openai response contained no choices"},
			Provider: "openai",
		}}
	}
	if completion.Choices[0].FinishReason == "content_filter" {
		return nil, &ContentFilterError{ProviderError: ProviderError{
			SDKError: SDKError{Message: "openai rejected the completion: content filter"},
			Provider: "openai",
		}}
	}

	return &Response{
		Text:     completion.Choices[0].Message.Content,
		Model:    completion.Model,
		Provider: "openai",
		Usage: Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
		},
	}, nil
}

// mapError converts SDK errors into the unified error hierarchy.
func (a *OpenAIAdapter) mapError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		var raw json.RawMessage
		if apierr.RawJSON() != "" {
			raw = json.RawMessage(apierr.RawJSON())
		}
		return ErrorFromStatusCode(apierr.StatusCode, apierr.Error(), "openai", raw)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &RequestTimeoutError{SDKError: SDKError{Message: "openai request timed out", Cause: err}}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &NetworkError{SDKError: SDKError{Message: "openai request failed", Cause: err}}
}
