// ABOUTME: Tests for the Anthropic Messages adapter against a local HTTP stub.
// ABOUTME: Validates request translation, refusal handling, and error mapping.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicAdapterName(t *testing.T) {
	adapter := NewAnthropicAdapter("sk-ant-test")
	if got := adapter.Name(); got != "anthropic" {
		t.Errorf("Name() = %q, want %q", got, "anthropic")
	}
}

func TestAnthropicGenerateParsesResponse(t *testing.T) {
	var receivedBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("reading body: %v", err)
			return
		}
		if err := json.Unmarshal(body, &receivedBody); err != nil {
			t.Errorf("unmarshalling body: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5",
			"content": [{"type": "text", "text": "Hello back!"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 7}
		}`))
	}))
	defer server.Close()

	adapter := NewAnthropicAdapter("sk-ant-test", WithAnthropicBaseURL(server.URL))
	resp, err := adapter.Generate(context.Background(), Request{
		Model:       "claude-sonnet-4-5",
		System:      "Be brief.",
		Prompt:      "Hello",
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if resp.Text != "Hello back!" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Model != "claude-sonnet-4-5" || resp.Provider != "anthropic" {
		t.Errorf("Model/Provider = %q/%q", resp.Model, resp.Provider)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 7 {
		t.Errorf("Usage = %+v", resp.Usage)
	}

	// max_tokens is required by the API and must be defaulted when unset.
	if maxTok, _ := receivedBody["max_tokens"].(float64); int(maxTok) != anthropicDefaultMaxTokens {
		t.Errorf("request max_tokens = %v, want %d", receivedBody["max_tokens"], anthropicDefaultMaxTokens)
	}
	if _, ok := receivedBody["system"]; !ok {
		t.Error("request missing system block")
	}
}

func TestAnthropicGenerateRefusal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_2",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5",
			"content": [],
			"stop_reason": "refusal",
			"usage": {"input_tokens": 12, "output_tokens": 0}
		}`))
	}))
	defer server.Close()

	adapter := NewAnthropicAdapter("sk-ant-test", WithAnthropicBaseURL(server.URL))
	_, err := adapter.Generate(context.Background(), Request{Model: "claude-sonnet-4-5", Prompt: "Hello"})

	var filterErr *ContentFilterError
	if !errors.As(err, &filterErr) {
		t.Fatalf("expected ContentFilterError, got %v", err)
	}
	if filterErr.IsRetryable() {
		t.Error("refusals must not be retryable")
	}
}

func TestAnthropicGenerateMapsAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "invalid_request_error", "message": "max_tokens too large"}}`))
	}))
	defer server.Close()

	adapter := NewAnthropicAdapter("sk-ant-test", WithAnthropicBaseURL(server.URL))
	_, err := adapter.Generate(context.Background(), Request{Model: "claude-sonnet-4-5", Prompt: "Hello"})

	var reqErr *InvalidRequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected InvalidRequestError, got %v", err)
	}
	if reqErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", reqErr.StatusCode)
	}
	if len(reqErr.Raw) == 0 {
		t.Error("mapped error should carry the raw response body")
	}
}
