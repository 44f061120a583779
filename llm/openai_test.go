// ABOUTME: Tests for the OpenAI Chat Completions adapter against a local HTTP stub.
// ABOUTME: Validates request translation, response parsing, finish-reason handling, and error mapping.
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

func TestOpenAIAdapterName(t *testing.T) {
	adapter := NewOpenAIAdapter("sk-test")
	if got := adapter.Name(); got != "openai" {
		t.Errorf("Name() = %q, want %q", got, "openai")
	}
}

func TestOpenAIGenerateParsesResponse(t *testing.T) {
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
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-5.2",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "Hello back!"},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter("sk-test", WithOpenAIBaseURL(server.URL))
	resp, err := adapter.Generate(context.Background(), Request{
		Model:       "gpt-5.2",
		System:      "Be brief.",
		Prompt:      "Hello",
		MaxTokens:   100,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if resp.Text != "Hello back!" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Model != "gpt-5.2" || resp.Provider != "openai" {
		t.Errorf("Model/Provider = %q/%q", resp.Model, resp.Provider)
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 5 {
		t.Errorf("Usage = %+v", resp.Usage)
	}

	if model, _ := receivedBody["model"].(string); model != "gpt-5.2" {
		t.Errorf("request model = %v", receivedBody["model"])
	}
	if temp, _ := receivedBody["temperature"].(float64); temp != 0.7 {
		t.Errorf("request temperature = %v", receivedBody["temperature"])
	}
	msgs, ok := receivedBody["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("messages = %v, want system + user", receivedBody["messages"])
	}
	first := msgs[0].(map[string]any)
	if first["role"] != "system" {
		t.Errorf("messages[0].role = %v, want system", first["role"])
	}
}

func TestOpenAIGenerateContentFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-2",
			"object": "chat.completion",
			"model": "gpt-5.2",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": ""},
				"finish_reason": "content_filter"
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 0, "total_tokens": 10}
		}`))
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter("sk-test", WithOpenAIBaseURL(server.URL))
	_, err := adapter.Generate(context.Background(), Request{Model: "gpt-5.2", Prompt: "Hello"})

	var filterErr *ContentFilterError
	if !errors.As(err, &filterErr) {
		t.Fatalf("expected ContentFilterError, got %v", err)
	}
	if filterErr.IsRetryable() {
		t.Error("content filter rejections must not be retryable")
	}
}

func TestOpenAIGenerateMapsAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter("sk-bad", WithOpenAIBaseURL(server.URL))
	_, err := adapter.Generate(context.Background(), Request{Model: "gpt-5.2", Prompt: "Hello"})

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", authErr.StatusCode)
	}
	if len(authErr.Raw) == 0 {
		t.Error("mapped error should carry the raw response body")
	}
}

func TestOpenAIGenerateEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "chatcmpl-3", "object": "chat.completion", "model": "gpt-5.2", "choices": []}`))
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter("sk-test", WithOpenAIBaseURL(server.URL))
	_, err := adapter.Generate(context.Background(), Request{Model: "gpt-5.2", Prompt: "Hello"})

	var reqErr *InvalidRequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected InvalidRequestError, got %v", err)
	}
}
