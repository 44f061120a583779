// ABOUTME: Tests for the Client: provider routing, defaults, and middleware ordering.
// ABOUTME: Uses an in-package fake adapter; no network calls.
package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type fakeAdapter struct {
	name     string
	response *Response
	err      error
	calls    int
	closed   bool
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Generate(ctx context.Context, req Request) (*Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeAdapter) Close() error {
	f.closed = true
	return nil
}

func TestClientRoutesToNamedProvider(t *testing.T) {
	a := &fakeAdapter{name: "alpha", response: &Response{Text: "from alpha"}}
	b := &fakeAdapter{name: "beta", response: &Response{Text: "from beta"}}
	client := NewClient(WithProvider("alpha", a), WithProvider("beta", b))

	resp, err := client.Generate(context.Background(), Request{Provider: "beta", Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Text != "from beta" {
		t.Errorf("expected response from beta, got %q", resp.Text)
	}
	if a.calls != 0 || b.calls != 1 {
		t.Errorf("expected calls alpha=0 beta=1, got alpha=%d beta=%d", a.calls, b.calls)
	}
}

func TestClientDefaultsToFirstRegisteredProvider(t *testing.T) {
	a := &fakeAdapter{name: "alpha", response: &Response{Text: "ok"}}
	client := NewClient(WithProvider("alpha", a))

	resp, err := client.Generate(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Text != "ok" {
		t.Errorf("unexpected response text %q", resp.Text)
	}
}

func TestClientUnknownProviderIsConfigurationError(t *testing.T) {
	client := NewClient(WithProvider("alpha", &fakeAdapter{name: "alpha"}))

	_, err := client.Generate(context.Background(), Request{Provider: "nope"})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
	}
}

func TestClientNoProvidersIsConfigurationError(t *testing.T) {
	client := NewClient()

	_, err := client.Generate(context.Background(), Request{Prompt: "hi"})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
	}
}

func TestMiddlewareOrdering(t *testing.T) {
	var order []string
	mk := func(name string) Middleware {
		return func(ctx context.Context, req Request, next NextFunc) (*Response, error) {
			order = append(order, name+":before")
			resp, err := next(ctx, req)
			order = append(order, name+":after")
			return resp, err
		}
	}

	adapter := &fakeAdapter{name: "alpha", response: &Response{Text: "ok"}}
	client := NewClient(
		WithProvider("alpha", adapter),
		WithMiddleware(mk("outer"), mk("inner")),
	)

	if _, err := client.Generate(context.Background(), Request{Prompt: "hi"}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	want := []string{"outer:before", "inner:before", "inner:after", "outer:after"}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Errorf("middleware order = %v, want %v", order, want)
	}
}

func TestMiddlewareCanShortCircuit(t *testing.T) {
	adapter := &fakeAdapter{name: "alpha", response: &Response{Text: "real"}}
	blocked := errors.New("blocked")
	client := NewClient(
		WithProvider("alpha", adapter),
		WithMiddleware(func(ctx context.Context, req Request, next NextFunc) (*Response, error) {
			return nil, blocked
		}),
	)

	_, err := client.Generate(context.Background(), Request{Prompt: "hi"})
	if !errors.Is(err, blocked) {
		t.Fatalf("expected short-circuit error, got %v", err)
	}
	if adapter.calls != 0 {
		t.Errorf("adapter should not have been called, got %d calls", adapter.calls)
	}
}

func TestCostMiddlewareFillsUsage(t *testing.T) {
	adapter := &fakeAdapter{name: "anthropic", response: &Response{
		Text:  "ok",
		Model: "claude-sonnet-4-5",
		Usage: Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000},
	}}
	client := NewClient(
		WithProvider("anthropic", adapter),
		WithMiddleware(CostMiddleware(NewCatalog())),
	)

	resp, err := client.Generate(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	// sonnet: $3/M input + $15/M output
	if resp.Usage.CostUSD != 18.0 {
		t.Errorf("CostUSD = %v, want 18.0", resp.Usage.CostUSD)
	}
}

func TestClientCloseClosesAllProviders(t *testing.T) {
	a := &fakeAdapter{name: "alpha"}
	b := &fakeAdapter{name: "beta"}
	client := NewClient(WithProvider("alpha", a), WithProvider("beta", b))

	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !a.closed || !b.closed {
		t.Errorf("expected both adapters closed, got alpha=%v beta=%v", a.closed, b.closed)
	}
}
