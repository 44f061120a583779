// ABOUTME: Provider-routing client with functional options and a middleware chain.
// ABOUTME: Middleware executes in registration order for requests, reverse order for responses.
package llm

import (
	"context"
	"fmt"
	"os"
)

// Middleware wraps a generation call, enabling logging, cost annotation, and
// other cross-cutting concerns (onion/chain-of-responsibility pattern).
type Middleware func(ctx context.Context, req Request, next NextFunc) (*Response, error)

// NextFunc continues the middleware chain.
type NextFunc func(ctx context.Context, req Request) (*Response, error)

// Client is the entry point for generation calls. It routes requests to the
// correct provider adapter and applies the middleware chain.
type Client struct {
	providers       map[string]ProviderAdapter
	defaultProvider string
	middleware      []Middleware
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithProvider registers a ProviderAdapter under the given name. The first
// provider registered becomes the default if none has been set.
func WithProvider(name string, adapter ProviderAdapter) ClientOption {
	return func(c *Client) {
		c.providers[name] = adapter
		if c.defaultProvider == "" {
			c.defaultProvider = name
		}
	}
}

// WithDefaultProvider sets the provider used when a Request does not name one.
func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) { c.defaultProvider = name }
}

// WithMiddleware appends middleware to the chain. The first registered is
// the outermost layer.
func WithMiddleware(mw ...Middleware) ClientOption {
	return func(c *Client) { c.middleware = append(c.middleware, mw...) }
}

// NewClient creates a Client with the given options applied.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{providers: make(map[string]ProviderAdapter)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromEnv creates a Client by detecting API keys in the environment. It
// checks OPENAI_API_KEY and ANTHROPIC_API_KEY and registers a real adapter
// for each key found; the first detected becomes the default. Extra options
// are applied after the detected providers. Returns a ConfigurationError
// when no keys are present.
func FromEnv(extra ...ClientOption) (*Client, error) {
	var opts []ClientOption

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		opts = append(opts, WithProvider("openai", NewOpenAIAdapter(key)))
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		opts = append(opts, WithProvider("anthropic", NewAnthropicAdapter(key)))
	}

	if len(opts) == 0 {
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: "no API keys found in environment (checked OPENAI_API_KEY, ANTHROPIC_API_KEY)",
		}}
	}

	return NewClient(append(opts, extra...)...), nil
}

// resolveProvider picks the adapter for a request, falling back to the
// client default.
func (c *Client) resolveProvider(req Request) (ProviderAdapter, error) {
	name := req.Provider
	if name == "" {
		name = c.defaultProvider
	}
	if name == "" {
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: "no provider specified and no default provider configured",
		}}
	}
	adapter, ok := c.providers[name]
	if !ok {
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: fmt.Sprintf("provider %q not registered", name),
		}}
	}
	return adapter, nil
}

// Generate sends a request through the middleware chain and then to the
// resolved provider adapter.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	handler := func(ctx context.Context, req Request) (*Response, error) {
		adapter, err := c.resolveProvider(req)
		if err != nil {
			return nil, err
		}
		return adapter.Generate(ctx, req)
	}

	// Wrap in reverse order so the first registered middleware is outermost.
	chain := NextFunc(handler)
	for i := len(c.middleware) - 1; i >= 0; i-- {
		mw := c.middleware[i]
		next := chain
		chain = func(ctx context.Context, req Request) (*Response, error) {
			return mw(ctx, req, next)
		}
	}

	return chain(ctx, req)
}

// Close shuts down all registered provider adapters.
func (c *Client) Close() error {
	var firstErr error
	for name, adapter := range c.providers {
		if err := adapter.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing provider %q: %w", name, err)
		}
	}
	return firstErr
}
