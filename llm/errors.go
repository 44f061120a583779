// ABOUTME: Error hierarchy for the LLM client with retryability tagging.
// ABOUTME: Transient errors (rate limit, server, network, timeout) report IsRetryable() true.
package llm

import "encoding/json"

// SDKError is the base error type for all errors in the LLM client.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *SDKError) Unwrap() error { return e.Cause }

// IsRetryable returns false for the base SDKError. Subtypes override this.
func (e *SDKError) IsRetryable() bool { return false }

// ProviderError represents an error returned by a provider's API, carrying
// the status code and raw response body for diagnostics.
type ProviderError struct {
	SDKError
	Provider   string
	StatusCode int
	Retryable  bool
	Raw        json.RawMessage
}

func (e *ProviderError) Error() string { return e.SDKError.Error() }
func (e *ProviderError) Unwrap() error { return e.SDKError.Unwrap() }

// IsRetryable returns the Retryable flag set on the provider error.
func (e *ProviderError) IsRetryable() bool { return e.Retryable }

// RateLimitError represents a 429 response. Retryable.
type RateLimitError struct{ ProviderError }

func (e *RateLimitError) IsRetryable() bool { return true }

// ServerError represents a 5xx response. Retryable.
type ServerError struct{ ProviderError }

func (e *ServerError) IsRetryable() bool { return true }

// AuthenticationError represents a 401/403 response. Not retryable.
type AuthenticationError struct{ ProviderError }

func (e *AuthenticationError) IsRetryable() bool { return false }

// InvalidRequestError represents a 400/404/422 response. Not retryable.
type InvalidRequestError struct{ ProviderError }

func (e *InvalidRequestError) IsRetryable() bool { return false }

// ContentFilterError represents a content moderation rejection. Not retryable.
type ContentFilterError struct{ ProviderError }

func (e *ContentFilterError) IsRetryable() bool { return false }

// RequestTimeoutError represents a request timeout (408 or client-side). Retryable.
type RequestTimeoutError struct{ SDKError }

func (e *RequestTimeoutError) IsRetryable() bool { return true }

// NetworkError represents a network-level failure (DNS, connection refused). Retryable.
type NetworkError struct{ SDKError }

func (e *NetworkError) IsRetryable() bool { return true }

// ConfigurationError represents a client configuration problem (missing API
// key, unknown provider). Not retryable.
type ConfigurationError struct{ SDKError }

func (e *ConfigurationError) IsRetryable() bool { return false }

// ErrorFromStatusCode maps an HTTP status code to the appropriate error
// type. Unknown status codes are treated as retryable provider errors
// (unknown failures are assumed transient).
func ErrorFromStatusCode(statusCode int, message, provider string, raw json.RawMessage) error {
	base := ProviderError{
		SDKError:   SDKError{Message: message},
		Provider:   provider,
		StatusCode: statusCode,
		Raw:        raw,
	}

	switch {
	case statusCode == 401 || statusCode == 403:
		return &AuthenticationError{ProviderError: base}
	case statusCode == 400 || statusCode == 404 || statusCode == 422:
		return &InvalidRequestError{ProviderError: base}
	case statusCode == 408:
		return &RequestTimeoutError{SDKError: SDKError{Message: message}}
	case statusCode == 429:
		base.Retryable = true
		return &RateLimitError{ProviderError: base}
	case statusCode >= 500 && statusCode <= 599:
		base.Retryable = true
		return &ServerError{ProviderError: base}
	default:
		base.Retryable = true
		return &base
	}
}
