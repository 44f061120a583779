// ABOUTME: Error taxonomy for the pipeline core: configuration, dependency, and stage execution errors.
// ABOUTME: Partitions execution failures into transient (retried with backoff) and permanent (recorded).
package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a failure record in the error log.
type ErrorKind string

const (
	// KindTransient marks infrastructure flakiness: timeouts, rate limits,
	// network failures. Absorbed by retry logic up to the ceiling.
	KindTransient ErrorKind = "transient"
	// KindPermanent marks failures retrying cannot fix: malformed output,
	// policy rejection, or an exhausted retry ceiling.
	KindPermanent ErrorKind = "permanent"
	// KindQuality marks a gate miss recorded during the repair loop. Not an
	// exception; the repair-retry path consumes it.
	KindQuality ErrorKind = "quality"
)

// ErrBudgetExhausted signals that the hard budget would be exceeded by the
// next LLM call. It is a designed suspension, not a failure: the orchestrator
// converts it to a PAUSED state.
var ErrBudgetExhausted = errors.New("budget exhausted")

// ConfigurationError reports a malformed stage graph: cycles, duplicate
// names, unknown dependencies, or unregistered stages. Always fatal,
// detected before any LLM call is made.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

// DependencyError reports that a stage's prerequisites are not satisfied in
// the current state, indicating a corrupt or manually edited checkpoint.
type DependencyError struct {
	Stage   string
	Missing string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency error: stage %q requires %q which has neither output nor failure record", e.Stage, e.Missing)
}

// ExecError is a stage execution failure tagged transient or permanent.
type ExecError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ExecError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ExecError) Unwrap() error { return e.Cause }

// IsRetryable reports whether the failure is worth retrying.
func (e *ExecError) IsRetryable() bool { return e.Kind == KindTransient }

// Transient wraps an error as a retryable execution failure.
func Transient(message string, cause error) *ExecError {
	return &ExecError{Kind: KindTransient, Message: message, Cause: cause}
}

// Permanent wraps an error as a non-retryable execution failure.
func Permanent(message string, cause error) *ExecError {
	return &ExecError{Kind: KindPermanent, Message: message, Cause: cause}
}

// retryable is the interface shared with the llm package's error types, so
// LLM SDK errors classify without wrapping.
type retryable interface {
	IsRetryable() bool
}

// Classify partitions an execution error into transient or permanent.
// Errors exposing IsRetryable decide for themselves; context deadline
// expiry counts as transient (a timed-out call may succeed on retry);
// everything else is permanent.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var r retryable
	if errors.As(err, &r) {
		if r.IsRetryable() {
			return KindTransient
		}
		return KindPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindPermanent
}
