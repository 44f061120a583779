// ABOUTME: Tests for the error taxonomy and transient/permanent classification.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type selfClassifying struct{ retry bool }

func (e *selfClassifying) Error() string     { return "provider error" }
func (e *selfClassifying) IsRetryable() bool { return e.retry }

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"transient exec", Transient("rate limited", nil), KindTransient},
		{"permanent exec", Permanent("bad output", nil), KindPermanent},
		{"retryable interface true", &selfClassifying{retry: true}, KindTransient},
		{"retryable interface false", &selfClassifying{retry: false}, KindPermanent},
		{"wrapped retryable", fmt.Errorf("call failed: %w", &selfClassifying{retry: true}), KindTransient},
		{"deadline exceeded", context.DeadlineExceeded, KindTransient},
		{"plain error", errors.New("something"), KindPermanent},
		{"budget sentinel", ErrBudgetExhausted, KindPermanent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestExecErrorWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transient("upstream call failed", cause)

	if !errors.Is(err, cause) {
		t.Error("cause should unwrap")
	}
	if err.Error() != "upstream call failed: connection reset" {
		t.Errorf("Error() = %q", err.Error())
	}
	if Permanent("no cause", nil).Error() != "no cause" {
		t.Error("message-only error should not append a cause")
	}
}

func TestDependencyErrorMessage(t *testing.T) {
	err := &DependencyError{Stage: "scenes", Missing: "beats"}
	msg := err.Error()
	if !strings.Contains(msg, "scenes") || !strings.Contains(msg, "beats") {
		t.Errorf("message %q should name both stages", msg)
	}
}
