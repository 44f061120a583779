// ABOUTME: Retry policy configuration and exponential backoff delay calculation for stage execution.
// ABOUTME: Provides preset policies (none, standard, aggressive, linear, patient) selectable by name.
package pipeline

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy controls how many times a stage execution is retried on
// transient failure. Retries are for infrastructure flakiness; repairs
// (gate feedback) are counted separately.
type RetryPolicy struct {
	MaxAttempts int // minimum 1 (1 = no retries)
	Backoff     BackoffConfig
	ShouldRetry func(error) bool
}

// BackoffConfig controls delay timing between retry attempts.
type BackoffConfig struct {
	InitialDelay time.Duration // default 200ms
	Factor       float64       // default 2.0
	MaxDelay     time.Duration // default 60s
	Jitter       bool          // default true
}

// DelayForAttempt calculates the delay for a given attempt number (0-indexed).
// The formula is: InitialDelay * Factor^attempt, capped at MaxDelay.
// If Jitter is enabled, the delay is randomized in [0, calculated_delay].
func (b BackoffConfig) DelayForAttempt(attempt int) time.Duration {
	baseNanos := float64(b.InitialDelay.Nanoseconds()) * math.Pow(b.Factor, float64(attempt))
	maxNanos := float64(b.MaxDelay.Nanoseconds())
	delayNanos := math.Min(baseNanos, maxNanos)

	if b.Jitter {
		delayNanos = rand.Float64() * delayNanos
	}

	return time.Duration(int64(delayNanos))
}

// DefaultShouldRetry retries only transient failures.
func DefaultShouldRetry(err error) bool {
	return Classify(err) == KindTransient
}

// RetryPolicyNone returns a policy with no retries (single attempt).
func RetryPolicyNone() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 1,
		Backoff: BackoffConfig{
			InitialDelay: 200 * time.Millisecond,
			Factor:       2.0,
			MaxDelay:     60 * time.Second,
			Jitter:       false,
		},
		ShouldRetry: DefaultShouldRetry,
	}
}

// RetryPolicyStandard returns a standard policy with 5 attempts and exponential backoff.
func RetryPolicyStandard() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		Backoff: BackoffConfig{
			InitialDelay: 200 * time.Millisecond,
			Factor:       2.0,
			MaxDelay:     60 * time.Second,
			Jitter:       true,
		},
		ShouldRetry: DefaultShouldRetry,
	}
}

// RetryPolicyAggressive returns a policy with 5 attempts and a higher initial delay.
func RetryPolicyAggressive() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		Backoff: BackoffConfig{
			InitialDelay: 500 * time.Millisecond,
			Factor:       2.0,
			MaxDelay:     60 * time.Second,
			Jitter:       true,
		},
		ShouldRetry: DefaultShouldRetry,
	}
}

// RetryPolicyLinear returns a policy with 3 attempts and constant delay (factor=1.0).
func RetryPolicyLinear() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff: BackoffConfig{
			InitialDelay: 500 * time.Millisecond,
			Factor:       1.0,
			MaxDelay:     60 * time.Second,
			Jitter:       false,
		},
		ShouldRetry: DefaultShouldRetry,
	}
}

// RetryPolicyPatient returns a policy with 3 attempts, high initial delay, and steep backoff.
func RetryPolicyPatient() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff: BackoffConfig{
			InitialDelay: 2000 * time.Millisecond,
			Factor:       3.0,
			MaxDelay:     60 * time.Second,
			Jitter:       true,
		},
		ShouldRetry: DefaultShouldRetry,
	}
}

// RetryPolicyByName resolves a preset policy name. Unknown names fall back
// to the standard policy.
func RetryPolicyByName(name string) RetryPolicy {
	switch name {
	case "none":
		return RetryPolicyNone()
	case "aggressive":
		return RetryPolicyAggressive()
	case "linear":
		return RetryPolicyLinear()
	case "patient":
		return RetryPolicyPatient()
	default:
		return RetryPolicyStandard()
	}
}
