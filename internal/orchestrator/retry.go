package orchestrator

import (
	"context"
	"time"

	"tickforge/internal/errkind"
)

// RetryPolicy governs retrying a shot compile after a resource error, a
// direct port of the original's ShotRetryConfig + ShotManager's
// _run_shot_with_retry loop: retry only causes on an explicit allow-list, up
// to a fixed attempt count, sleeping between attempts. User and invariant
// errors are never retried — only the facade's orchestrator retries at all;
// the algebra and evaluator never do.
type RetryPolicy struct {
	// Attempts is the maximum number of tries, including the first.
	// Zero or negative means no retrying: a single attempt.
	Attempts int
	// AllowList names the error kinds eligible for retry. A resource
	// error whose Kind is not in this list is surfaced immediately.
	AllowList []errkind.Kind
	// Backoff computes the delay before attempt n+1 (0-indexed: the
	// delay before the second attempt is Backoff(0)). A nil Backoff
	// uses ExponentialBackoff(100 * time.Millisecond).
	Backoff func(attempt int) time.Duration
}

// NoRetry is a RetryPolicy that never retries — a single attempt only.
var NoRetry = RetryPolicy{Attempts: 1}

// DefaultRetryPolicy retries resource errors up to 3 times total with
// exponential backoff starting at 100ms, matching the original's default
// ShotRetryConfig(exceptions_to_retry={ResourceError}, number_of_attempts=3).
var DefaultRetryPolicy = RetryPolicy{
	Attempts:  3,
	AllowList: []errkind.Kind{errkind.KindResource},
}

// ExponentialBackoff returns a Backoff function doubling base on every
// attempt: base, 2*base, 4*base, ...
func ExponentialBackoff(base time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		d := base
		for i := 0; i < attempt; i++ {
			d *= 2
		}
		return d
	}
}

func (p RetryPolicy) backoff() func(attempt int) time.Duration {
	if p.Backoff != nil {
		return p.Backoff
	}
	return ExponentialBackoff(100 * time.Millisecond)
}

// Run invokes fn, retrying according to the policy when fn's error is a
// *errkind.CompileError whose Kind is on the allow-list.
func (p RetryPolicy) Run(ctx context.Context, fn func() (map[string]any, error)) (map[string]any, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := p.backoff()

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !errkind.RetryAllowed(err, p.AllowList) {
			return nil, err
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
