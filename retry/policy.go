// Package retry provides a bounded retry executor with exponential backoff
// and jitter for transient infrastructure failures.
//
// The policy is stateless and reentrant: attempt counters live in the
// invocation, so one Policy value is safe for concurrent use by any number
// of callers.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"time"
)

// Policy defines the retry behavior for operations against the store and
// the broker.
//
// The delay for attempt n (1-indexed) follows:
//
//	delay = min(MaxDelay, BaseDelay * 2^(n-1) * (1 + jitter))
//
// where jitter is drawn uniformly from [0, MaxJitter). Jitter
// desynchronizes concurrent retriers so a broker hiccup does not produce
// a synchronized retry storm.
//
// Example with defaults (1s base, 30s max, 3 attempts):
//
//	Attempt 1 fails: sleep 1.0s–1.25s
//	Attempt 2 fails: sleep 2.0s–2.5s
//	Attempt 3 fails: give up
type Policy struct {
	MaxAttempts int           // Maximum attempts including the first
	BaseDelay   time.Duration // Delay before the second attempt
	MaxDelay    time.Duration // Upper bound for any computed delay
	MaxJitter   float64       // Exclusive upper bound of the jitter fraction
}

// DefaultPolicy returns the production default retry policy:
// 3 attempts, 1s base delay, 30s cap, jitter in [0, 0.25).
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		MaxJitter:   0.25,
	}
}

// Execute runs op, retrying transient failures per the policy.
// Equivalent to ExecuteWithPredicate(ctx, op, IsTransient).
func (p Policy) Execute(ctx context.Context, op func(context.Context) error) error {
	return p.ExecuteWithPredicate(ctx, op, IsTransient)
}

// ExecuteWithPredicate runs op; on failure, if shouldRetry(err) is true
// and attempts remain, sleeps for the backoff delay and retries.
// Otherwise the final error is returned unmodified.
//
// Cancellation during a backoff sleep aborts immediately without
// performing the next attempt.
func (p Policy) ExecuteWithPredicate(ctx context.Context, op func(context.Context) error, shouldRetry func(error) bool) error {
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry canceled before attempt %d: %w", attempt, err)
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == maxAttempts || !shouldRetry(lastErr) {
			return lastErr
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry canceled during backoff after attempt %d: %w", attempt, ctx.Err())
		case <-timer.C:
		}
	}

	return lastErr
}

// Delay computes the backoff delay following the given attempt (1-indexed),
// including a fresh random jitter draw.
func (p Policy) Delay(attempt int) time.Duration {
	return p.delayWithJitter(attempt, rand.Float64()*p.MaxJitter)
}

// delayWithJitter computes the delay for a fixed jitter fraction.
// Split out so tests can pin the jitter.
func (p Policy) delayWithJitter(attempt int, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1)) * (1 + jitter)
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// IsTransient is the default retry predicate. It classifies as retryable:
// network timeouts, and errors whose message indicates a temporary broker
// or store condition. Validation failures, not-found results and context
// cancellation are never retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// transientMarkers are message fragments indicating conditions that
// typically resolve on their own.
var transientMarkers = []string{
	"timeout",
	"timed out",
	"temporar",
	"unavailable",
	"connection refused",
	"connection reset",
	"broken pipe",
	"too many connections",
	"try again",
	"deadlock",
	"server is busy",
	"throttl",
}
