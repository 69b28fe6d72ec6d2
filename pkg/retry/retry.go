// Package retry implements bounded exponential backoff over a user-supplied
// operation, generalizing the teacher's connection-specific reconnect loop
// (client/reconnect.go's ConnectionManager.reconnectLoop) into a standalone
// higher-order function, per spec.md §9 "decorator-driven retry → higher-
// order function. Policies are data, not annotations."
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy configures one retry run. It corresponds to spec.md §4.1's contract:
// retry(op, max_attempts, initial_delay, max_delay, base, jitter, retry_on).
type Policy struct {
	MaxAttempts  int           // total attempts beyond the first is MaxAttempts; 0 means no retry
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Base         float64 // exponential base, defaults to 2 when <= 0
	Jitter       bool
	// RetryOn reports whether err should be retried. A nil RetryOn retries
	// every error (matches the teacher's ConnectionManager, which retries
	// unconditionally on any Dial failure).
	RetryOn func(error) bool
}

func (p Policy) base() float64 {
	if p.Base <= 0 {
		return 2
	}
	return p.Base
}

// DefaultPolicy matches the original Python implementation's retry.py
// defaults (max_retries=3, initial_delay=1.0s, max_delay=60.0s, jitter=true).
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
		Base:         2,
		Jitter:       true,
	}
}

// Op is the operation retried. It must itself be context-aware for
// cancellation to be observed mid-call, not just during backoff sleeps.
type Op[T any] func(ctx context.Context) (T, error)

// Do runs op, retrying on failure per policy. Attempt numbering follows
// spec.md §4.1: for attempt in [0, MaxAttempts], invoke op; on success
// return; on a retryable error with attempt == MaxAttempts, surface the last
// error; otherwise sleep and retry. Errors outside RetryOn propagate
// immediately without consuming an attempt's backoff.
func Do[T any](ctx context.Context, policy Policy, op Op[T]) (T, error) {
	var zero T
	delay := policy.InitialDelay

	for attempt := 0; attempt <= policy.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if policy.RetryOn != nil && !policy.RetryOn(err) {
			return zero, err
		}

		if attempt == policy.MaxAttempts {
			return zero, err
		}

		sleep := delay
		if sleep > policy.MaxDelay {
			sleep = policy.MaxDelay
		}
		if policy.Jitter {
			sleep = time.Duration(float64(sleep) * (0.5 + rand.Float64()))
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(sleep):
		}

		delay = time.Duration(float64(delay) * policy.base())
	}

	return zero, nil // unreachable: loop always returns on the MaxAttempts branch
}
