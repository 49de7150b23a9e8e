// Package retry wraps fallible operations with bounded retry and
// exponential backoff. Every outbound provider call goes through the
// same policy; each call gets its own fresh attempt budget.
package retry

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultMaxAttempts is the attempt budget when none is configured.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the backoff unit when none is configured.
	DefaultBaseDelay = time.Second
)

// retryable is implemented by errors that know whether another attempt
// can succeed. Errors without the method are assumed retryable.
type retryable interface {
	Retryable() bool
}

// Policy describes a bounded exponential-backoff schedule. The first
// attempt runs immediately; after a failed attempt n the policy waits
// 2^(n-1) * BaseDelay before the next one. No jitter, no shared budget.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// sleep is replaced in tests to observe the schedule.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a policy, applying defaults for non-positive values.
func New(maxAttempts int, baseDelay time.Duration) Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return Policy{MaxAttempts: maxAttempts, BaseDelay: baseDelay, sleep: sleepCtx}
}

// Do runs op until it succeeds or the attempt budget is exhausted, in
// which case the error from the final attempt is returned. Errors that
// report Retryable() == false abort immediately, as does context
// cancellation during a backoff wait.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a value. The value from the
// first successful attempt is returned.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	baseDelay := p.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := baseDelay << (attempt - 2)
			if err := sleep(ctx, delay); err != nil {
				return zero, err
			}
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		var r retryable
		if errors.As(err, &r) && !r.Retryable() {
			return zero, err
		}
	}

	return zero, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
