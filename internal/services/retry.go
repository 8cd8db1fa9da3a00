package services

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy bounds how often a failing operation is repeated.
// Retries is the number of extra attempts after the first.
type RetryPolicy struct {
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (p *RetryPolicy) normalize() {
	if p.Retries < 0 {
		p.Retries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Millisecond
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// policy is exhausted. onRetry, when set, observes each failed attempt that
// will be repeated.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(context.Context) (T, error), onRetry func(attempt int, err error)) (T, error) {
	policy.normalize()

	var zero T
	var lastErr error
	delay := policy.BaseDelay

	for attempt := 0; attempt <= policy.Retries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
			delay = min(delay*2, policy.MaxDelay)
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			return zero, err
		}
		if attempt < policy.Retries && onRetry != nil {
			onRetry(attempt+1, err)
		}
	}

	if policy.Retries == 0 {
		return zero, lastErr
	}
	return zero, fmt.Errorf("after %d retries: %w", policy.Retries, lastErr)
}
