// Package retry provides a small composable retry policy: bounded attempts,
// exponential backoff, and a predicate deciding which errors qualify. Call
// sites share one policy instead of scattering ad hoc loops.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts caps total attempts, first try included. Values below 1
	// behave as 1.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt; each further attempt
	// doubles it.
	BaseDelay time.Duration
	// MaxDelay caps the backoff growth. Zero means uncapped.
	MaxDelay time.Duration
	// Jitter adds up to this much random extra wait per sleep, spreading
	// contending retriers. Zero disables it.
	Jitter time.Duration
	// Retryable decides whether an error qualifies for another attempt. A nil
	// predicate retries every error.
	Retryable func(error) bool
}

// Do runs fn until it succeeds, exhausts the attempt budget, returns a
// non-retryable error, or the context is cancelled. The last error is
// returned in the failure cases.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := p.sleep(ctx, attempt); err != nil {
				return err
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

func (p Policy) sleep(ctx context.Context, attempt int) error {
	delay := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
