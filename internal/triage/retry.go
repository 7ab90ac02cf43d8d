package triage

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy is a bounded retry loop with a fixed delay and a predicate
// deciding which errors are worth retrying.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Retryable   func(error) bool

	// sleep is injectable for tests
	sleep func(time.Duration)
}

// DefaultRetryPolicy retries rate-limit errors up to 3 attempts with a
// fixed 500ms delay between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       500 * time.Millisecond,
		Retryable:   func(err error) bool { return errors.Is(err, ErrRateLimited) },
	}
}

// Do runs fn until it succeeds, a non-retryable error occurs, or attempts
// run out. The delay is applied between attempts, never after the last one.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sleep(p.Delay)
	}
	return err
}
