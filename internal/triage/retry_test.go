package triage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryRecoversFromRateLimit(t *testing.T) {
	var slept []time.Duration
	policy := DefaultRetryPolicy()
	policy.sleep = func(d time.Duration) { slept = append(slept, d) }

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return ErrRateLimited
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if len(slept) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(slept))
	}
	for _, d := range slept {
		if d != 500*time.Millisecond {
			t.Errorf("expected 500ms delay, got %v", d)
		}
	}
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	var slept []time.Duration
	policy := DefaultRetryPolicy()
	policy.sleep = func(d time.Duration) { slept = append(slept, d) }

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return ErrAPICallFailed
	})

	if !errors.Is(err, ErrAPICallFailed) {
		t.Fatalf("expected ErrAPICallFailed, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
	if len(slept) != 0 {
		t.Errorf("expected no sleeps, got %d", len(slept))
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	var slept []time.Duration
	policy := DefaultRetryPolicy()
	policy.sleep = func(d time.Duration) { slept = append(slept, d) }

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return ErrRateLimited
	})

	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	// No delay after the final attempt
	if len(slept) != 2 {
		t.Errorf("expected 2 sleeps, got %d", len(slept))
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := DefaultRetryPolicy()
	policy.sleep = func(time.Duration) {}

	calls := 0
	err := policy.Do(ctx, func() error {
		calls++
		cancel()
		return ErrRateLimited
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}
