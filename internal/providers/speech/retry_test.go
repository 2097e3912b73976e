package speech

import (
	"context"
	"errors"
	"testing"
	"time"
)

func stubSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestRetryPolicyStopsAfterMaxAttempts(t *testing.T) {
	var delays []time.Duration
	policy := RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Sleep:       stubSleep(&delays),
	}

	attempts := 0
	failure := errors.New("synthesis unavailable")
	err := policy.Do(context.Background(), func(context.Context, int) error {
		attempts++
		return failure
	})

	if !errors.Is(err, failure) {
		t.Fatalf("expected last error returned, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if len(delays) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(delays))
	}
	for _, d := range delays {
		if d != 2*time.Second {
			t.Fatalf("expected base delay, got %v", d)
		}
	}
}

func TestRetryPolicyDoublesDelayOnExhaustion(t *testing.T) {
	var delays []time.Duration
	policy := RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Sleep:       stubSleep(&delays),
	}

	err := policy.Do(context.Background(), func(context.Context, int) error {
		return &StatusError{StatusCode: 429, Body: "quota_exceeded"}
	})
	if err == nil {
		t.Fatal("expected failure")
	}
	for _, d := range delays {
		if d != 4*time.Second {
			t.Fatalf("expected doubled delay for exhaustion, got %v", d)
		}
	}
}

func TestRetryPolicySucceedsMidway(t *testing.T) {
	var delays []time.Duration
	policy := RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Sleep:       stubSleep(&delays),
	}

	attempts := 0
	err := policy.Do(context.Background(), func(context.Context, int) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetryPolicyFatalStopsImmediately(t *testing.T) {
	var delays []time.Duration
	policy := RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Sleep:       stubSleep(&delays),
	}

	attempts := 0
	err := policy.Do(context.Background(), func(context.Context, int) error {
		attempts++
		return &StatusError{StatusCode: 401, Body: "bad key"}
	})
	if err == nil {
		t.Fatal("expected failure")
	}
	if attempts != 1 {
		t.Fatalf("expected single attempt for fatal error, got %d", attempts)
	}
	if len(delays) != 0 {
		t.Fatal("expected no sleeps for fatal error")
	}
}
