package speech

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Verdict classifies a synthesis failure for retry purposes.
type Verdict int

const (
	// VerdictRetry schedules another attempt after the base delay.
	VerdictRetry Verdict = iota
	// VerdictRetrySlow schedules another attempt after twice the base delay,
	// used when the provider signals quota or rate exhaustion.
	VerdictRetrySlow
	// VerdictFatal stops retrying immediately.
	VerdictFatal
)

// RetryPolicy retries a synthesis call a fixed number of times with a fixed
// delay between attempts. Exhaustion-style failures double the delay; they do
// not grow it further on repeat.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Classify    func(error) Verdict

	// Sleep is swapped out in tests. Nil means a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultClassify(err error) Verdict {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == 429:
			return VerdictRetrySlow
		case statusErr.StatusCode == 401 || statusErr.StatusCode == 403:
			return VerdictFatal
		}
	}
	if strings.Contains(strings.ToLower(err.Error()), "quota_exceeded") {
		return VerdictRetrySlow
	}
	return VerdictRetry
}

// Do runs fn until it succeeds, the attempt budget runs out, or a failure is
// classified fatal. The last attempt's error is returned unwrapped so callers
// can still inspect the provider status.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	classify := p.Classify
	if classify == nil {
		classify = DefaultClassify
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		verdict := classify(lastErr)
		if verdict == VerdictFatal {
			return lastErr
		}
		delay := p.BaseDelay
		if verdict == VerdictRetrySlow {
			delay *= 2
		}
		if delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}
	}
	return lastErr
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
