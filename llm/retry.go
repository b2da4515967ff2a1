package llm

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures exponential backoff. Delays are in seconds.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         float64
	MaxDelay          float64
	BackoffMultiplier float64
	Jitter            bool
	OnRetry           func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy retries twice starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		BaseDelay:         1.0,
		MaxDelay:          60.0,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// Delay is the wait before retry n (0-indexed), capped at MaxDelay. Jitter
// scales it by a random factor in [0.5, 1.5).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	secs := p.BaseDelay * math.Pow(p.BackoffMultiplier, float64(attempt))
	secs = min(secs, p.MaxDelay)
	if p.Jitter {
		secs *= 0.5 + rand.Float64()
	}
	return seconds(secs)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// DelayFor is Delay, except a rate-limit Retry-After hint overrides the
// computed backoff. ok is false when the hint exceeds MaxDelay and the
// caller should give up.
func (p RetryPolicy) DelayFor(err error, attempt int) (delay time.Duration, ok bool) {
	delay = p.Delay(attempt)
	var e *Error
	if errors.As(err, &e) && e.Kind == KindRateLimit && e.RetryAfter != nil {
		hint := seconds(*e.RetryAfter)
		if hint > seconds(p.MaxDelay) {
			return 0, false
		}
		delay = hint
	}
	return delay, true
}

// Retry runs fn, retrying retryable errors per policy. OnRetry sees 1-based
// retry numbers.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		var zero T
		if attempt >= policy.MaxRetries || !IsRetryable(err) {
			return zero, err
		}
		delay, ok := policy.DelayFor(err, attempt)
		if !ok {
			return zero, err
		}
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return zero, newError(KindAborted, "request cancelled during retry", err)
		}
	}
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
