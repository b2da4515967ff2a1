package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{MaxRetries: retries, BaseDelay: 0.001, BackoffMultiplier: 1, MaxDelay: 0.001}
}

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{BaseDelay: 1.0, BackoffMultiplier: 2.0, MaxDelay: 60.0}

	delays := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, expected := range delays {
		if got := policy.Delay(i); got != expected {
			t.Errorf("attempt %d: expected %v, got %v", i, expected, got)
		}
	}
}

func TestRetryPolicyDelayWithMaxCap(t *testing.T) {
	policy := RetryPolicy{BaseDelay: 1.0, BackoffMultiplier: 2.0, MaxDelay: 5.0}
	if got := policy.Delay(10); got != 5*time.Second {
		t.Errorf("expected 5s (capped), got %v", got)
	}
}

func TestRetryPolicyDelayWithJitter(t *testing.T) {
	policy := RetryPolicy{BaseDelay: 1.0, BackoffMultiplier: 2.0, MaxDelay: 60.0, Jitter: true}
	for i := 0; i < 100; i++ {
		got := policy.Delay(0)
		if got < 500*time.Millisecond || got > 1500*time.Millisecond {
			t.Errorf("jittered delay out of range: %v", got)
		}
	}
}

func TestDelayForRetryAfter(t *testing.T) {
	policy := RetryPolicy{BaseDelay: 1.0, BackoffMultiplier: 2.0, MaxDelay: 10.0}

	hint := 3.0
	err := ErrorFromStatusCode(429, "slow down", "openai", "", &hint)
	delay, ok := policy.DelayFor(err, 0)
	if !ok || delay != 3*time.Second {
		t.Errorf("expected 3s hint, got %v ok=%v", delay, ok)
	}

	long := 120.0
	err = ErrorFromStatusCode(429, "slow down", "openai", "", &long)
	if _, ok := policy.DelayFor(err, 0); ok {
		t.Error("expected a hint above MaxDelay to stop retrying")
	}
}

func TestRetrySuccess(t *testing.T) {
	callCount := 0
	result, err := Retry(context.Background(), fastPolicy(3), func(ctx context.Context) (string, error) {
		callCount++
		if callCount < 3 {
			return "", ErrorFromStatusCode(503, "server error", "openai", "", nil)
		}
		return "success", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "success" {
		t.Errorf("expected %q, got %q", "success", result)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetryNonRetryableError(t *testing.T) {
	callCount := 0
	_, err := Retry(context.Background(), fastPolicy(3), func(ctx context.Context) (int, error) {
		callCount++
		return 0, &Error{Kind: KindAuthentication}
	})
	if !IsKind(err, KindAuthentication) {
		t.Fatalf("expected an authentication error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryExhausted(t *testing.T) {
	callCount := 0
	var retries []int
	policy := fastPolicy(2)
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		retries = append(retries, attempt)
	}

	_, err := Retry(context.Background(), policy, func(ctx context.Context) (int, error) {
		callCount++
		return 0, newError(KindNetwork, "down", nil)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
	if len(retries) != 2 || retries[0] != 1 || retries[1] != 2 {
		t.Errorf("unexpected retry callbacks: %v", retries)
	}
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: 10, BackoffMultiplier: 1, MaxDelay: 10}

	_, err := Retry(ctx, policy, func(ctx context.Context) (int, error) {
		cancel()
		return 0, newError(KindNetwork, "down", nil)
	})
	if !IsKind(err, KindAborted) {
		t.Fatalf("expected an aborted error, got %T %v", err, err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected the cancellation cause, got %v", err)
	}
}
