package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorFromStatusCode(t *testing.T) {
	tests := []struct {
		status    int
		kind      Kind
		retryable bool
	}{
		{400, KindInvalidRequest, false},
		{401, KindAuthentication, false},
		{403, KindAccessDenied, false},
		{404, KindNotFound, false},
		{408, KindTimeout, true},
		{413, KindContextLength, false},
		{422, KindInvalidRequest, false},
		{429, KindRateLimit, true},
		{500, KindServer, true},
		{502, KindServer, true},
		{503, KindServer, true},
		{504, KindServer, true},
		{418, KindUnknown, true},
	}

	for _, tt := range tests {
		err := ErrorFromStatusCode(tt.status, "test error", "openai", "", nil)
		if got := KindOf(err); got != tt.kind {
			t.Errorf("status %d: expected kind %s, got %s", tt.status, tt.kind, got)
		}
		if got := IsRetryable(err); got != tt.retryable {
			t.Errorf("status %d: expected retryable=%v, got %v", tt.status, tt.retryable, got)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"wrapped cancel", fmt.Errorf("call: %w", context.Canceled), false},
		{"aborted", newError(KindAborted, "stop", nil), false},
		{"config", configError("bad"), false},
		{"content filter", &Error{Kind: KindContentFilter}, false},
		{"quota", &Error{Kind: KindQuotaExceeded}, false},
		{"network", newError(KindNetwork, "down", nil), true},
		{"stream", &Error{Kind: KindStream}, true},
		{"wrapped rate limit", fmt.Errorf("send: %w", &Error{Kind: KindRateLimit}), true},
		{"foreign", errors.New("boom"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("expected %v, got %v", tt.retryable, got)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := ErrorFromStatusCode(429, "slow down", "openai", "rate_limit_exceeded", nil)
	if got := err.Error(); got != "openai: slow down (rate_limit, status 429)" {
		t.Errorf("unexpected message %q", got)
	}

	plain := newError(KindNetwork, "network failed", errors.New("connection refused"))
	if got := plain.Error(); got != "network failed: connection refused" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("send: %w", newError(KindNetwork, "network failed", cause))
	if !errors.Is(err, cause) {
		t.Error("expected the cause to be reachable")
	}
	if !IsKind(err, KindNetwork) || IsKind(err, KindServer) {
		t.Error("IsKind should see through wrapping")
	}
	if KindOf(errors.New("x")) != KindUnknown {
		t.Error("foreign errors have unknown kind")
	}
}

func TestKindString(t *testing.T) {
	if KindRateLimit.String() != "rate_limit" {
		t.Errorf("unexpected %q", KindRateLimit.String())
	}
	if Kind(99).String() != "kind(99)" {
		t.Errorf("unexpected %q", Kind(99).String())
	}
}
