package agent

import (
	"context"
	"time"

	"github.com/martinemde/vanna/llm"
	"github.com/martinemde/vanna/tool"
)

// RecoveryActionType says what to do after a failure.
type RecoveryActionType string

const (
	RecoveryRetry    RecoveryActionType = "retry"
	RecoveryFail     RecoveryActionType = "fail"
	RecoveryFallback RecoveryActionType = "fallback"
	RecoverySkip     RecoveryActionType = "skip"
)

// RecoveryAction is the decision of an ErrorRecoveryStrategy. For LLM
// errors a fallback value may be a *llm.Response or a string reply; for tool
// errors it may be a *tool.Result or a string result.
type RecoveryAction struct {
	Action        RecoveryActionType
	RetryDelay    time.Duration
	FallbackValue any
	Message       string
}

// ErrorRecoveryStrategy decides how to handle tool and LLM failures.
// attempt starts at 1.
type ErrorRecoveryStrategy interface {
	HandleToolError(ctx context.Context, err error, tctx *tool.Context, attempt int) RecoveryAction
	HandleLLMError(ctx context.Context, err error, req llm.Request, attempt int) RecoveryAction
}

// maxRecoveryAttempts bounds retries no matter what a strategy answers.
const maxRecoveryAttempts = 8

// FailRecovery fails on every error.
type FailRecovery struct{}

func (FailRecovery) HandleToolError(context.Context, error, *tool.Context, int) RecoveryAction {
	return RecoveryAction{Action: RecoveryFail}
}

func (FailRecovery) HandleLLMError(context.Context, error, llm.Request, int) RecoveryAction {
	return RecoveryAction{Action: RecoveryFail}
}

// RetryRecovery retries retryable LLM errors with the backoff of Policy and
// fails everything else.
type RetryRecovery struct {
	Policy llm.RetryPolicy
}

// NewRetryRecovery uses llm.DefaultRetryPolicy.
func NewRetryRecovery() RetryRecovery {
	return RetryRecovery{Policy: llm.DefaultRetryPolicy()}
}

func (RetryRecovery) HandleToolError(context.Context, error, *tool.Context, int) RecoveryAction {
	return RecoveryAction{Action: RecoveryFail}
}

func (r RetryRecovery) HandleLLMError(_ context.Context, err error, _ llm.Request, attempt int) RecoveryAction {
	if attempt > r.Policy.MaxRetries || !llm.IsRetryable(err) {
		return RecoveryAction{Action: RecoveryFail}
	}
	delay, ok := r.Policy.DelayFor(err, attempt-1)
	if !ok {
		return RecoveryAction{Action: RecoveryFail, Message: "retry-after exceeds the maximum delay"}
	}
	if r.Policy.OnRetry != nil {
		r.Policy.OnRetry(err, attempt, delay)
	}
	return RecoveryAction{Action: RecoveryRetry, RetryDelay: delay}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
