package llm

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an LLM failure. Retry and recovery decisions are made on
// the kind, never on provider-specific messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthentication
	KindAccessDenied
	KindNotFound
	KindInvalidRequest
	KindRateLimit
	KindQuotaExceeded
	KindContextLength
	KindContentFilter
	KindServer
	KindTimeout
	KindNetwork
	KindStream
	KindAborted
	KindInvalidToolCall
	KindConfiguration
)

var kindNames = map[Kind]string{
	KindUnknown:         "unknown",
	KindAuthentication:  "authentication",
	KindAccessDenied:    "access_denied",
	KindNotFound:        "not_found",
	KindInvalidRequest:  "invalid_request",
	KindRateLimit:       "rate_limit",
	KindQuotaExceeded:   "quota_exceeded",
	KindContextLength:   "context_length",
	KindContentFilter:   "content_filter",
	KindServer:          "server",
	KindTimeout:         "timeout",
	KindNetwork:         "network",
	KindStream:          "stream",
	KindAborted:         "aborted",
	KindInvalidToolCall: "invalid_tool_call",
	KindConfiguration:   "configuration",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Retryable reports whether a failure of this kind may succeed on a second
// attempt. Unknown failures are assumed transient.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimit, KindServer, KindTimeout, KindNetwork, KindStream, KindUnknown:
		return true
	default:
		return false
	}
}

// Error is the error type returned by every Service in this package.
type Error struct {
	Kind     Kind
	Provider string
	// StatusCode is the HTTP status, or 0 when the failure never reached
	// the provider.
	StatusCode int
	Code       string
	Message    string
	// RetryAfter is the provider's hint in seconds, if it sent one.
	RetryAfter *float64
	Cause      error
}

func (e *Error) Error() string {
	var msg string
	if e.Provider != "" {
		msg = fmt.Sprintf("%s: %s (%s", e.Provider, e.Message, e.Kind)
		if e.StatusCode != 0 {
			msg += fmt.Sprintf(", status %d", e.StatusCode)
		}
		msg += ")"
	} else {
		msg = e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func configError(format string, args ...any) *Error {
	return newError(KindConfiguration, fmt.Sprintf(format, args...), nil)
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// kindForStatus maps HTTP statuses to kinds. Anything unlisted is unknown.
var kindForStatus = map[int]Kind{
	400: KindInvalidRequest,
	401: KindAuthentication,
	403: KindAccessDenied,
	404: KindNotFound,
	408: KindTimeout,
	413: KindContextLength,
	422: KindInvalidRequest,
	429: KindRateLimit,
	500: KindServer,
	502: KindServer,
	503: KindServer,
	504: KindServer,
}

// ErrorFromStatusCode builds the *Error for an HTTP failure response.
func ErrorFromStatusCode(statusCode int, message, provider, errorCode string, retryAfter *float64) error {
	return &Error{
		Kind:       kindForStatus[statusCode],
		Provider:   provider,
		StatusCode: statusCode,
		Code:       errorCode,
		Message:    message,
		RetryAfter: retryAfter,
	}
}

// IsRetryable reports whether err is worth retrying. Cancellation is never
// retried. Errors from outside this package are treated as transient.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind.Retryable()
	}
	return true
}
