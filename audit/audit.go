// Package audit records security-relevant agent events: access checks, tool
// invocations and tool results.
package audit

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/martinemde/vanna/user"
)

// EventType classifies an audit event.
type EventType string

const (
	EventToolAccessCheck      EventType = "tool_access_check"
	EventUiFeatureAccessCheck EventType = "ui_feature_access_check"
	EventToolInvocation       EventType = "tool_invocation"
	EventToolResult           EventType = "tool_result"
	EventMessageReceived      EventType = "message_received"
	EventAiResponseGenerated  EventType = "ai_response_generated"
)

// Event is one audit record.
type Event struct {
	EventID        string         `json:"event_id"`
	EventType      EventType      `json:"event_type"`
	Timestamp      time.Time      `json:"timestamp"`
	UserID         string         `json:"user_id"`
	Username       string         `json:"username,omitempty"`
	Email          string         `json:"email,omitempty"`
	Groups         []string       `json:"groups,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	RequestID      string         `json:"request_id,omitempty"`
	RemoteAddr     string         `json:"remote_addr,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
}

// Scope identifies the conversation and request an event belongs to.
type Scope struct {
	ConversationID string
	RequestID      string
	RemoteAddr     string
}

// NewEvent fills the identity fields of an event from u and scope.
func NewEvent(t EventType, u *user.User, scope Scope, details map[string]any) Event {
	e := Event{
		EventID:        uuid.NewString(),
		EventType:      t,
		Timestamp:      time.Now().UTC(),
		ConversationID: scope.ConversationID,
		RequestID:      scope.RequestID,
		RemoteAddr:     scope.RemoteAddr,
		Details:        details,
	}
	if u != nil {
		e.UserID = u.ID
		e.Username = u.Username
		e.Email = u.Email
		e.Groups = u.GroupMemberships
	}
	return e
}

// Logger persists audit events.
type Logger interface {
	LogEvent(ctx context.Context, event Event) error
}

// SlogLogger writes each event as a single structured record.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger returns a SlogLogger. A nil logger uses slog.Default.
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger.With("component", "audit")}
}

// LogEvent implements Logger.
func (s *SlogLogger) LogEvent(ctx context.Context, e Event) error {
	s.logger.InfoContext(ctx, string(e.EventType),
		"event_id", e.EventID,
		"user_id", e.UserID,
		"username", e.Username,
		"groups", e.Groups,
		"conversation_id", e.ConversationID,
		"request_id", e.RequestID,
		"details", e.Details,
	)
	return nil
}

// MemoryLogger keeps events in memory.
type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
}

// LogEvent implements Logger.
func (m *MemoryLogger) LogEvent(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Events returns a snapshot of recorded events, optionally filtered by type.
func (m *MemoryLogger) Events(types ...EventType) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, 0, len(m.events))
	for _, e := range m.events {
		if len(types) == 0 || containsType(types, e.EventType) {
			out = append(out, e)
		}
	}
	return out
}

func containsType(types []EventType, t EventType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

var sensitiveKeys = []string{"password", "secret", "token", "api_key", "apikey", "credential", "auth"}

const redacted = "[REDACTED]"

// SanitizeParameters returns a copy of params with sensitive values redacted.
// Nested maps are sanitized recursively.
func SanitizeParameters(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if isSensitive(k) {
			out[k] = redacted
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = SanitizeParameters(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
