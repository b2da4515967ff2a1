package audit

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/vanna/logging"
	"github.com/martinemde/vanna/user"
)

func TestSanitizeParameters(t *testing.T) {
	in := map[string]any{
		"sql":      "SELECT 1",
		"password": "hunter2",
		"API_KEY":  "sk-123",
		"nested": map[string]any{
			"auth_token": "abc",
			"limit":      10,
		},
	}

	out := SanitizeParameters(in)

	assert.Equal(t, "SELECT 1", out["sql"])
	assert.Equal(t, redacted, out["password"])
	assert.Equal(t, redacted, out["API_KEY"])
	nested := out["nested"].(map[string]any)
	assert.Equal(t, redacted, nested["auth_token"])
	assert.Equal(t, 10, nested["limit"])
	assert.Equal(t, "hunter2", in["password"], "input is not modified")
	assert.Nil(t, SanitizeParameters(nil))
}

func TestToolInvocation_Sanitizes(t *testing.T) {
	u := &user.User{ID: "u1", Username: "alice", GroupMemberships: []string{"admin"}}
	scope := Scope{ConversationID: "c1", RequestID: "r1"}

	e := ToolInvocation(u, scope, "call_1", "run_sql", map[string]any{"secret": "x"}, true, []string{"tool_names"})

	assert.Equal(t, EventToolInvocation, e.EventType)
	assert.Equal(t, "u1", e.UserID)
	assert.Equal(t, "c1", e.ConversationID)
	assert.Equal(t, true, e.Details["parameters_sanitized"])
	assert.Equal(t, redacted, e.Details["parameters"].(map[string]any)["secret"])
	assert.NotEmpty(t, e.EventID)
}

func TestMemoryLogger_FiltersByType(t *testing.T) {
	var m MemoryLogger
	ctx := context.Background()
	u := &user.User{ID: "u1"}

	require.NoError(t, m.LogEvent(ctx, ToolAccessCheck(u, Scope{}, "run_sql", true, nil)))
	require.NoError(t, m.LogEvent(ctx, ToolResult(u, Scope{}, "c", "run_sql", ResultInfo{Success: true})))

	assert.Len(t, m.Events(), 2)
	checks := m.Events(EventToolAccessCheck)
	require.Len(t, checks, 1)
	assert.Equal(t, true, checks[0].Details["access_granted"])
}

func TestSlogLogger_WritesEvent(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(logging.NewWithWriter(&buf, 0))

	err := l.LogEvent(context.Background(), ToolAccessCheck(&user.User{ID: "u9"}, Scope{}, "run_sql", false, []string{"admin"}))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "tool_access_check")
	assert.Contains(t, buf.String(), "user_id=u9")
}
