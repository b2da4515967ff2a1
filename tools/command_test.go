package tools

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/vanna/components"
	"github.com/martinemde/vanna/tool"
	"github.com/martinemde/vanna/user"
)

func requireBash(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/bin/bash"); err != nil {
		t.Skip("/bin/bash not available")
	}
}

func TestRunBash_Output(t *testing.T) {
	requireBash(t)
	res := invoke(t, NewRunBash(newFS(t)), map[string]any{"command": "echo hello"})

	require.True(t, res.Success)
	assert.Equal(t, "Executed command (exit code 0).\n\n$ echo hello\n\nSTDOUT:\nhello", res.ResultForLLM)
	card, ok := res.UiComponent.Rich.(*components.Card)
	require.True(t, ok)
	assert.Equal(t, "Command Result", card.Title)
	assert.Equal(t, components.StatusSuccess, card.Status)
}

func TestRunBash_NonZeroExit(t *testing.T) {
	requireBash(t)
	res := invoke(t, NewRunBash(newFS(t)), map[string]any{"command": "exit 3"})

	assert.False(t, res.Success)
	assert.Equal(t, 3, res.Metadata["exit_code"])
	assert.Equal(t, "Executed command (exit code 3).\n\n$ exit 3\n\n(no output)", res.ResultForLLM)
}

func TestRunBash_Timeout(t *testing.T) {
	requireBash(t)
	res := invoke(t, NewRunBash(newFS(t)), map[string]any{"command": "sleep 5", "timeout_seconds": 0.2})

	assert.False(t, res.Success)
	assert.Contains(t, res.ResultForLLM, "Command timed out after")
}

func TestRunBash_AdminOnly(t *testing.T) {
	r := tool.NewRegistry()
	require.NoError(t, r.Register(NewRunBash(newFS(t))))

	res := r.Execute(context.Background(), tool.Call{ID: "1", Name: RunBashName, Arguments: map[string]any{"command": "id"}},
		&tool.Context{User: testUser})

	assert.False(t, res.Success)
	assert.Equal(t, "Insufficient group access for tool 'run_bash'", res.ResultForLLM)
	schemas := r.Schemas(context.Background(), &user.User{ID: "root", GroupMemberships: []string{"admin"}})
	require.Len(t, schemas, 1)
	assert.Equal(t, RunBashName, schemas[0].Name)
}
