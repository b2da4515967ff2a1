package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinemde/vanna/filesystem"
	"github.com/martinemde/vanna/tool"
	"github.com/martinemde/vanna/user"
)

var testUser = &user.User{ID: "analyst", GroupMemberships: []string{"user"}}

func userCtx() context.Context {
	return user.NewContext(context.Background(), testUser)
}

func newFS(t *testing.T) *filesystem.Local {
	t.Helper()
	return filesystem.NewLocal(t.TempDir())
}

func invoke(t *testing.T, tl tool.Tool, args map[string]any) *tool.Result {
	t.Helper()
	res, err := tl.Invoke(userCtx(), &tool.Context{User: testUser}, args)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}
