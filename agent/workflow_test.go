package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/vanna/components"
	"github.com/martinemde/vanna/llm"
	"github.com/martinemde/vanna/logging"
	"github.com/martinemde/vanna/storage"
	"github.com/martinemde/vanna/tool"
	"github.com/martinemde/vanna/user"
)

func agentWithTools(t *testing.T, names ...string) *Agent {
	t.Helper()
	reg := tool.NewRegistry(tool.WithLogger(logging.NewNop()))
	for _, name := range names {
		reg.MustRegister(tool.New(name, "stub "+name, func(context.Context, *tool.Context, struct{}) (*tool.Result, error) {
			return tool.Success("", nil), nil
		}))
	}
	a, err := New(llm.NewScriptedService(), reg, user.StaticResolver{User: analyst}, storage.NewMemoryStore(), WithLogger(logging.NewNop()))
	require.NoError(t, err)
	return a
}

func TestAnalyzeSetup(t *testing.T) {
	s := analyzeSetup([]string{"run_sql", "search_saved_correct_tool_uses", "save_question_tool_args", "visualize_data", "calc"})
	assert.True(t, s.hasSQL)
	assert.True(t, s.hasMemory)
	assert.True(t, s.hasViz)
	assert.True(t, s.hasCalculator)
	assert.True(t, s.complete())

	s = analyzeSetup([]string{"query_sql", "save_question_tool_args"})
	assert.True(t, s.functional())
	assert.False(t, s.hasMemory)
	assert.True(t, s.hasSave)
	assert.False(t, s.complete())
}

func TestWelcomeMessage(t *testing.T) {
	assert.True(t, strings.HasPrefix(welcomeMessage(analyzeSetup(nil)), "# ⚠️ Setup Required"))
	assert.True(t, strings.HasPrefix(welcomeMessage(analyzeSetup([]string{
		"run_sql", "search_saved_correct_tool_uses", "save_question_tool_args", "create_chart",
	})), "# 🎉 Welcome to Vanna AI!"))

	functional := welcomeMessage(analyzeSetup([]string{"run_sql"}))
	assert.True(t, strings.HasPrefix(functional, "# 👋 Welcome to Vanna AI!"))
	assert.Contains(t, functional, "Consider adding memory tools")
	assert.Contains(t, functional, "Add visualization tools")
	assert.True(t, strings.HasSuffix(functional, "Go ahead and ask me anything about your data!"))
}

func TestWorkflow_TryHandle(t *testing.T) {
	a := agentWithTools(t, "run_sql")
	w := DefaultWorkflow{}
	ctx := context.Background()

	for _, msg := range []string{"/help", " HELP ", "/h"} {
		res, err := w.TryHandle(ctx, a, analyst, nil, msg)
		require.NoError(t, err)
		require.NotNil(t, res, msg)
		assert.True(t, res.Handled)
		assert.Equal(t, []string{helpText}, texts(res.Components))
	}

	res, err := w.TryHandle(ctx, a, analyst, nil, "show me sales")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestWorkflow_Status(t *testing.T) {
	a := agentWithTools(t, "run_sql", "calculator")

	res, err := DefaultWorkflow{}.TryHandle(context.Background(), a, analyst, nil, "/status")
	require.NoError(t, err)
	require.True(t, res.Handled)

	report := texts(res.Components)[0]
	assert.True(t, strings.HasPrefix(report, "# 🔍 Setup Status Report\n\n✅ **Good!**"))
	assert.Contains(t, report, "**Tools Detected:** 2 total")
	assert.Contains(t, report, "- **SQL Connection:** ✅ Available")
	assert.Contains(t, report, "- **Memory System:** ❌ Missing")
	assert.Contains(t, report, "- **Visualization:** 📋 Text/Tables Only")
	assert.Contains(t, report, "- **Calculator:** ✅ Available")
	assert.True(t, strings.HasSuffix(report, "**Available Tools:** calculator, run_sql"))

	cards := statusCards(res.Components)
	require.Len(t, cards, 3)
	assert.Equal(t, components.StatusSuccess, cards[0].Status)
	assert.Equal(t, "Memory tools not configured - I won't remember successful patterns", cards[1].Description)
	assert.Equal(t, components.StatusInfo, cards[2].Status)

	guidance := last(texts(res.Components))
	assert.True(t, strings.HasPrefix(guidance, "## 💡 Suggested Improvements"))
}

func TestWorkflow_StarterUI(t *testing.T) {
	a := agentWithTools(t, "run_sql", "search_saved_correct_tool_uses")

	cs, err := DefaultWorkflow{}.StarterUI(context.Background(), a, analyst, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"text", "status_card", "status_card", "status_card", "button_group", "text"}, types(cs))
	assert.Equal(t, "Partial memory setup - both search and save tools recommended", statusCards(cs)[1].Description)

	group := cs[4].Rich.(*components.ButtonGroup)
	labels := make([]string, len(group.Buttons))
	for i, b := range group.Buttons {
		labels[i] = b.Label
	}
	assert.Equal(t, []string{"💡 Show Help", "🔍 Explore Tables", "📊 Sample Data"}, labels)
}

func TestWorkflow_StarterUICompleteSetup(t *testing.T) {
	a := agentWithTools(t, "run_sql", "search_saved_correct_tool_uses", "save_question_tool_args", "visualize_data")

	cs, err := DefaultWorkflow{WelcomeMessage: "Hi team"}.StarterUI(context.Background(), a, analyst, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"text", "status_card", "status_card", "status_card", "button_group"}, types(cs))
	assert.Equal(t, "Hi team", texts(cs)[0])
	assert.Len(t, cs[4].Rich.(*components.ButtonGroup).Buttons, 4)
}
