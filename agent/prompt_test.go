package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/vanna/llm"
	"github.com/martinemde/vanna/memory"
	"github.com/martinemde/vanna/tool"
)

func fixedNow() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) }

func schemas(names ...string) []tool.Schema {
	out := make([]tool.Schema, len(names))
	for i, n := range names {
		out[i] = tool.Schema{Name: n}
	}
	return out
}

func TestDefaultPromptBuilder(t *testing.T) {
	b := DefaultPromptBuilder{Now: fixedNow}

	prompt, err := b.BuildSystemPrompt(context.Background(), analyst, schemas("run_sql", "read_file"))
	require.NoError(t, err)
	assert.Contains(t, prompt, "Today's date is 2025-03-14.")
	assert.Contains(t, prompt, "You have access to the following tools: run_sql, read_file")
	assert.NotContains(t, prompt, "IMPORTANT WORKFLOW REQUIREMENTS")

	prompt, err = b.BuildSystemPrompt(context.Background(), analyst, schemas("run_sql", "search_saved_correct_tool_uses", "save_question_tool_args"))
	require.NoError(t, err)
	assert.Contains(t, prompt, "IMPORTANT WORKFLOW REQUIREMENTS:")
	assert.Contains(t, prompt, "1. BEFORE executing any tool")
	assert.Contains(t, prompt, "3. AFTER successfully executing a tool")
	assert.NotContains(t, prompt, "\n\n\n")
}

func TestDefaultPromptBuilder_BasePrompt(t *testing.T) {
	prompt, err := DefaultPromptBuilder{BasePrompt: "Be brief."}.BuildSystemPrompt(context.Background(), analyst, schemas("run_sql"))
	require.NoError(t, err)
	assert.Equal(t, "Be brief.", prompt)
}

func TestMemoryEnhancer(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewDemoMemory(100)
	_, err := mem.SaveTextMemory(ctx, "revenue is stored in cents")
	require.NoError(t, err)

	e := MemoryEnhancer{Memory: mem}
	prompt, err := e.EnhanceSystemPrompt(ctx, "base", "revenue is stored in cents", analyst)
	require.NoError(t, err)
	assert.Contains(t, prompt, "base\n\n## Relevant Context from Memory")
	assert.Contains(t, prompt, "• revenue is stored in cents")

	prompt, err = MemoryEnhancer{}.EnhanceSystemPrompt(ctx, "base", "anything", analyst)
	require.NoError(t, err)
	assert.Equal(t, "base", prompt)

	msgs := []llm.Message{{Role: llm.RoleUser, Content: "hi"}}
	out, err := e.EnhanceUserMessages(ctx, msgs, analyst)
	require.NoError(t, err)
	assert.Equal(t, msgs, out)
}

func TestAgent_UsesMemoryEnhancer(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewDemoMemory(100)
	_, err := mem.SaveTextMemory(ctx, "fiscal year starts in april")
	require.NoError(t, err)
	h := newHarness(t, analyst, []llm.ScriptStep{llm.Reply("ok")}, WithMemory(mem))

	h.send("fiscal year starts in april", "c")

	assert.Contains(t, h.svc.Requests()[0].SystemPrompt, "• fiscal year starts in april")
}
