package agent

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/martinemde/vanna/tool"
	"github.com/martinemde/vanna/tools"
	"github.com/martinemde/vanna/user"
)

// DefaultPromptBuilder builds the analyst system prompt. When the memory
// tools are available it adds instructions to search before and save after
// tool use.
type DefaultPromptBuilder struct {
	// BasePrompt, when set, is returned unchanged.
	BasePrompt string
	// Now defaults to time.Now.
	Now func() time.Time
}

func (b DefaultPromptBuilder) BuildSystemPrompt(_ context.Context, _ *user.User, schemas []tool.Schema) (string, error) {
	if b.BasePrompt != "" {
		return b.BasePrompt, nil
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	names := make([]string, len(schemas))
	for i, s := range schemas {
		names[i] = s.Name
	}
	hasSearch := slices.Contains(names, tools.SearchToolUsesName)
	hasSave := slices.Contains(names, tools.SaveQuestionToolArgsName)

	parts := []string{
		"You are Vanna, an AI data analyst assistant created to help users with data analysis tasks. Today's date is " + now().Format("2006-01-02") + ".",
		"",
		"Response Guidelines:",
		"- Any summary of what you did or observations should be the final step.",
		"- Use the available tools to help the user accomplish their goals.",
		"- When you execute a query, that raw result is shown to the user outside of your response so YOU DO NOT need to include it in your response. Focus on summarizing and interpreting the results.",
	}
	if len(names) > 0 {
		parts = append(parts, "\nYou have access to the following tools: "+strings.Join(names, ", "))
	}
	if !hasSearch && !hasSave {
		return strings.Join(parts, "\n"), nil
	}

	// the memory block is rendered without blank separator lines
	parts = slices.DeleteFunc(parts, func(s string) bool { return s == "" })
	rule := strings.Repeat("=", 60)
	parts = append(parts, "\n"+rule, "IMPORTANT WORKFLOW REQUIREMENTS:", rule)
	if hasSearch {
		parts = append(parts,
			"1. BEFORE executing any tool (run_sql, visualize_data, or calculator), you MUST first call search_saved_correct_tool_uses with the user's question to check if there are existing successful patterns for similar questions.",
			"2. Review the search results (if any) to inform your approach before proceeding with other tool calls.",
		)
	}
	if hasSave {
		parts = append(parts,
			"3. AFTER successfully executing a tool that produces correct and useful results, you MUST call save_question_tool_args to save the successful pattern for future use.",
		)
	}
	parts = append(parts, "Example workflow:", "• User asks a question")
	if hasSearch {
		parts = append(parts, `• First: Call search_saved_correct_tool_uses(question="user's question")`)
	}
	parts = append(parts, "• Then: Execute the appropriate tool(s) based on search results and the question")
	if hasSave {
		parts = append(parts, `• Finally: If successful, call save_question_tool_args(question="user's question", tool_name="tool_used", args={the args you used})`)
	}
	if hasSearch {
		parts = append(parts, "Do NOT skip the search step, even if you think you know how to answer. Do NOT forget to save successful executions.")
	}
	parts = append(parts,
		"The only exceptions to searching first are:",
		`• When the user is explicitly asking about the tools themselves (like "list the tools")`,
		"• When the user is testing or asking you to demonstrate the save/search functionality itself",
	)
	return strings.Join(parts, "\n"), nil
}
