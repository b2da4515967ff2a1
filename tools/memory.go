package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/martinemde/vanna/components"
	"github.com/martinemde/vanna/memory"
	"github.com/martinemde/vanna/tool"
)

const (
	SaveQuestionToolArgsName = "save_question_tool_args"
	SearchToolUsesName       = "search_saved_correct_tool_uses"
	SaveTextMemoryName       = "save_text_memory"
)

var errNoMemory = errors.New("agent memory is not configured")

// SaveQuestionToolArgsArgs are the arguments of save_question_tool_args.
type SaveQuestionToolArgsArgs struct {
	Question string         `json:"question" jsonschema:"description=The original question that was asked" validate:"required"`
	ToolName string         `json:"tool_name" jsonschema:"description=The name of the tool that was used successfully" validate:"required"`
	Args     map[string]any `json:"args" jsonschema:"description=The arguments that were passed to the tool"`
}

// SearchToolUsesArgs are the arguments of search_saved_correct_tool_uses.
type SearchToolUsesArgs struct {
	Question            string   `json:"question" jsonschema:"description=The question to find similar tool usage patterns for" validate:"required"`
	Limit               *int     `json:"limit,omitempty" jsonschema:"description=Maximum number of results to return,default=10" validate:"omitempty,min=1"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty" jsonschema:"description=Minimum similarity score for results (0.0-1.0),default=0.7" validate:"omitempty,min=0,max=1"`
	ToolNameFilter      string   `json:"tool_name_filter,omitempty" jsonschema:"description=Filter results to specific tool name"`
}

// SaveTextMemoryArgs are the arguments of save_text_memory.
type SaveTextMemoryArgs struct {
	Content string `json:"content" jsonschema:"description=The domain knowledge or note to remember" validate:"required"`
}

// memoryFor prefers the memory the tool was built with, then the one on the
// request.
func memoryFor(fixed memory.AgentMemory, tctx *tool.Context) (memory.AgentMemory, error) {
	if fixed != nil {
		return fixed, nil
	}
	if tctx != nil && tctx.Memory != nil {
		return tctx.Memory, nil
	}
	return nil, errNoMemory
}

func statusBarResult(ok bool, forLLM, status, message, detail string) *tool.Result {
	ui := components.WithSimple(components.NewStatusBar(status, message, detail), components.SimpleText(forLLM))
	if ok {
		return tool.Success(forLLM, &ui)
	}
	res := tool.Failure(forLLM)
	res.Error = detail
	res.UiComponent = &ui
	return res
}

// NewSaveQuestionToolArgs builds save_question_tool_args. mem may be nil, in
// which case the memory on the tool context is used.
func NewSaveQuestionToolArgs(mem memory.AgentMemory) *tool.Typed[SaveQuestionToolArgsArgs] {
	return tool.New(SaveQuestionToolArgsName, "Save a successful question-tool-argument combination for future reference",
		func(ctx context.Context, tctx *tool.Context, args SaveQuestionToolArgsArgs) (*tool.Result, error) {
			m, err := memoryFor(mem, tctx)
			if err == nil {
				err = m.SaveToolUsage(ctx, args.Question, args.ToolName, args.Args, true, nil)
			}
			if err != nil {
				return statusBarResult(false, "Failed to save memory: "+err.Error(),
					components.StatusError, "Failed to save memory", err.Error()), nil
			}
			return statusBarResult(true, fmt.Sprintf("Successfully saved usage pattern for '%s' tool", args.ToolName),
				components.StatusSuccess, "Saved to memory", fmt.Sprintf("Saved pattern for '%s'", args.ToolName)), nil
		})
}

// NewSearchToolUses builds search_saved_correct_tool_uses.
func NewSearchToolUses(mem memory.AgentMemory) *tool.Typed[SearchToolUsesArgs] {
	return tool.New(SearchToolUsesName, "Search for similar tool usage patterns based on a question",
		func(ctx context.Context, tctx *tool.Context, args SearchToolUsesArgs) (*tool.Result, error) {
			opts := memory.SearchOptions{ToolName: args.ToolNameFilter}
			if args.Limit != nil {
				opts.Limit = *args.Limit
			}
			if args.SimilarityThreshold != nil {
				opts.Threshold = *args.SimilarityThreshold
			}

			m, err := memoryFor(mem, tctx)
			var results []memory.ToolMemorySearchResult
			if err == nil {
				results, err = m.SearchSimilarUsage(ctx, args.Question, opts)
			}
			if err != nil {
				return statusBarResult(false, "Failed to search memories: "+err.Error(),
					components.StatusError, "Failed to search memory", err.Error()), nil
			}

			if len(results) == 0 {
				return statusBarResult(true, "No similar tool usage patterns found for this question.",
					components.StatusIdle, "No similar patterns found", "Searched agent memory"), nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Found %d similar tool usage pattern(s):\n\n", len(results))
			for i, r := range results {
				argsJSON, _ := json.Marshal(r.Memory.Args)
				fmt.Fprintf(&b, "%d. %s (similarity: %.2f)\n", i+1, r.Memory.ToolName, r.Score)
				fmt.Fprintf(&b, "   Question: %s\n", r.Memory.Question)
				fmt.Fprintf(&b, "   Args: %s\n\n", argsJSON)
			}
			text := strings.TrimSpace(b.String())
			tctx.Log().Debug("agent memory search", "question", args.Question, "results", len(results))

			res := statusBarResult(true, text, components.StatusSuccess,
				fmt.Sprintf("Found %d similar pattern(s)", len(results)), "Retrieved from agent memory")
			res.Metadata["result_count"] = len(results)
			return res, nil
		})
}

// NewSaveTextMemory builds save_text_memory.
func NewSaveTextMemory(mem memory.AgentMemory) *tool.Typed[SaveTextMemoryArgs] {
	return tool.New(SaveTextMemoryName, "Save domain knowledge or context that will help answer future questions",
		func(ctx context.Context, tctx *tool.Context, args SaveTextMemoryArgs) (*tool.Result, error) {
			m, err := memoryFor(mem, tctx)
			var saved memory.TextMemory
			if err == nil {
				saved, err = m.SaveTextMemory(ctx, args.Content)
			}
			if err != nil {
				return statusBarResult(false, "Failed to save memory: "+err.Error(),
					components.StatusError, "Failed to save memory", err.Error()), nil
			}
			res := statusBarResult(true, "Successfully saved text memory", components.StatusSuccess,
				"Saved to memory", "Saved text memory "+saved.ID)
			res.Metadata["memory_id"] = saved.ID
			return res, nil
		})
}
