package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/martinemde/vanna/llm"
	"github.com/martinemde/vanna/memory"
	"github.com/martinemde/vanna/user"
)

const memoryContextLimit = 5

// MemoryEnhancer appends text memories related to the user's message to
// the system prompt. Search failures leave the prompt unchanged.
type MemoryEnhancer struct {
	Memory memory.AgentMemory
	Logger *slog.Logger
}

func (m MemoryEnhancer) EnhanceSystemPrompt(ctx context.Context, systemPrompt, userMessage string, _ *user.User) (string, error) {
	if m.Memory == nil {
		return systemPrompt, nil
	}
	results, err := m.Memory.SearchTextMemories(ctx, userMessage, memoryContextLimit, 0)
	if err != nil {
		logger := m.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("failed to enhance system prompt with memories", "error", err)
		return systemPrompt, nil
	}
	if len(results) == 0 {
		return systemPrompt, nil
	}

	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n## Relevant Context from Memory\n\n")
	b.WriteString("The following domain knowledge and context from prior interactions may be relevant:\n\n")
	for _, r := range results {
		b.WriteString("• " + r.Memory.Content + "\n")
	}
	return b.String(), nil
}

func (MemoryEnhancer) EnhanceUserMessages(_ context.Context, messages []llm.Message, _ *user.User) ([]llm.Message, error) {
	return messages, nil
}
