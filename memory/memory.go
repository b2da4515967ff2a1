// Package memory stores successful tool uses and free-form notes so the
// agent can recall how similar questions were answered before.
package memory

import (
	"context"
	"time"
)

// ToolMemory is one remembered tool invocation.
type ToolMemory struct {
	ID        string         `json:"memory_id"`
	Question  string         `json:"question"`
	ToolName  string         `json:"tool_name"`
	Args      map[string]any `json:"args"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TextMemory is a free-form note.
type TextMemory struct {
	ID        string    `json:"memory_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolMemorySearchResult is a ranked ToolMemory match. Rank starts at 1.
type ToolMemorySearchResult struct {
	Memory ToolMemory `json:"memory"`
	Score  float64    `json:"similarity_score"`
	Rank   int        `json:"rank"`
}

// TextMemorySearchResult is a ranked TextMemory match. Rank starts at 1.
type TextMemorySearchResult struct {
	Memory TextMemory `json:"memory"`
	Score  float64    `json:"similarity_score"`
	Rank   int        `json:"rank"`
}

// Stats summarizes stored tool memories.
type Stats struct {
	TotalMemories   int            `json:"total_memories"`
	UniqueTools     int            `json:"unique_tools"`
	UniqueQuestions int            `json:"unique_questions"`
	SuccessRate     float64        `json:"success_rate"`
	MostUsedTools   map[string]int `json:"most_used_tools"`
}

// Search defaults.
const (
	DefaultLimit     = 10
	DefaultThreshold = 0.7
)

// SearchOptions narrows SearchSimilarUsage.
type SearchOptions struct {
	Limit     int
	Threshold float64
	ToolName  string
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	return o
}

// AgentMemory is the storage contract used by the memory tools and the
// context enhancer.
type AgentMemory interface {
	SaveToolUsage(ctx context.Context, question, toolName string, args map[string]any, success bool, metadata map[string]any) error
	SaveTextMemory(ctx context.Context, content string) (TextMemory, error)
	SearchSimilarUsage(ctx context.Context, question string, opts SearchOptions) ([]ToolMemorySearchResult, error)
	SearchTextMemories(ctx context.Context, query string, limit int, threshold float64) ([]TextMemorySearchResult, error)
	RecentMemories(ctx context.Context, limit int) ([]ToolMemory, error)
	RecentTextMemories(ctx context.Context, limit int) ([]TextMemory, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	DeleteTextMemory(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context, toolName string, before time.Time) (int, error)
	Stats(ctx context.Context, toolName string) (Stats, error)
}
