package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxItems bounds DemoMemory when no limit is given.
const DefaultMaxItems = 10_000

// DemoMemory keeps memories in process. Search is a linear scan scored with
// Similarity. When more than maxItems tool memories are stored the oldest
// are evicted first.
type DemoMemory struct {
	mu       sync.RWMutex
	tools    []ToolMemory
	texts    []TextMemory
	maxItems int
	now      func() time.Time
}

// NewDemoMemory returns an empty DemoMemory. maxItems <= 0 uses
// DefaultMaxItems.
func NewDemoMemory(maxItems int) *DemoMemory {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &DemoMemory{maxItems: maxItems, now: time.Now}
}

var _ AgentMemory = (*DemoMemory)(nil)

func (d *DemoMemory) SaveToolUsage(_ context.Context, question, toolName string, args map[string]any, success bool, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	m := ToolMemory{
		ID:        uuid.NewString(),
		Question:  question,
		ToolName:  toolName,
		Args:      args,
		Timestamp: d.now(),
		Success:   success,
		Metadata:  metadata,
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.tools = append(d.tools, m)
	if overflow := len(d.tools) - d.maxItems; overflow > 0 {
		d.tools = slices.Delete(d.tools, 0, overflow)
	}
	return nil
}

func (d *DemoMemory) SaveTextMemory(_ context.Context, content string) (TextMemory, error) {
	m := TextMemory{ID: uuid.NewString(), Content: content, Timestamp: d.now()}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts = append(d.texts, m)
	if overflow := len(d.texts) - d.maxItems; overflow > 0 {
		d.texts = slices.Delete(d.texts, 0, overflow)
	}
	return m, nil
}

func (d *DemoMemory) SearchSimilarUsage(_ context.Context, question string, opts SearchOptions) ([]ToolMemorySearchResult, error) {
	opts = opts.withDefaults()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []ToolMemorySearchResult
	for _, m := range d.tools {
		if !m.Success || (opts.ToolName != "" && m.ToolName != opts.ToolName) {
			continue
		}
		score := Similarity(question, m.Question)
		if score >= opts.Threshold {
			out = append(out, ToolMemorySearchResult{Memory: m, Score: score})
		}
	}
	slices.SortStableFunc(out, func(a, b ToolMemorySearchResult) int { return cmp.Compare(b.Score, a.Score) })
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (d *DemoMemory) SearchTextMemories(_ context.Context, query string, limit int, threshold float64) ([]TextMemorySearchResult, error) {
	opts := SearchOptions{Limit: limit, Threshold: threshold}.withDefaults()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []TextMemorySearchResult
	for _, m := range d.texts {
		score := Similarity(query, m.Content)
		if score >= opts.Threshold {
			out = append(out, TextMemorySearchResult{Memory: m, Score: score})
		}
	}
	slices.SortStableFunc(out, func(a, b TextMemorySearchResult) int { return cmp.Compare(b.Score, a.Score) })
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (d *DemoMemory) RecentMemories(_ context.Context, limit int) ([]ToolMemory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return newestFirst(d.tools, limit), nil
}

func (d *DemoMemory) RecentTextMemories(_ context.Context, limit int) ([]TextMemory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return newestFirst(d.texts, limit), nil
}

func newestFirst[T any](items []T, limit int) []T {
	if limit <= 0 {
		limit = DefaultLimit
	}
	n := min(limit, len(items))
	out := make([]T, 0, n)
	for i := len(items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, items[i])
	}
	return out
}

func (d *DemoMemory) DeleteByID(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := slices.IndexFunc(d.tools, func(m ToolMemory) bool { return m.ID == id })
	if i < 0 {
		return false, nil
	}
	d.tools = slices.Delete(d.tools, i, i+1)
	return true, nil
}

func (d *DemoMemory) DeleteTextMemory(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := slices.IndexFunc(d.texts, func(m TextMemory) bool { return m.ID == id })
	if i < 0 {
		return false, nil
	}
	d.texts = slices.Delete(d.texts, i, i+1)
	return true, nil
}

// Clear deletes tool memories matching toolName (all tools when empty) that
// were saved before the given time (any time when zero). It returns the
// number deleted.
func (d *DemoMemory) Clear(_ context.Context, toolName string, before time.Time) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.tools)
	d.tools = slices.DeleteFunc(d.tools, func(m ToolMemory) bool {
		if toolName != "" && m.ToolName != toolName {
			return false
		}
		if !before.IsZero() && !m.Timestamp.Before(before) {
			return false
		}
		return true
	})
	return n - len(d.tools), nil
}

func (d *DemoMemory) Stats(_ context.Context, toolName string) (Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := Stats{MostUsedTools: map[string]int{}}
	tools := map[string]struct{}{}
	questions := map[string]struct{}{}
	successes := 0
	for _, m := range d.tools {
		if toolName != "" && m.ToolName != toolName {
			continue
		}
		stats.TotalMemories++
		tools[m.ToolName] = struct{}{}
		questions[m.Question] = struct{}{}
		stats.MostUsedTools[m.ToolName]++
		if m.Success {
			successes++
		}
	}
	stats.UniqueTools = len(tools)
	stats.UniqueQuestions = len(questions)
	if stats.TotalMemories > 0 {
		stats.SuccessRate = float64(successes) / float64(stats.TotalMemories)
	}
	return stats, nil
}
