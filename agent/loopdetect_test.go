package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/martinemde/vanna/storage"
	"github.com/martinemde/vanna/tool"
)

func historyOf(calls ...tool.Call) []storage.Message {
	var out []storage.Message
	for _, c := range calls {
		out = append(out,
			storage.Message{Role: "assistant", ToolCalls: []tool.Call{c}},
			storage.Message{Role: "tool", ToolCallID: c.ID, Content: "ok"},
		)
	}
	return out
}

func call(name, arg string) tool.Call {
	return tool.Call{Name: name, Arguments: map[string]any{"sql": arg}}
}

func TestDetectLoop(t *testing.T) {
	a, b, c := call("run_sql", "a"), call("run_sql", "b"), call("read_file", "c")

	tests := []struct {
		name    string
		history []storage.Message
		window  int
		want    bool
	}{
		{"too few calls", historyOf(a, a), 4, false},
		{"same call repeated", historyOf(a, a, a, a), 4, true},
		{"alternating pair", historyOf(a, b, a, b), 4, true},
		{"cycle of three", historyOf(a, b, c, a, b, c), 6, true},
		{"no pattern", historyOf(a, b, c, b), 4, false},
		{"only the window counts", historyOf(c, b, a, a, a, a), 4, true},
		{"window of one never loops", historyOf(a, a), 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLoop(tt.history, tt.window))
		})
	}
}

func TestCallSignature_StableAcrossMapOrder(t *testing.T) {
	x := callSignature("run_sql", map[string]any{"a": 1, "b": 2})
	y := callSignature("run_sql", map[string]any{"b": 2, "a": 1})
	assert.Equal(t, x, y)
	assert.NotEqual(t, x, callSignature("read_file", map[string]any{"a": 1, "b": 2}))
}

func TestRecentCallSignatures_MultipleCallsPerMessage(t *testing.T) {
	history := []storage.Message{
		{Role: "assistant", ToolCalls: []tool.Call{call("a", "1"), call("b", "2")}},
		{Role: "assistant", ToolCalls: []tool.Call{call("c", "3")}},
	}
	sigs := recentCallSignatures(history, 2)
	assert.Len(t, sigs, 2)
	assert.Equal(t, callSignature("b", map[string]any{"sql": "2"}), sigs[0])
	assert.Equal(t, callSignature("c", map[string]any{"sql": "3"}), sigs[1])
}
