package tools

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateOutput(t *testing.T) {
	assert.Equal(t, "short", TruncateOutput("short", 10, TruncateHeadTail))

	out := TruncateOutput(strings.Repeat("a", 10)+strings.Repeat("b", 10), 10, TruncateHeadTail)
	assert.True(t, strings.HasPrefix(out, "aaaaa\n\n[WARNING: Tool output was truncated. 10 characters were removed from the middle."))
	assert.True(t, strings.HasSuffix(out, "]\n\nbbbbb"))

	out = TruncateOutput(strings.Repeat("a", 10)+strings.Repeat("b", 10), 10, TruncateTail)
	assert.True(t, strings.HasPrefix(out, "[WARNING: Tool output was truncated. First 10 characters were removed."))
	assert.True(t, strings.HasSuffix(out, "\n\nbbbbbbbbbb"))
}

func TestTruncateLines(t *testing.T) {
	in := "1\n2\n3\n4\n5\n6"

	assert.Equal(t, in, TruncateLines(in, 6))
	assert.Equal(t, "1\n2\n[... 2 lines omitted ...]\n5\n6", TruncateLines(in, 4))
}

func TestTruncateToolOutput_UsesPerToolLimits(t *testing.T) {
	lines := make([]string, 600)
	for i := range lines {
		lines[i] = "f"
	}
	out := TruncateToolOutput(ListFilesName, strings.Join(lines, "\n"))
	assert.Contains(t, out, "[... 100 lines omitted ...]")

	long := strings.Repeat("x", 40000)
	assert.Equal(t, long, TruncateToolOutput(ReadFileName, long))
	assert.Less(t, len(TruncateToolOutput(RunBashName, long)), 40000)
}
