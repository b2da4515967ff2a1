package tools

import (
	"fmt"
	"strings"
)

// TruncationMode specifies which part of an oversized output is kept.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

const defaultCharLimit = 30000

// Character limits per tool name.
var DefaultCharLimits = map[string]int{
	ReadFileName:    50000,
	RunBashName:     30000,
	SearchFilesName: 20000,
	ListFilesName:   20000,
	EditFileName:    10000,
	WriteFileName:   1000,
}

var defaultModes = map[string]TruncationMode{
	ReadFileName:    TruncateHeadTail,
	RunBashName:     TruncateHeadTail,
	SearchFilesName: TruncateTail,
	ListFilesName:   TruncateTail,
	EditFileName:    TruncateTail,
	WriteFileName:   TruncateTail,
}

// Line limits per tool name, applied after the character limit.
var DefaultLineLimits = map[string]int{
	RunBashName:     256,
	SearchFilesName: 200,
	ListFilesName:   500,
}

// TruncateOutput cuts output down to maxChars, leaving a marker that says
// how much was dropped.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}
	removed := len(output) - maxChars

	if mode == TruncateTail {
		return fmt.Sprintf("[WARNING: Tool output was truncated. First %d characters were removed. "+
			"Re-run the tool with more targeted parameters to see them.]\n\n", removed) +
			output[len(output)-maxChars:]
	}

	half := maxChars / 2
	return output[:half] +
		fmt.Sprintf("\n\n[WARNING: Tool output was truncated. %d characters were removed from the middle. "+
			"If you need to see specific parts, re-run the tool with more targeted parameters.]\n\n", removed) +
		output[len(output)-half:]
}

// TruncateLines keeps the first and last lines of output, maxLines in total.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if maxLines <= 0 || len(lines) <= maxLines {
		return output
	}

	head := maxLines / 2
	tail := maxLines - head
	omitted := len(lines) - head - tail

	return strings.Join(lines[:head], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tail:], "\n")
}

// TruncateToolOutput applies the character limit and then the line limit
// configured for toolName.
func TruncateToolOutput(toolName, output string) string {
	maxChars, ok := DefaultCharLimits[toolName]
	if !ok {
		maxChars = defaultCharLimit
	}
	mode, ok := defaultModes[toolName]
	if !ok {
		mode = TruncateHeadTail
	}
	out := TruncateOutput(output, maxChars, mode)
	if maxLines := DefaultLineLimits[toolName]; maxLines > 0 {
		out = TruncateLines(out, maxLines)
	}
	return out
}
