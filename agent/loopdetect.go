package agent

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/martinemde/vanna/storage"
)

const loopWarning = "Loop detected: the last %d tool calls follow a repeating pattern. Try a different approach."

// callSignature is the tool name plus a short hash of its arguments.
// encoding/json sorts map keys, so equal arguments hash equally.
func callSignature(name string, args map[string]any) string {
	raw, err := json.Marshal(args)
	if err != nil {
		raw = []byte(fmt.Sprint(args))
	}
	h := sha256.Sum256(raw)
	return fmt.Sprintf("%s:%x", name, h[:8])
}

// recentCallSignatures returns up to count signatures of the newest tool
// calls in history, oldest first.
func recentCallSignatures(history []storage.Message, count int) []string {
	var sigs []string
	for i := len(history) - 1; i >= 0 && len(sigs) < count; i-- {
		calls := history[i].ToolCalls
		for j := len(calls) - 1; j >= 0 && len(sigs) < count; j-- {
			sigs = append(sigs, callSignature(calls[j].Name, calls[j].Arguments))
		}
	}
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}
	return sigs
}

// DetectLoop reports whether the last window tool calls in history repeat a
// pattern of length 1, 2 or 3.
func DetectLoop(history []storage.Message, window int) bool {
	if window <= 1 {
		return false
	}
	sigs := recentCallSignatures(history, window)
	if len(sigs) < window {
		return false
	}
	for patternLen := 1; patternLen <= 3; patternLen++ {
		if window%patternLen != 0 {
			continue
		}
		match := true
		for i := patternLen; i < window && match; i++ {
			if sigs[i] != sigs[i%patternLen] {
				match = false
			}
		}
		if match {
			return true
		}
	}
	return false
}
