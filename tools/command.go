package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/martinemde/vanna/components"
	"github.com/martinemde/vanna/filesystem"
	"github.com/martinemde/vanna/tool"
)

const (
	RunBashName = "run_bash"

	defaultCommandTimeout = 60 * time.Second
	maxStreamChars        = 4000
)

type RunBashArgs struct {
	Command        string   `json:"command" jsonschema:"description=Shell command to run in the workspace" validate:"required"`
	TimeoutSeconds *float64 `json:"timeout_seconds,omitempty" jsonschema:"description=Optional timeout for the command in seconds,minimum=0" validate:"omitempty,min=0"`
}

// NewRunBash builds run_bash. It is restricted to the admin group unless
// other groups are given.
func NewRunBash(fs filesystem.FileSystem, groups ...string) *tool.Typed[RunBashArgs] {
	if len(groups) == 0 {
		groups = []string{"admin"}
	}
	return tool.New(RunBashName, "Run a shell command in the workspace", func(ctx context.Context, tctx *tool.Context, args RunBashArgs) (*tool.Result, error) {
		timeout := defaultCommandTimeout
		if args.TimeoutSeconds != nil && *args.TimeoutSeconds > 0 {
			timeout = time.Duration(*args.TimeoutSeconds * float64(time.Second))
		}

		result, err := fs.RunBash(ctx, args.Command, timeout)
		if err != nil {
			msg := "Error running command: " + err.Error()
			res := tool.Failure(msg)
			res.UiComponent = notify(components.StatusError, msg)
			return res, nil
		}
		if result.TimedOut {
			msg := fmt.Sprintf("Command timed out after %s", timeout)
			res := tool.Failure(msg)
			res.UiComponent = notify(components.StatusError, msg)
			return res, nil
		}

		tctx.Log().Debug("command finished", "command", args.Command, "exit_code", result.ExitCode)
		summary := fmt.Sprintf("Executed command (exit code %d).", result.ExitCode)
		return commandResult(summary, args.Command, result), nil
	}).WithAccessGroups(groups...)
}

func commandResult(summary, command string, result *filesystem.CommandResult) *tool.Result {
	stdout := strings.TrimSpace(result.Stdout)
	stderr := strings.TrimSpace(result.Stderr)

	blocks := []string{"$ " + command}
	if stdout != "" {
		blocks = append(blocks, "STDOUT:\n"+clip(stdout, maxStreamChars))
	}
	if stderr != "" {
		blocks = append(blocks, "STDERR:\n"+clip(stderr, maxStreamChars))
	}
	if stdout == "" && stderr == "" {
		blocks = append(blocks, "(no output)")
	}
	content := strings.Join(blocks, "\n\n")

	success := result.ExitCode == 0
	status := components.StatusSuccess
	if !success {
		status = components.StatusError
	}
	ui := components.WithSimple(components.NewCard("Command Result", content, status, false), components.SimpleText(summary))

	res := &tool.Result{
		Success:      success,
		ResultForLLM: TruncateToolOutput(RunBashName, summary+"\n\n"+content),
		UiComponent:  &ui,
		Metadata:     map[string]any{"exit_code": result.ExitCode},
	}
	if !success {
		res.Error = content
	}
	return res
}

func clip(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
