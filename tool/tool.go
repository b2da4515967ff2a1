// Package tool defines the callable capabilities the LLM may invoke and the
// registry that dispatches them under group-based access control.
package tool

import (
	"context"
	"errors"
	"log/slog"

	"github.com/martinemde/vanna/components"
	"github.com/martinemde/vanna/memory"
	"github.com/martinemde/vanna/observability"
	"github.com/martinemde/vanna/user"
)

var (
	ErrToolNotFound  = errors.New("tool not found")
	ErrAccessDenied  = errors.New("insufficient group access")
	ErrDuplicateTool = errors.New("tool already registered")
)

// Call is a model-initiated tool invocation.
type Call struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Context is what a tool sees about the request that invoked it.
type Context struct {
	User           *user.User
	ConversationID string
	RequestID      string
	RemoteAddr     string
	Metadata       map[string]any
	Observability  observability.Provider
	Memory         memory.AgentMemory
	Logger         *slog.Logger
}

// Log returns the context logger, falling back to slog.Default.
func (c *Context) Log() *slog.Logger {
	if c == nil || c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Result is the outcome of a tool call. ResultForLLM is folded back into the
// conversation. UiComponent, when set, is shown to the user.
type Result struct {
	Success      bool                    `json:"success"`
	ResultForLLM string                  `json:"result_for_llm"`
	UiComponent  *components.UiComponent `json:"ui_component,omitempty"`
	Error        string                  `json:"error,omitempty"`
	Metadata     map[string]any          `json:"metadata,omitempty"`
}

// Failure builds an unsuccessful Result whose LLM text and error match.
func Failure(msg string) *Result {
	return &Result{Success: false, ResultForLLM: msg, Error: msg, Metadata: map[string]any{}}
}

// Success builds a successful Result.
func Success(forLLM string, ui *components.UiComponent) *Result {
	return &Result{Success: true, ResultForLLM: forLLM, UiComponent: ui, Metadata: map[string]any{}}
}

// Schema is the LLM-facing description of a tool.
type Schema struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Parameters   map[string]any `json:"parameters"`
	AccessGroups []string       `json:"access_groups,omitempty"`
}

// Tool is a callable capability.
type Tool interface {
	Name() string
	Description() string
	// Parameters is the JSON schema of the arguments object.
	Parameters() map[string]any
	// Invoke runs the tool. Malformed arguments are reported as *ArgumentError.
	Invoke(ctx context.Context, tctx *Context, args map[string]any) (*Result, error)
}

// AccessGrouped is implemented by tools that declare their own access groups.
type AccessGrouped interface {
	AccessGroups() []string
}

// ArgumentError reports arguments that failed decoding or validation.
type ArgumentError struct {
	Tool  string
	Cause error
}

func (e *ArgumentError) Error() string {
	return e.Cause.Error()
}

func (e *ArgumentError) Unwrap() error { return e.Cause }
