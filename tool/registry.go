package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/martinemde/vanna/audit"
	"github.com/martinemde/vanna/user"
)

type entry struct {
	tool   Tool
	groups []string
}

// Registry holds the tools available to the agent and dispatches calls to
// them after checking the caller's groups.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]*entry
	auditLog audit.Logger
	auditCfg audit.Config
	timeout  time.Duration
	logger   *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithAudit enables audit logging according to cfg.
func WithAudit(logger audit.Logger, cfg audit.Config) RegistryOption {
	return func(r *Registry) {
		r.auditLog = logger
		r.auditCfg = cfg
	}
}

// SetAudit enables audit logging on a registry built without WithAudit.
// Call it before the registry is shared.
func (r *Registry) SetAudit(logger audit.Logger, cfg audit.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auditLog = logger
	r.auditCfg = cfg
}

// WithTimeout bounds every tool invocation.
func WithTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.timeout = d
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:  make(map[string]*entry),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. Groups given here override the tool's own
// AccessGroups. An empty group list makes the tool available to everyone.
func (r *Registry) Register(t Tool, accessGroups ...string) error {
	groups := accessGroups
	if len(groups) == 0 {
		if g, ok := t.(AccessGrouped); ok {
			groups = g.AccessGroups()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool '%s' already registered: %w", t.Name(), ErrDuplicateTool)
	}
	r.tools[t.Name()] = &entry{tool: t, groups: slices.Clone(groups)}
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(t Tool, accessGroups ...string) {
	if err := r.Register(t, accessGroups...); err != nil {
		panic(err)
	}
}

// Unregister removes a tool. It reports whether the tool was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tools[name]
	delete(r.tools, name)
	return ok
}

// Get returns a registered tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return e.tool, true
}

// Names returns all tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Schemas returns the schemas of the tools u may call, sorted by name.
func (r *Registry) Schemas(ctx context.Context, u *user.User) []Schema {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.tools))
	for _, e := range r.tools {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].tool.Name() < entries[j].tool.Name() })

	schemas := make([]Schema, 0, len(entries))
	for _, e := range entries {
		if !r.checkAccess(ctx, e, u, audit.Scope{}) {
			continue
		}
		schemas = append(schemas, Schema{
			Name:         e.tool.Name(),
			Description:  e.tool.Description(),
			Parameters:   e.tool.Parameters(),
			AccessGroups: slices.Clone(e.groups),
		})
	}
	return schemas
}

func (r *Registry) checkAccess(ctx context.Context, e *entry, u *user.User, scope audit.Scope) bool {
	granted := u.InAnyGroup(e.groups)
	if r.auditLog != nil && r.auditCfg.Enabled && r.auditCfg.LogToolAccessChecks {
		r.logAudit(ctx, audit.ToolAccessCheck(u, scope, e.tool.Name(), granted, e.groups))
	}
	return granted
}

// Execute runs call on behalf of tctx.User. Failures never surface as Go
// errors; they come back as an unsuccessful Result whose text explains what
// went wrong.
func (r *Registry) Execute(ctx context.Context, call Call, tctx *Context) *Result {
	r.mu.RLock()
	e, ok := r.tools[call.Name]
	r.mu.RUnlock()

	if !ok {
		return Failure(fmt.Sprintf("Tool '%s' not found", call.Name))
	}

	var u *user.User
	scope := audit.Scope{}
	if tctx != nil {
		u = tctx.User
		scope = audit.Scope{ConversationID: tctx.ConversationID, RequestID: tctx.RequestID, RemoteAddr: tctx.RemoteAddr}
	}

	if !r.checkAccess(ctx, e, u, scope) {
		return Failure(fmt.Sprintf("Insufficient group access for tool '%s'", call.Name))
	}

	if r.auditLog != nil && r.auditCfg.Enabled && r.auditCfg.LogToolInvocations {
		var features []string
		if tctx != nil {
			features, _ = tctx.Metadata["ui_features_available"].([]string)
		}
		r.logAudit(ctx, audit.ToolInvocation(u, scope, call.ID, call.Name, call.Arguments, r.auditCfg.SanitizeParameters, features))
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}

	runCtx := ctx
	if u != nil {
		runCtx = user.NewContext(runCtx, u)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := r.invoke(runCtx, e.tool, tctx, args)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	switch {
	case err != nil:
		var argErr *ArgumentError
		if errors.As(err, &argErr) {
			result = Failure("Invalid arguments: " + argErr.Error())
		} else {
			result = Failure("Execution failed: " + err.Error())
		}
	case result == nil:
		result = Failure("Execution failed: tool returned no result")
	}
	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}
	result.Metadata["execution_time_ms"] = elapsed

	if r.auditLog != nil && r.auditCfg.Enabled && r.auditCfg.LogToolResults {
		info := audit.ResultInfo{
			Success:         result.Success,
			Error:           result.Error,
			ExecutionTimeMs: elapsed,
			ResultSizeBytes: len(result.ResultForLLM),
		}
		if result.UiComponent != nil {
			info.UiComponentType = result.UiComponent.Type()
		}
		r.logAudit(ctx, audit.ToolResult(u, scope, call.ID, call.Name, info))
	}
	return result
}

func (r *Registry) invoke(ctx context.Context, t Tool, tctx *Context, args map[string]any) (result *Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return t.Invoke(ctx, tctx, args)
}

// ValidateArguments checks call arguments against the tool without
// executing it. Only Typed tools can be validated ahead of time; for other
// tools it only checks that the tool exists.
func (r *Registry) ValidateArguments(call Call) error {
	t, ok := r.Get(call.Name)
	if !ok {
		return fmt.Errorf("tool '%s': %w", call.Name, ErrToolNotFound)
	}
	if v, ok := t.(interface{ Validate(map[string]any) error }); ok {
		return v.Validate(call.Arguments)
	}
	return nil
}

func (r *Registry) logAudit(ctx context.Context, e audit.Event) {
	if err := r.auditLog.LogEvent(ctx, e); err != nil {
		r.logger.WarnContext(ctx, "audit log failed", "event_type", e.EventType, "error", err)
	}
}
