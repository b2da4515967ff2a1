// Package agent runs the conversation loop between a user, an LLM and the
// tool registry. A message flows through lifecycle hooks, an optional
// workflow short-circuit, and then alternates LLM calls with tool execution
// until the model answers without tools, the iteration limit is reached, or
// an error stops it. Progress is streamed as UI components.
package agent

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/martinemde/vanna/audit"
	"github.com/martinemde/vanna/components"
	"github.com/martinemde/vanna/llm"
	"github.com/martinemde/vanna/memory"
	"github.com/martinemde/vanna/observability"
	"github.com/martinemde/vanna/storage"
	"github.com/martinemde/vanna/tool"
	"github.com/martinemde/vanna/user"
)

// Agent orchestrates one LLM, a tool registry and a conversation store.
// It is safe for concurrent use as long as its collaborators are.
type Agent struct {
	llm      llm.Service
	registry *tool.Registry
	resolver user.Resolver
	store    storage.Store
	cfg      Config

	hooks       []LifecycleHook
	middlewares []LlmMiddleware
	recovery    ErrorRecoveryStrategy
	enrichers   []ContextEnricher
	enhancer    LlmContextEnhancer
	filters     []ConversationFilter
	prompt      SystemPromptBuilder
	workflow    WorkflowHandler
	memory      memory.AgentMemory
	obs         observability.Provider
	auditLog    audit.Logger
	logger      *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(a *Agent) { a.cfg = cfg }
}

// WithLifecycleHooks appends hooks. They run in the order given.
func WithLifecycleHooks(hooks ...LifecycleHook) Option {
	return func(a *Agent) { a.hooks = append(a.hooks, hooks...) }
}

// WithMiddlewares appends LLM middlewares.
func WithMiddlewares(mw ...LlmMiddleware) Option {
	return func(a *Agent) { a.middlewares = append(a.middlewares, mw...) }
}

// WithRecovery sets the error recovery strategy. The default is FailRecovery.
func WithRecovery(s ErrorRecoveryStrategy) Option {
	return func(a *Agent) { a.recovery = s }
}

// WithEnrichers appends tool context enrichers.
func WithEnrichers(e ...ContextEnricher) Option {
	return func(a *Agent) { a.enrichers = append(a.enrichers, e...) }
}

// WithEnhancer sets the LLM context enhancer. When unset and memory is
// configured, a MemoryEnhancer is used.
func WithEnhancer(e LlmContextEnhancer) Option {
	return func(a *Agent) { a.enhancer = e }
}

// WithFilters appends conversation filters.
func WithFilters(f ...ConversationFilter) Option {
	return func(a *Agent) { a.filters = append(a.filters, f...) }
}

// WithPromptBuilder replaces DefaultPromptBuilder.
func WithPromptBuilder(b SystemPromptBuilder) Option {
	return func(a *Agent) { a.prompt = b }
}

// WithWorkflow replaces DefaultWorkflow. Pass nil to disable workflows.
func WithWorkflow(w WorkflowHandler) Option {
	return func(a *Agent) { a.workflow = w }
}

// WithMemory makes m available to tools and the default enhancer.
func WithMemory(m memory.AgentMemory) Option {
	return func(a *Agent) { a.memory = m }
}

// WithObservability sets the span and metric sink.
func WithObservability(p observability.Provider) Option {
	return func(a *Agent) { a.obs = p }
}

// WithAuditLogger records audit events according to Config.Audit. The
// registry is switched to the same logger.
func WithAuditLogger(l audit.Logger) Option {
	return func(a *Agent) { a.auditLog = l }
}

// WithResolver replaces the user resolver given to New.
func WithResolver(r user.Resolver) Option {
	return func(a *Agent) { a.resolver = r }
}

// WithLogger sets the agent logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// New builds an Agent. The configuration is validated.
func New(service llm.Service, registry *tool.Registry, resolver user.Resolver, store storage.Store, opts ...Option) (*Agent, error) {
	switch {
	case service == nil:
		return nil, errors.New("agent: llm service is required")
	case registry == nil:
		return nil, errors.New("agent: tool registry is required")
	case resolver == nil:
		return nil, errors.New("agent: user resolver is required")
	case store == nil:
		return nil, errors.New("agent: conversation store is required")
	}

	a := &Agent{
		llm:      service,
		registry: registry,
		resolver: resolver,
		store:    store,
		cfg:      DefaultConfig(),
		recovery: FailRecovery{},
		prompt:   DefaultPromptBuilder{},
		workflow: DefaultWorkflow{},
		obs:      observability.Noop{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	if a.enhancer == nil && a.memory != nil {
		a.enhancer = MemoryEnhancer{Memory: a.memory, Logger: a.logger}
	}
	if a.auditLog != nil && a.cfg.Audit.Enabled {
		a.registry.SetAudit(a.auditLog, a.cfg.Audit)
	}
	return a, nil
}

// Clone returns a copy of a with opts applied. Hooks, middlewares,
// enrichers and filters passed to the clone are added to the copied ones.
func (a *Agent) Clone(opts ...Option) *Agent {
	c := *a
	c.hooks = slices.Clone(a.hooks)
	c.middlewares = slices.Clone(a.middlewares)
	c.enrichers = slices.Clone(a.enrichers)
	c.filters = slices.Clone(a.filters)
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

func (a *Agent) Registry() *tool.Registry              { return a.registry }
func (a *Agent) Config() Config                        { return a.cfg }
func (a *Agent) Memory() memory.AgentMemory            { return a.memory }
func (a *Agent) Store() storage.Store                  { return a.store }
func (a *Agent) LLM() llm.Service                      { return a.llm }
func (a *Agent) Observability() observability.Provider { return a.obs }

var errStopped = errors.New("consumer stopped reading")

// turn is the per-message state shared by the steps of SendMessage.
type turn struct {
	yield          func(components.UiComponent) bool
	user           *user.User
	conversationID string
	requestID      string
	remoteAddr     string
	toolCalls      int
}

func (t *turn) emit(cs ...components.UiComponent) error {
	for _, c := range cs {
		if !t.yield(c) {
			return errStopped
		}
	}
	return nil
}

func (t *turn) scope() audit.Scope {
	return audit.Scope{ConversationID: t.conversationID, RequestID: t.requestID, RemoteAddr: t.remoteAddr}
}

// SendMessage processes message for the user behind reqCtx and streams the
// resulting components. An empty conversationID starts a new conversation.
// Errors never escape: they end the stream with an error status card, an
// error status bar and a re-enabled chat input. Stopping the iteration
// early abandons the remaining work.
func (a *Agent) SendMessage(ctx context.Context, reqCtx *user.RequestContext, message, conversationID string) iter.Seq[components.UiComponent] {
	return func(yield func(components.UiComponent) bool) {
		if reqCtx == nil {
			reqCtx = &user.RequestContext{}
		}
		t := &turn{
			yield:          yield,
			conversationID: cmp.Or(conversationID, uuid.NewString()),
			requestID:      uuid.NewString(),
			remoteAddr:     reqCtx.RemoteAddr,
		}
		if id, ok := reqCtx.Metadata["request_id"].(string); ok && id != "" {
			t.requestID = id
		}

		span := a.obs.CreateSpan(ctx, "agent.send_message", map[string]any{
			"conversation_id": t.conversationID,
			"request_id":      t.requestID,
		})
		err := a.process(ctx, t, reqCtx, message)
		span.SetAttribute("tool_iterations", t.toolCalls)
		if err != nil && !errors.Is(err, errStopped) {
			span.SetAttribute("error", err.Error())
		}
		a.obs.EndSpan(ctx, span)
		a.obs.RecordMetric(ctx, "agent.message.duration", span.DurationMs(), "ms", nil)

		if err == nil || errors.Is(err, errStopped) {
			return
		}
		a.logger.ErrorContext(ctx, "message processing failed",
			"conversation_id", t.conversationID,
			"request_id", t.requestID,
			"error", err,
		)
		errSpan := a.obs.CreateSpan(ctx, "agent.send_message.error", map[string]any{
			"conversation_id": t.conversationID,
			"request_id":      t.requestID,
			"error":           err.Error(),
		})
		a.obs.EndSpan(ctx, errSpan)
		a.obs.RecordMetric(ctx, "agent.error.count", 1, "count", map[string]string{"stage": "send_message"})
		_ = t.emit(errorComponents(t.conversationID)...)
	}
}

// SendMessageSync collects SendMessage into a slice.
func (a *Agent) SendMessageSync(ctx context.Context, reqCtx *user.RequestContext, message, conversationID string) []components.UiComponent {
	var out []components.UiComponent
	for c := range a.SendMessage(ctx, reqCtx, message, conversationID) {
		out = append(out, c)
	}
	return out
}

func (a *Agent) process(ctx context.Context, t *turn, reqCtx *user.RequestContext, message string) error {
	u, err := a.resolveUser(ctx, reqCtx)
	if err != nil {
		return err
	}
	t.user = u
	log := a.logger.With("conversation_id", t.conversationID, "request_id", t.requestID, "user_id", u.ID)

	starter, _ := reqCtx.Metadata["starter_ui_request"].(bool)
	if strings.TrimSpace(message) == "" || starter {
		done, err := a.starterUI(ctx, t)
		if errors.Is(err, errStopped) {
			return err
		}
		if err != nil {
			log.WarnContext(ctx, "starter UI failed", "error", err)
		}
		if done {
			return nil
		}
	}
	if strings.TrimSpace(message) == "" {
		return nil
	}

	for _, h := range a.hooks {
		var replacement string
		err := a.runHook(ctx, "before_message", func() (err error) {
			replacement, err = h.BeforeMessage(ctx, u, message)
			return err
		})
		if err != nil {
			return fmt.Errorf("before message hook: %w", err)
		}
		if replacement != "" {
			message = replacement
		}
	}

	if err := t.emit(components.New(components.NewStatusBar(components.StatusWorking, "Processing your request...", "Analyzing query"))); err != nil {
		return err
	}

	conv, isNew, err := a.loadConversation(ctx, t)
	if err != nil {
		return err
	}

	if a.workflow != nil {
		res, err := a.workflow.TryHandle(ctx, a, u, conv, message)
		switch {
		case err != nil:
			log.WarnContext(ctx, "workflow handler failed", "error", err)
		case res != nil && res.Handled:
			return a.finishWorkflow(ctx, t, conv, isNew, res)
		}
	}

	if isNew {
		if err := a.save(ctx, conv, true); err != nil {
			return err
		}
	}
	conv.AddMessage(storage.Message{Role: string(llm.RoleUser), Content: message})
	a.audit(ctx, audit.MessageReceived(u, t.scope(), len(message)))

	task := components.NewTask("Load conversation context", "Reading message history and user context", components.StatusPending)
	if err := t.emit(components.New(components.AddTask(task))); err != nil {
		return err
	}

	tctx := &tool.Context{
		User:           u,
		ConversationID: t.conversationID,
		RequestID:      t.requestID,
		RemoteAddr:     t.remoteAddr,
		Metadata:       map[string]any{"ui_features_available": a.cfg.UiFeatures.Available(u)},
		Observability:  a.obs,
		Memory:         a.memory,
		Logger:         log,
	}
	for _, e := range a.enrichers {
		if tctx, err = e.EnrichContext(ctx, tctx); err != nil {
			return fmt.Errorf("enrich context: %w", err)
		}
	}

	schemas := a.registry.Schemas(ctx, u)
	if err := t.emit(components.New(components.UpdateTask(task.ID, components.TaskCompleted, ""))); err != nil {
		return err
	}

	systemPrompt, err := a.prompt.BuildSystemPrompt(ctx, u, schemas)
	if err != nil {
		return fmt.Errorf("build system prompt: %w", err)
	}
	if a.enhancer != nil {
		if systemPrompt, err = a.enhancer.EnhanceSystemPrompt(ctx, systemPrompt, message, u); err != nil {
			return fmt.Errorf("enhance system prompt: %w", err)
		}
	}

	finalText, err := a.runLoop(ctx, t, conv, tctx, schemas, systemPrompt)
	if err != nil {
		return err
	}

	if a.cfg.AutoSaveConversations {
		if err := a.save(ctx, conv, false); err != nil {
			return err
		}
	}
	for _, h := range a.hooks {
		if err := a.runHook(ctx, "after_message", func() error { return h.AfterMessage(ctx, conv) }); err != nil {
			return fmt.Errorf("after message hook: %w", err)
		}
	}
	a.audit(ctx, audit.AiResponse(u, t.scope(), len(finalText), t.toolCalls))
	return nil
}

// runLoop alternates LLM calls and tool execution. It returns the final
// assistant text, which is empty when the iteration limit stopped it.
func (a *Agent) runLoop(ctx context.Context, t *turn, conv *storage.Conversation, tctx *tool.Context, schemas []tool.Schema, systemPrompt string) (string, error) {
	u := t.user
	var steering []llm.Message

	req, err := a.buildRequest(ctx, t, conv, schemas, systemPrompt, steering)
	if err != nil {
		return "", err
	}

	if a.cfg.IncludeThinkingIndicators {
		if err := t.emit(components.New(components.NewStatusBar(components.StatusWorking, "Thinking...", "Waiting for the model"))); err != nil {
			return "", err
		}
	}

	for t.toolCalls < a.cfg.MaxToolIterations {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		resp, err := a.callLLM(ctx, req)
		if err != nil {
			return "", fmt.Errorf("llm request: %w", err)
		}

		if !resp.IsToolCall() {
			if err := t.emit(
				components.New(components.NewStatusBar(components.StatusIdle, "Response complete", "Ready for next message")),
				components.New(components.NewChatInput("Ask a follow-up question...", false)),
			); err != nil {
				return "", err
			}
			if resp.Content != "" {
				conv.AddMessage(storage.Message{Role: string(llm.RoleAssistant), Content: resp.Content})
				if err := t.emit(markdown(resp.Content)); err != nil {
					return "", err
				}
			}
			return resp.Content, nil
		}

		t.toolCalls++
		conv.AddMessage(storage.Message{Role: string(llm.RoleAssistant), Content: resp.Content, ToolCalls: resp.ToolCalls})

		if resp.Content != "" {
			var cs []components.UiComponent
			if a.cfg.UiFeatures.CanUserAccess(FeatureToolInvocationMessageInChat, u) {
				cs = append(cs, markdown(resp.Content), components.New(components.NewStatusBar(
					components.StatusWorking, "Executing tools...", fmt.Sprintf("Running %d tools", len(resp.ToolCalls)))))
			} else {
				cs = append(cs, components.New(components.NewStatusBar(components.StatusWorking, resp.Content, "")))
			}
			if err := t.emit(cs...); err != nil {
				return "", err
			}
		}

		var toolMessages []storage.Message
		for _, call := range resp.ToolCalls {
			msg, err := a.runTool(ctx, t, tctx, call, resp.Content)
			if err != nil {
				return "", err
			}
			toolMessages = append(toolMessages, msg)
		}
		for _, m := range toolMessages {
			conv.AddMessage(m)
		}

		if a.cfg.DetectToolLoops && DetectLoop(conv.Messages, a.cfg.LoopDetectionWindow) {
			warning := fmt.Sprintf(loopWarning, a.cfg.LoopDetectionWindow)
			tctx.Log().WarnContext(ctx, "tool loop detected", "window", a.cfg.LoopDetectionWindow)
			steering = append(steering, llm.Message{Role: llm.RoleUser, Content: warning})
		}

		if req, err = a.buildRequest(ctx, t, conv, schemas, systemPrompt, steering); err != nil {
			return "", err
		}
	}

	n := t.toolCalls
	limitText := fmt.Sprintf("⚠️ **Tool Execution Limit Reached**\n\n"+
		"The agent stopped after executing %d tools (the configured maximum). "+
		"The task may not be fully complete.\n\n"+
		"You can:\n"+
		"- Ask me to continue where I left off\n"+
		"- Adjust the `max_tool_iterations` setting if you need more tool calls\n"+
		"- Break the task into smaller steps", n)
	return "", t.emit(
		components.New(components.NewStatusBar(components.StatusWarning, "Tool limit reached",
			fmt.Sprintf("Stopped after %d tool executions. The task may be incomplete.", n))),
		components.WithSimple(components.NewText(limitText, true),
			components.SimpleText(fmt.Sprintf("Tool limit reached after %d executions. Task may be incomplete.", n))),
		components.New(components.NewChatInput("Continue the task or ask me something else...", false)),
	)
}

// runTool executes one call with its UI and hooks, and returns the tool
// message to append to the conversation.
func (a *Agent) runTool(ctx context.Context, t *turn, tctx *tool.Context, call tool.Call, assistantText string) (storage.Message, error) {
	u := t.user
	showNames := a.featureAccess(ctx, t, FeatureToolNames)
	showArgs := a.featureAccess(ctx, t, FeatureToolArguments)

	task := components.NewTask("Execute "+call.Name, "Running tool with provided arguments", components.TaskInProgress)
	if showNames {
		if err := t.emit(components.New(components.AddTask(task))); err != nil {
			return storage.Message{}, err
		}
	}
	card := components.NewStatusCard("Executing "+call.Name, components.StatusRunning,
		fmt.Sprintf("Running tool with %d arguments", len(call.Arguments)), "⚙️")
	card.Metadata = call.Arguments
	if showArgs {
		if err := t.emit(components.WithSimple(card, components.SimpleText(assistantText))); err != nil {
			return storage.Message{}, err
		}
	}

	var result *tool.Result
	if veto := a.beforeTool(ctx, tctx, call); veto != nil {
		result = tool.Failure(veto.Error())
	} else {
		span := a.obs.CreateSpan(ctx, "agent.tool.execute", map[string]any{"tool": call.Name, "arg_count": len(call.Arguments)})
		result = a.executeTool(ctx, tctx, call)
		span.SetAttribute("success", result.Success)
		if !result.Success {
			span.SetAttribute("error", cmp.Or(result.Error, "unknown"))
		}
		a.obs.EndSpan(ctx, span)
		a.obs.RecordMetric(ctx, "agent.tool.duration", span.DurationMs(), "ms",
			map[string]string{"tool": call.Name, "success": fmt.Sprint(result.Success)})
	}

	for _, h := range a.hooks {
		var replacement *tool.Result
		err := a.runHook(ctx, "after_tool", func() (err error) {
			replacement, err = h.AfterTool(ctx, tctx, call, result)
			return err
		})
		if err != nil {
			return storage.Message{}, fmt.Errorf("after tool hook: %w", err)
		}
		if replacement != nil {
			result = replacement
		}
	}

	var cs []components.UiComponent
	if showArgs {
		if result.Success {
			cs = append(cs, components.New(card.WithStatus(components.StatusSuccess, "Tool completed successfully")))
		} else {
			cs = append(cs, components.New(card.WithStatus(components.StatusError, "Tool failed: "+cmp.Or(result.Error, "Unknown error"))))
		}
	}
	if showNames {
		detail := "Tool completed successfully"
		if !result.Success {
			detail = "Tool returned an error"
		}
		cs = append(cs, components.New(components.UpdateTask(task.ID, components.TaskCompleted, detail)))
	}
	if result.UiComponent != nil && (result.Success || a.featureAccess(ctx, t, FeatureToolError)) {
		cs = append(cs, *result.UiComponent)
	}
	if err := t.emit(cs...); err != nil {
		return storage.Message{}, err
	}

	content := result.ResultForLLM
	if !result.Success {
		content = cmp.Or(result.Error, "Tool execution failed")
	}
	tctx.Log().DebugContext(ctx, "tool executed", "tool", call.Name, "success", result.Success, "user_id", u.ID)
	return storage.Message{Role: string(llm.RoleTool), Content: content, ToolCallID: call.ID}, nil
}

// beforeTool runs the before-tool hooks. The first error vetoes the call.
// Unknown tools skip the hooks and fail in the registry.
func (a *Agent) beforeTool(ctx context.Context, tctx *tool.Context, call tool.Call) error {
	if _, ok := a.registry.Get(call.Name); !ok {
		return nil
	}
	for _, h := range a.hooks {
		if err := a.runHook(ctx, "before_tool", func() error { return h.BeforeTool(ctx, tctx, call) }); err != nil {
			return err
		}
	}
	return nil
}

// executeTool runs call through the registry, consulting the recovery
// strategy on failure.
func (a *Agent) executeTool(ctx context.Context, tctx *tool.Context, call tool.Call) *tool.Result {
	for attempt := 1; ; attempt++ {
		result := a.registry.Execute(ctx, call, tctx)
		if result.Success || attempt >= maxRecoveryAttempts || ctx.Err() != nil {
			return result
		}
		action := a.recovery.HandleToolError(ctx, errors.New(cmp.Or(result.Error, "tool execution failed")), tctx, attempt)
		switch action.Action {
		case RecoveryRetry:
			tctx.Log().InfoContext(ctx, "retrying tool", "tool", call.Name, "attempt", attempt, "delay", action.RetryDelay)
			if sleepCtx(ctx, action.RetryDelay) != nil {
				return result
			}
			continue
		case RecoveryFallback:
			switch v := action.FallbackValue.(type) {
			case *tool.Result:
				if v != nil {
					return v
				}
			case string:
				return tool.Success(v, nil)
			}
		}
		return result
	}
}

// callLLM sends req through the middlewares, consulting the recovery
// strategy on failure.
func (a *Agent) callLLM(ctx context.Context, req llm.Request) (*llm.Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := a.sendLLM(ctx, req)
		if err == nil {
			return resp, nil
		}
		a.obs.RecordMetric(ctx, "agent.error.count", 1, "count", map[string]string{"stage": "llm"})
		if ctx.Err() != nil || attempt >= maxRecoveryAttempts {
			return nil, err
		}
		action := a.recovery.HandleLLMError(ctx, err, req, attempt)
		switch action.Action {
		case RecoveryRetry:
			a.logger.InfoContext(ctx, "retrying llm request", "attempt", attempt, "delay", action.RetryDelay, "error", err)
			if serr := sleepCtx(ctx, action.RetryDelay); serr != nil {
				return nil, err
			}
			continue
		case RecoveryFallback:
			switch v := action.FallbackValue.(type) {
			case *llm.Response:
				if v != nil {
					return v, nil
				}
			case string:
				return &llm.Response{Content: v, FinishReason: "stop"}, nil
			}
		case RecoverySkip:
			return &llm.Response{FinishReason: "stop"}, nil
		}
		return nil, err
	}
}

func (a *Agent) sendLLM(ctx context.Context, req llm.Request) (*llm.Response, error) {
	var err error
	for _, mw := range a.middlewares {
		if req, err = mw.BeforeRequest(ctx, req); err != nil {
			return nil, fmt.Errorf("middleware: %w", err)
		}
	}

	name := "llm.request"
	if req.Stream {
		name = "llm.stream"
	}
	span := a.obs.CreateSpan(ctx, name, map[string]any{"message_count": len(req.Messages), "tool_count": len(req.Tools)})
	var resp *llm.Response
	if req.Stream {
		var ch <-chan llm.StreamChunk
		if ch, err = a.llm.StreamRequest(ctx, req); err == nil {
			resp, err = llm.Accumulate(ch)
		}
	} else {
		resp, err = a.llm.SendRequest(ctx, req)
	}
	if err != nil {
		span.SetAttribute("error", err.Error())
	}
	a.obs.EndSpan(ctx, span)
	a.obs.RecordMetric(ctx, name+".duration", span.DurationMs(), "ms", nil)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		resp = &llm.Response{}
	}

	for _, mw := range a.middlewares {
		if resp, err = mw.AfterResponse(ctx, req, resp); err != nil {
			return nil, fmt.Errorf("middleware: %w", err)
		}
	}
	return resp, nil
}

func (a *Agent) buildRequest(ctx context.Context, t *turn, conv *storage.Conversation, schemas []tool.Schema, systemPrompt string, steering []llm.Message) (llm.Request, error) {
	history := conv.Messages
	var err error
	for _, f := range a.filters {
		if history, err = f.FilterMessages(ctx, history); err != nil {
			return llm.Request{}, fmt.Errorf("filter messages: %w", err)
		}
	}

	messages := make([]llm.Message, 0, len(history)+len(steering))
	for _, m := range history {
		messages = append(messages, llm.Message{
			Role:       llm.Role(m.Role),
			Content:    m.Content,
			ToolCalls:  m.ToolCalls,
			ToolCallID: m.ToolCallID,
		})
	}
	if a.enhancer != nil {
		if messages, err = a.enhancer.EnhanceUserMessages(ctx, messages, t.user); err != nil {
			return llm.Request{}, fmt.Errorf("enhance messages: %w", err)
		}
	}
	messages = append(messages, steering...)

	return llm.Request{
		Messages:     messages,
		Tools:        schemas,
		User:         t.user,
		Stream:       a.cfg.StreamResponses,
		Temperature:  llm.Ptr(a.cfg.Temperature),
		MaxTokens:    a.cfg.MaxTokens,
		SystemPrompt: systemPrompt,
		Metadata: map[string]any{
			"conversation_id": t.conversationID,
			"request_id":      t.requestID,
		},
	}, nil
}

// starterUI shows the workflow's starter components. It reports whether
// anything was shown.
func (a *Agent) starterUI(ctx context.Context, t *turn) (bool, error) {
	if a.workflow == nil {
		return false, nil
	}
	conv, isNew, err := a.loadConversation(ctx, t)
	if err != nil {
		return false, err
	}
	cs, err := a.workflow.StarterUI(ctx, a, t.user, conv)
	if err != nil || len(cs) == 0 {
		return false, err
	}
	cs = append(cs,
		components.New(components.NewStatusBar(components.StatusIdle, "Ready", "Choose an option or type a message")),
		components.New(components.NewChatInput("Ask a question...", false)),
	)
	if err := t.emit(cs...); err != nil {
		return true, err
	}
	if a.cfg.AutoSaveConversations {
		if err := a.save(ctx, conv, isNew); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (a *Agent) finishWorkflow(ctx context.Context, t *turn, conv *storage.Conversation, isNew bool, res *WorkflowResult) error {
	if res.Mutate != nil {
		res.Mutate(conv)
	}
	cs := append(slices.Clone(res.Components),
		components.New(components.NewStatusBar(components.StatusIdle, "Workflow complete", "Ready for next message")),
		components.New(components.NewChatInput("Ask a question...", false)),
	)
	if err := t.emit(cs...); err != nil {
		return err
	}
	if a.cfg.AutoSaveConversations {
		return a.save(ctx, conv, isNew)
	}
	return nil
}

// featureAccess checks a UI feature for the turn's user and audits the check.
func (a *Agent) featureAccess(ctx context.Context, t *turn, feature string) bool {
	granted := a.cfg.UiFeatures.CanUserAccess(feature, t.user)
	if a.cfg.Audit.LogUiFeatureChecks {
		a.audit(ctx, audit.UiFeatureAccessCheck(t.user, t.scope(), feature, granted, a.cfg.UiFeatures.FeatureGroupAccess[feature]))
	}
	return granted
}

func (a *Agent) audit(ctx context.Context, e audit.Event) {
	if a.auditLog == nil || !a.cfg.Audit.Enabled {
		return
	}
	if err := a.auditLog.LogEvent(ctx, e); err != nil {
		a.logger.WarnContext(ctx, "audit log failed", "event_type", e.EventType, "error", err)
	}
}

func errorComponents(conversationID string) []components.UiComponent {
	description := "An unexpected error occurred while processing your message. Please try again."
	simple := "Error: An unexpected error occurred. Please try again."
	if conversationID != "" {
		description += "\n\nConversation ID: " + conversationID
		simple += " (Conversation ID: " + conversationID + ")"
	}
	return []components.UiComponent{
		components.WithSimple(
			components.NewStatusCard("Error Processing Message", components.StatusError, description, "⚠️"),
			components.SimpleText(simple),
		),
		components.New(components.NewStatusBar(components.StatusError, "Error occurred", "An unexpected error occurred while processing your message")),
		components.New(components.NewChatInput("Try again...", false)),
	}
}
