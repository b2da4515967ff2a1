package agent

import (
	"context"

	"github.com/martinemde/vanna/components"
	"github.com/martinemde/vanna/llm"
	"github.com/martinemde/vanna/storage"
	"github.com/martinemde/vanna/tool"
	"github.com/martinemde/vanna/user"
)

// LifecycleHook observes and adjusts message and tool processing. Embed
// NopHook to implement only some of the methods.
type LifecycleHook interface {
	// BeforeMessage may return a replacement message, or "" to keep it.
	// An error aborts the request.
	BeforeMessage(ctx context.Context, u *user.User, message string) (string, error)
	AfterMessage(ctx context.Context, conv *storage.Conversation) error
	// BeforeTool may veto a call by returning an error. The error text
	// becomes the failed tool result.
	BeforeTool(ctx context.Context, tctx *tool.Context, call tool.Call) error
	// AfterTool may return a replacement result, or nil to keep it.
	AfterTool(ctx context.Context, tctx *tool.Context, call tool.Call, result *tool.Result) (*tool.Result, error)
}

// NopHook implements LifecycleHook with no-ops.
type NopHook struct{}

func (NopHook) BeforeMessage(context.Context, *user.User, string) (string, error) { return "", nil }
func (NopHook) AfterMessage(context.Context, *storage.Conversation) error         { return nil }
func (NopHook) BeforeTool(context.Context, *tool.Context, tool.Call) error        { return nil }
func (NopHook) AfterTool(context.Context, *tool.Context, tool.Call, *tool.Result) (*tool.Result, error) {
	return nil, nil
}

// AfterToolFunc adapts a function to a LifecycleHook that only observes tool
// results.
type AfterToolFunc func(ctx context.Context, tctx *tool.Context, call tool.Call, result *tool.Result) (*tool.Result, error)

func (AfterToolFunc) BeforeMessage(context.Context, *user.User, string) (string, error) { return "", nil }
func (AfterToolFunc) AfterMessage(context.Context, *storage.Conversation) error         { return nil }
func (AfterToolFunc) BeforeTool(context.Context, *tool.Context, tool.Call) error        { return nil }
func (f AfterToolFunc) AfterTool(ctx context.Context, tctx *tool.Context, call tool.Call, result *tool.Result) (*tool.Result, error) {
	return f(ctx, tctx, call, result)
}

// LlmMiddleware wraps every LLM request.
type LlmMiddleware interface {
	BeforeRequest(ctx context.Context, req llm.Request) (llm.Request, error)
	AfterResponse(ctx context.Context, req llm.Request, resp *llm.Response) (*llm.Response, error)
}

// BeforeRequestFunc adapts a function to an LlmMiddleware that only rewrites
// requests.
type BeforeRequestFunc func(ctx context.Context, req llm.Request) (llm.Request, error)

func (f BeforeRequestFunc) BeforeRequest(ctx context.Context, req llm.Request) (llm.Request, error) {
	return f(ctx, req)
}

func (BeforeRequestFunc) AfterResponse(_ context.Context, _ llm.Request, resp *llm.Response) (*llm.Response, error) {
	return resp, nil
}

// ContextEnricher adds data to the tool context before tools run.
type ContextEnricher interface {
	EnrichContext(ctx context.Context, tctx *tool.Context) (*tool.Context, error)
}

// EnricherFunc adapts a function to ContextEnricher.
type EnricherFunc func(ctx context.Context, tctx *tool.Context) (*tool.Context, error)

func (f EnricherFunc) EnrichContext(ctx context.Context, tctx *tool.Context) (*tool.Context, error) {
	return f(ctx, tctx)
}

// LlmContextEnhancer adds context to the system prompt and messages sent to
// the model.
type LlmContextEnhancer interface {
	EnhanceSystemPrompt(ctx context.Context, systemPrompt, userMessage string, u *user.User) (string, error)
	EnhanceUserMessages(ctx context.Context, messages []llm.Message, u *user.User) ([]llm.Message, error)
}

// ConversationFilter trims or rewrites history before it is sent.
type ConversationFilter interface {
	FilterMessages(ctx context.Context, messages []storage.Message) ([]storage.Message, error)
}

// FilterFunc adapts a function to ConversationFilter.
type FilterFunc func(ctx context.Context, messages []storage.Message) ([]storage.Message, error)

func (f FilterFunc) FilterMessages(ctx context.Context, messages []storage.Message) ([]storage.Message, error) {
	return f(ctx, messages)
}

// LastN keeps the newest n messages. It never starts the window on a tool
// message, whose assistant call would be cut off.
func LastN(n int) ConversationFilter {
	return FilterFunc(func(_ context.Context, messages []storage.Message) ([]storage.Message, error) {
		if n <= 0 || len(messages) <= n {
			return messages, nil
		}
		start := len(messages) - n
		for start < len(messages) && messages[start].Role == string(llm.RoleTool) {
			start++
		}
		return messages[start:], nil
	})
}

// SystemPromptBuilder produces the system prompt for a user and tool set.
type SystemPromptBuilder interface {
	BuildSystemPrompt(ctx context.Context, u *user.User, tools []tool.Schema) (string, error)
}

// PromptBuilderFunc adapts a function to SystemPromptBuilder.
type PromptBuilderFunc func(ctx context.Context, u *user.User, tools []tool.Schema) (string, error)

func (f PromptBuilderFunc) BuildSystemPrompt(ctx context.Context, u *user.User, tools []tool.Schema) (string, error) {
	return f(ctx, u, tools)
}

// WorkflowResult is returned by WorkflowHandler.TryHandle. A nil result, or
// one with Handled unset, lets the message through to the model.
type WorkflowResult struct {
	Handled    bool
	Components []components.UiComponent
	// Mutate, when set, is applied to the conversation before it is saved.
	Mutate func(conv *storage.Conversation)
}

// WorkflowHandler intercepts messages before the model sees them and
// provides the starter UI for new conversations.
type WorkflowHandler interface {
	TryHandle(ctx context.Context, a *Agent, u *user.User, conv *storage.Conversation, message string) (*WorkflowResult, error)
	StarterUI(ctx context.Context, a *Agent, u *user.User, conv *storage.Conversation) ([]components.UiComponent, error)
}
