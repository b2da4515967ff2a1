package agent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinemde/vanna/components"
	"github.com/martinemde/vanna/llm"
	"github.com/martinemde/vanna/logging"
	"github.com/martinemde/vanna/storage"
	"github.com/martinemde/vanna/tool"
	"github.com/martinemde/vanna/user"
)

var (
	analyst = &user.User{ID: "analyst", Email: "analyst@example.com", GroupMemberships: []string{"user"}}
	admin   = &user.User{ID: "root", Email: "root@example.com", GroupMemberships: []string{"admin"}}
)

type echoArgs struct {
	Text string `json:"text" validate:"required"`
}

func echoTool(calls *atomic.Int32) tool.Tool {
	return tool.New("echo", "Echo text back", func(_ context.Context, _ *tool.Context, args echoArgs) (*tool.Result, error) {
		if calls != nil {
			calls.Add(1)
		}
		ui := components.New(components.NewText(args.Text, false))
		return tool.Success("echo: "+args.Text, &ui), nil
	})
}

func explodingTool() tool.Tool {
	return tool.New("explode", "Always fails with a UI", func(context.Context, *tool.Context, echoArgs) (*tool.Result, error) {
		ui := components.New(components.NewNotification("error", "Explode", "kaboom"))
		res := tool.Failure("kaboom")
		res.UiComponent = &ui
		return res, nil
	})
}

type harness struct {
	agent *Agent
	svc   *llm.ScriptedService
	store *storage.MemoryStore
	calls *atomic.Int32
}

func newHarness(t *testing.T, u *user.User, steps []llm.ScriptStep, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		svc:   llm.NewScriptedService(steps...),
		store: storage.NewMemoryStore(),
		calls: &atomic.Int32{},
	}
	reg := tool.NewRegistry(tool.WithLogger(logging.NewNop()))
	reg.MustRegister(echoTool(h.calls))
	reg.MustRegister(explodingTool())

	opts = append([]Option{WithLogger(logging.NewNop())}, opts...)
	a, err := New(h.svc, reg, user.StaticResolver{User: u}, h.store, opts...)
	require.NoError(t, err)
	h.agent = a
	return h
}

func (h *harness) send(message, conversationID string) []components.UiComponent {
	return h.agent.SendMessageSync(context.Background(), &user.RequestContext{}, message, conversationID)
}

func echoCall(id, text string) tool.Call {
	return tool.Call{ID: id, Name: "echo", Arguments: map[string]any{"text": text}}
}

func types(cs []components.UiComponent) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Type()
	}
	return out
}

func texts(cs []components.UiComponent) []string {
	var out []string
	for _, c := range cs {
		if rt, ok := c.Rich.(*components.RichText); ok {
			out = append(out, rt.Content)
		}
	}
	return out
}

func statusBars(cs []components.UiComponent) []*components.StatusBarUpdate {
	var out []*components.StatusBarUpdate
	for _, c := range cs {
		if sb, ok := c.Rich.(*components.StatusBarUpdate); ok {
			out = append(out, sb)
		}
	}
	return out
}

func statusCards(cs []components.UiComponent) []*components.StatusCard {
	var out []*components.StatusCard
	for _, c := range cs {
		if sc, ok := c.Rich.(*components.StatusCard); ok {
			out = append(out, sc)
		}
	}
	return out
}

func last[T any](s []T) T {
	return s[len(s)-1]
}

var errBlocked = errors.New("blocked by policy")

type vetoHook struct{ NopHook }

func (vetoHook) BeforeTool(context.Context, *tool.Context, tool.Call) error { return errBlocked }

type rewriteHook struct {
	NopHook
	to string
}

func (h rewriteHook) BeforeMessage(context.Context, *user.User, string) (string, error) {
	return h.to, nil
}

type afterMessageHook struct {
	NopHook
	seen *storage.Conversation
}

func (h *afterMessageHook) AfterMessage(_ context.Context, conv *storage.Conversation) error {
	h.seen = conv
	return nil
}

// retryOnce retries the first LLM failure without delay.
type retryOnce struct{ FailRecovery }

func (retryOnce) HandleLLMError(_ context.Context, _ error, _ llm.Request, attempt int) RecoveryAction {
	if attempt == 1 {
		return RecoveryAction{Action: RecoveryRetry}
	}
	return RecoveryAction{Action: RecoveryFail}
}

type fallbackRecovery struct{}

func (fallbackRecovery) HandleToolError(context.Context, error, *tool.Context, int) RecoveryAction {
	return RecoveryAction{Action: RecoveryFallback, FallbackValue: "fallback result"}
}

func (fallbackRecovery) HandleLLMError(context.Context, error, llm.Request, int) RecoveryAction {
	return RecoveryAction{Action: RecoveryFallback, FallbackValue: "The model is unavailable right now."}
}
