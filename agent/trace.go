package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/martinemde/vanna/storage"
	"github.com/martinemde/vanna/user"
)

// traced runs fn inside a span named name and returns the span's duration
// in milliseconds. A failure is recorded on the span.
func (a *Agent) traced(ctx context.Context, name string, attrs map[string]any, fn func() error) (float64, error) {
	span := a.obs.CreateSpan(ctx, name, attrs)
	err := fn()
	if err != nil {
		span.SetAttribute("error", err.Error())
	}
	a.obs.EndSpan(ctx, span)
	return span.DurationMs(), err
}

// runHook times one lifecycle hook call as agent.hook.<kind>.
func (a *Agent) runHook(ctx context.Context, kind string, fn func() error) error {
	ms, err := a.traced(ctx, "agent.hook."+kind, map[string]any{"hook": kind}, fn)
	a.obs.RecordMetric(ctx, "agent.hook.duration", ms, "ms", map[string]string{"hook": kind})
	return err
}

func (a *Agent) resolveUser(ctx context.Context, reqCtx *user.RequestContext) (*user.User, error) {
	var u *user.User
	_, err := a.traced(ctx, "agent.user_resolution", nil, func() (err error) {
		u, err = a.resolver.ResolveUser(ctx, reqCtx)
		if err == nil && u == nil {
			err = errors.New("no user")
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	return u, nil
}

// loadConversation returns the turn's conversation, or a new unsaved one
// when the user has none under that ID.
func (a *Agent) loadConversation(ctx context.Context, t *turn) (conv *storage.Conversation, isNew bool, err error) {
	ms, err := a.traced(ctx, "agent.conversation.load", map[string]any{"conversation_id": t.conversationID}, func() (err error) {
		conv, err = a.store.Get(ctx, t.conversationID, t.user)
		return err
	})
	a.obs.RecordMetric(ctx, "agent.conversation.load.duration", ms, "ms", nil)
	if err != nil {
		return nil, false, fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return storage.NewConversation(t.conversationID, t.user), true, nil
	}
	return conv, false, nil
}

func (a *Agent) save(ctx context.Context, conv *storage.Conversation, isNew bool) error {
	op := "update"
	if isNew {
		op = "create"
	}
	ms, err := a.traced(ctx, "agent.conversation.save", map[string]any{
		"conversation_id": conv.ID,
		"operation":       op,
		"message_count":   len(conv.Messages),
	}, func() error {
		if isNew {
			return a.store.Create(ctx, conv)
		}
		return a.store.Update(ctx, conv)
	})
	a.obs.RecordMetric(ctx, "agent.conversation.save.duration", ms, "ms", map[string]string{"operation": op})
	if err != nil {
		if isNew {
			return fmt.Errorf("create conversation: %w", err)
		}
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}
