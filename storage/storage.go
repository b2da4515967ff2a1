// Package storage persists conversations.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/martinemde/vanna/tool"
	"github.com/martinemde/vanna/user"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrConversationOwned is returned when a write targets an ID that
	// belongs to another user.
	ErrConversationOwned = errors.New("conversation belongs to another user")
)

const (
	DefaultListLimit = 50
)

// Message is one stored conversation entry.
type Message struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	ToolCalls  []tool.Call    `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// Conversation is an ordered message history owned by one user.
type Conversation struct {
	ID        string         `json:"id"`
	User      *user.User     `json:"user"`
	Messages  []Message      `json:"messages"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewConversation returns an empty conversation for u.
func NewConversation(id string, u *user.User) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        id,
		User:      u,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  map[string]any{},
	}
}

// AddMessage appends m, stamping it if needed, and bumps UpdatedAt.
func (c *Conversation) AddMessage(m Message) {
	now := time.Now().UTC()
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
	c.Messages = append(c.Messages, m)
	if now.After(c.UpdatedAt) {
		c.UpdatedAt = now
	} else {
		c.UpdatedAt = c.UpdatedAt.Add(time.Nanosecond)
	}
}

// OwnedBy reports whether u owns the conversation.
func (c *Conversation) OwnedBy(u *user.User) bool {
	return c != nil && c.User != nil && u != nil && c.User.ID == u.ID
}

// Clone returns a deep copy made through JSON, so stores never share
// mutable state with callers.
func (c *Conversation) Clone() (*Conversation, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var out Conversation
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Store persists conversations scoped to their owner.
type Store interface {
	// Create saves a new conversation, replacing any the same user has
	// under that ID. An ID held by another user gives ErrConversationOwned.
	Create(ctx context.Context, conv *Conversation) error
	// Get returns nil, nil when the conversation is missing or owned by
	// someone else.
	Get(ctx context.Context, id string, u *user.User) (*Conversation, error)
	// Update replaces a stored conversation. It returns
	// ErrConversationNotFound if the conversation was never created and
	// ErrConversationOwned if another user owns it.
	Update(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, id string, u *user.User) (bool, error)
	// List returns the user's conversations, most recently updated first.
	// A limit <= 0 means DefaultListLimit.
	List(ctx context.Context, u *user.User, limit, offset int) ([]*Conversation, error)
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}
