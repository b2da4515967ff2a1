// Package components defines the UI components streamed from the agent to
// chat frontends. Every UiComponent carries a rich form for full frontends
// and an optional simple form for plain-text clients.
package components

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Lifecycle tells the frontend what to do with a component that shares an ID
// with one already rendered.
type Lifecycle string

const (
	LifecycleCreate  Lifecycle = "create"
	LifecycleUpdate  Lifecycle = "update"
	LifecycleReplace Lifecycle = "replace"
	LifecycleRemove  Lifecycle = "remove"
)

// Base holds the fields common to every rich component.
type Base struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Lifecycle   Lifecycle `json:"lifecycle"`
	Children    []string  `json:"children"`
	Timestamp   time.Time `json:"timestamp"`
	Visible     bool      `json:"visible"`
	Interactive bool      `json:"interactive"`
}

// ComponentBase returns b so that embedding types satisfy RichComponent.
func (b *Base) ComponentBase() *Base { return b }

func newBase(componentType string) Base {
	return Base{
		ID:        uuid.NewString(),
		Type:      componentType,
		Lifecycle: LifecycleCreate,
		Children:  []string{},
		Timestamp: time.Now().UTC(),
		Visible:   true,
	}
}

func fixedBase(id, componentType string) Base {
	b := newBase(componentType)
	b.ID = id
	return b
}

// RichComponent is implemented by every component type in this package.
type RichComponent interface {
	ComponentBase() *Base
}

// Serialize renders a rich component in the frontend wire shape: the base
// fields at the top level, component-specific fields nested under "data".
func Serialize(rc RichComponent) map[string]any {
	if rc == nil {
		return nil
	}
	b := rc.ComponentBase()

	data := map[string]any{}
	if raw, err := json.Marshal(rc); err == nil {
		_ = json.Unmarshal(raw, &data)
	}

	children := b.Children
	if children == nil {
		children = []string{}
	}
	return map[string]any{
		"id":          b.ID,
		"type":        b.Type,
		"lifecycle":   string(b.Lifecycle),
		"children":    children,
		"timestamp":   b.Timestamp.Format(time.RFC3339Nano),
		"visible":     b.Visible,
		"interactive": b.Interactive,
		"data":        data,
	}
}

// SimpleType is the kind of a SimpleComponent.
type SimpleType string

const (
	SimpleTypeText  SimpleType = "text"
	SimpleTypeImage SimpleType = "image"
	SimpleTypeLink  SimpleType = "link"
)

// SimpleComponent is the degraded rendering used by text-only clients.
type SimpleComponent struct {
	Type         SimpleType     `json:"type"`
	SemanticType string         `json:"semantic_type,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Text         string         `json:"text,omitempty"`
	URL          string         `json:"url,omitempty"`
}

// SimpleText builds a text SimpleComponent.
func SimpleText(text string) *SimpleComponent {
	return &SimpleComponent{Type: SimpleTypeText, Text: text}
}

// UiComponent is one unit yielded by the agent.
type UiComponent struct {
	Timestamp time.Time
	Rich      RichComponent
	Simple    *SimpleComponent
}

// New wraps a rich component with no simple fallback.
func New(rich RichComponent) UiComponent {
	return UiComponent{Timestamp: time.Now().UTC(), Rich: rich}
}

// WithSimple wraps a rich component with a simple fallback.
func WithSimple(rich RichComponent, simple *SimpleComponent) UiComponent {
	return UiComponent{Timestamp: time.Now().UTC(), Rich: rich, Simple: simple}
}

// Type returns the rich component type, or "" when there is none.
func (c UiComponent) Type() string {
	if c.Rich == nil {
		return ""
	}
	return c.Rich.ComponentBase().Type
}

// MarshalJSON implements json.Marshaler.
func (c UiComponent) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"rich":      Serialize(c.Rich),
		"simple":    c.Simple,
		"timestamp": c.Timestamp.Format(time.RFC3339Nano),
	})
}
