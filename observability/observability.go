// Package observability records spans and metrics around agent work.
package observability

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Span is one timed unit of work.
type Span struct {
	ID         string
	Name       string
	StartTime  time.Time
	EndTime    time.Time
	Attributes map[string]any
	ParentID   string
}

// SetAttribute records a key/value on the span.
func (s *Span) SetAttribute(key string, value any) {
	if s == nil {
		return
	}
	if s.Attributes == nil {
		s.Attributes = make(map[string]any)
	}
	s.Attributes[key] = value
}

// End stamps the end time if it is not already set.
func (s *Span) End() {
	if s != nil && s.EndTime.IsZero() {
		s.EndTime = time.Now()
	}
}

// DurationMs reports the elapsed time, or 0 while the span is open.
func (s *Span) DurationMs() float64 {
	if s == nil || s.EndTime.IsZero() {
		return 0
	}
	return float64(s.EndTime.Sub(s.StartTime).Microseconds()) / 1000.0
}

// NewSpan starts a span with a generated ID.
func NewSpan(name string, attrs map[string]any) *Span {
	if attrs == nil {
		attrs = make(map[string]any)
	}
	return &Span{ID: uuid.NewString(), Name: name, StartTime: time.Now(), Attributes: attrs}
}

// Provider receives spans and metrics.
type Provider interface {
	RecordMetric(ctx context.Context, name string, value float64, unit string, tags map[string]string)
	CreateSpan(ctx context.Context, name string, attrs map[string]any) *Span
	EndSpan(ctx context.Context, span *Span)
}

// Noop discards everything.
type Noop struct{}

func (Noop) RecordMetric(context.Context, string, float64, string, map[string]string) {}

func (Noop) CreateSpan(_ context.Context, name string, attrs map[string]any) *Span {
	return NewSpan(name, attrs)
}

func (Noop) EndSpan(_ context.Context, span *Span) { span.End() }

// Multi fans out to several providers. The first provider's span is the one
// returned to the caller.
type Multi []Provider

func (m Multi) RecordMetric(ctx context.Context, name string, value float64, unit string, tags map[string]string) {
	for _, p := range m {
		p.RecordMetric(ctx, name, value, unit, tags)
	}
}

func (m Multi) CreateSpan(ctx context.Context, name string, attrs map[string]any) *Span {
	span := NewSpan(name, attrs)
	for _, p := range m {
		p.CreateSpan(ctx, name, attrs)
	}
	return span
}

func (m Multi) EndSpan(ctx context.Context, span *Span) {
	span.End()
	for _, p := range m {
		p.EndSpan(ctx, span)
	}
}
