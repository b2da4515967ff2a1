package observability

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Metric is one recorded measurement.
type Metric struct {
	Name  string
	Value float64
	Unit  string
	Tags  map[string]string
}

// Recorder keeps ended spans and metrics in memory.
type Recorder struct {
	mu      sync.Mutex
	spans   []Span
	metrics []Metric
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) RecordMetric(_ context.Context, name string, value float64, unit string, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, Metric{Name: name, Value: value, Unit: unit, Tags: maps.Clone(tags)})
}

func (r *Recorder) CreateSpan(_ context.Context, name string, attrs map[string]any) *Span {
	return NewSpan(name, attrs)
}

func (r *Recorder) EndSpan(_ context.Context, span *Span) {
	if span == nil {
		return
	}
	span.End()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, *span)
}

// Spans returns the ended spans in end order.
func (r *Recorder) Spans() []Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Span(nil), r.spans...)
}

// Metrics returns every metric recorded, optionally limited to names.
func (r *Recorder) Metrics(names ...string) []Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Metric
	for _, m := range r.metrics {
		if len(names) == 0 || slices.Contains(names, m.Name) {
			out = append(out, m)
		}
	}
	return out
}
