package observability

import (
	"context"
	"log/slog"
)

// LoggingProvider writes spans and metrics to a slog logger at debug level.
type LoggingProvider struct {
	logger *slog.Logger
}

// NewLoggingProvider returns a LoggingProvider. A nil logger uses slog.Default.
func NewLoggingProvider(logger *slog.Logger) *LoggingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingProvider{logger: logger}
}

func (l *LoggingProvider) RecordMetric(ctx context.Context, name string, value float64, unit string, tags map[string]string) {
	l.logger.DebugContext(ctx, "metric", "name", name, "value", value, "unit", unit, "tags", tags)
}

func (l *LoggingProvider) CreateSpan(_ context.Context, name string, attrs map[string]any) *Span {
	return NewSpan(name, attrs)
}

func (l *LoggingProvider) EndSpan(ctx context.Context, span *Span) {
	if span == nil {
		return
	}
	span.End()
	l.logger.DebugContext(ctx, "span",
		"name", span.Name,
		"span_id", span.ID,
		"duration_ms", span.DurationMs(),
		"attributes", span.Attributes,
	)
}
