package observability

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusProvider exports agent metrics and span durations.
type PrometheusProvider struct {
	values    *prometheus.GaugeVec
	counts    *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewPrometheusProvider registers the collectors with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewPrometheusProvider(reg prometheus.Registerer) (*PrometheusProvider, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &PrometheusProvider{
		values: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vanna_metric_value",
				Help: "Last recorded value of an agent metric",
			},
			[]string{"name", "unit"},
		),
		counts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vanna_metric_total",
				Help: "Accumulated value of agent counters",
			},
			[]string{"name"},
		),
		durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vanna_span_duration_seconds",
				Help:    "Duration of agent spans",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"span"},
		),
	}
	for _, c := range []prometheus.Collector{p.values, p.counts, p.durations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *PrometheusProvider) RecordMetric(_ context.Context, name string, value float64, unit string, _ map[string]string) {
	if strings.HasSuffix(name, ".count") {
		if value >= 0 {
			p.counts.WithLabelValues(name).Add(value)
		}
		return
	}
	p.values.WithLabelValues(name, unit).Set(value)
}

func (p *PrometheusProvider) CreateSpan(_ context.Context, name string, attrs map[string]any) *Span {
	return NewSpan(name, attrs)
}

func (p *PrometheusProvider) EndSpan(_ context.Context, span *Span) {
	if span == nil {
		return
	}
	span.End()
	p.durations.WithLabelValues(span.Name).Observe(span.DurationMs() / 1000.0)
}
