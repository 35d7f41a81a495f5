package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

var _ MetricsRecorder = NoopMetrics{}

func (NoopMetrics) RecordRoute(_ context.Context, _, _ string, _, _ bool, _ time.Duration) {}

func (NoopMetrics) RecordClassifierCall(_ context.Context, _ time.Duration, _ error) {}

func (NoopMetrics) RecordCacheLookup(_ context.Context, _ bool) {}

func (NoopMetrics) RecordContextTokens(_ context.Context, _ int) {}

// NoopSpanManager is a SpanManager that does nothing.
type NoopSpanManager struct{}

var _ SpanManager = NoopSpanManager{}

var noopTracer = noop.NewTracerProvider().Tracer("")

func (NoopSpanManager) StartRouteSpan(ctx context.Context, _, _ int) (context.Context, trace.Span) {
	return noopTracer.Start(ctx, "")
}

func (NoopSpanManager) StartClassifierSpan(ctx context.Context) (context.Context, trace.Span) {
	return noopTracer.Start(ctx, "")
}

func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
