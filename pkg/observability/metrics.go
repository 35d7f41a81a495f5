package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/zen-systems/brainroute/pkg/adapter"
)

// MetricsRecorder records router metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordRoute records one routing decision.
	RecordRoute(ctx context.Context, mode, gate string, usedClassifier, fallback bool, duration time.Duration)

	// RecordClassifierCall records one classifier backend call.
	RecordClassifierCall(ctx context.Context, duration time.Duration, err error)

	// RecordCacheLookup records a classifier cache lookup.
	RecordCacheLookup(ctx context.Context, hit bool)

	// RecordContextTokens records the context size of a request.
	RecordContextTokens(ctx context.Context, tokens int)
}

type otelMetrics struct {
	routes            metric.Int64Counter
	routeLatency      metric.Float64Histogram
	classifierCalls   metric.Int64Counter
	classifierErrors  metric.Int64Counter
	classifierLatency metric.Float64Histogram
	cacheLookups      metric.Int64Counter
	contextTokens     metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("brainroute")

	routes, err := meter.Int64Counter("brainroute.route.decisions",
		metric.WithDescription("Number of routing decisions"),
	)
	if err != nil {
		return nil, err
	}

	routeLatency, err := meter.Float64Histogram("brainroute.route.latency_ms",
		metric.WithDescription("Routing latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	classifierCalls, err := meter.Int64Counter("brainroute.classifier.calls",
		metric.WithDescription("Number of classifier backend calls"),
	)
	if err != nil {
		return nil, err
	}

	classifierErrors, err := meter.Int64Counter("brainroute.classifier.errors",
		metric.WithDescription("Number of failed classifier calls"),
	)
	if err != nil {
		return nil, err
	}

	classifierLatency, err := meter.Float64Histogram("brainroute.classifier.latency_ms",
		metric.WithDescription("Classifier call latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter("brainroute.classifier.cache_lookups",
		metric.WithDescription("Classifier cache lookups by outcome"),
	)
	if err != nil {
		return nil, err
	}

	contextTokens, err := meter.Int64Histogram("brainroute.context.tokens",
		metric.WithDescription("Estimated context tokens per request"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		routes:            routes,
		routeLatency:      routeLatency,
		classifierCalls:   classifierCalls,
		classifierErrors:  classifierErrors,
		classifierLatency: classifierLatency,
		cacheLookups:      cacheLookups,
		contextTokens:     contextTokens,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel
// meter provider. If initialization fails, it returns a no-op recorder.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordRoute(ctx context.Context, mode, gate string, usedClassifier, fallback bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("gate", gate),
		attribute.Bool("used_classifier", usedClassifier),
		attribute.Bool("classifier_fallback", fallback),
	)
	m.routes.Add(ctx, 1, attrs)
	m.routeLatency.Record(ctx, float64(duration.Microseconds())/1000.0, attrs)
}

func (m *otelMetrics) RecordClassifierCall(ctx context.Context, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	m.classifierCalls.Add(ctx, 1, attrs)
	m.classifierLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.classifierErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("transient", adapter.IsTransient(err)),
			attribute.Int("status", adapter.StatusCode(err)),
		))
	}
}

func (m *otelMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}

func (m *otelMetrics) RecordContextTokens(ctx context.Context, tokens int) {
	m.contextTokens.Record(ctx, int64(tokens))
}
