// Package observability provides structured logging helpers, OpenTelemetry
// metrics and OpenTelemetry tracing for the router. Every feature has a
// no-op form so routing works with observability switched off.
package observability

import (
	"log/slog"

	"github.com/zen-systems/brainroute/pkg/adapter"
)

// EnrichLogger tags a logger with the router component.
func EnrichLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("component", component))
}

// RouteFields is the loggable summary of one routing decision.
type RouteFields struct {
	Mode           string
	Model          string
	Gate           string
	Confidence     float64
	Uncertain      bool
	UsedClassifier bool
	Fallback       bool
	Risk           string
	Effort         string
	TotalTokens    int
	DurationMs     float64
}

// LogRouteDecision logs a completed routing decision at debug.
func LogRouteDecision(logger *slog.Logger, f RouteFields) {
	if logger == nil {
		return
	}
	logger.Debug("route decided",
		slog.String("mode", f.Mode),
		slog.String("model", f.Model),
		slog.String("gate", f.Gate),
		slog.Float64("confidence", f.Confidence),
		slog.Bool("uncertain", f.Uncertain),
		slog.Bool("used_classifier", f.UsedClassifier),
		slog.Bool("classifier_fallback", f.Fallback),
		slog.String("risk", f.Risk),
		slog.String("effort", f.Effort),
		slog.Int("total_tokens", f.TotalTokens),
		slog.Float64("duration_ms", f.DurationMs),
	)
}

// LogClassifierSkipped logs why the classifier gate was not consulted.
func LogClassifierSkipped(logger *slog.Logger, reason string, totalTokens int) {
	if logger == nil {
		return
	}
	logger.Debug("classifier skipped",
		slog.String("reason", reason),
		slog.Int("total_tokens", totalTokens),
	)
}

// LogClassifierFallback logs a classifier failure that fell back to the
// deterministic decision.
func LogClassifierFallback(logger *slog.Logger, err error, deterministicMode string) {
	if logger == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	attrs := []any{
		slog.String("error", msg),
		slog.String("mode", deterministicMode),
		slog.Bool("transient", adapter.IsTransient(err)),
	}
	if status := adapter.StatusCode(err); status != 0 {
		attrs = append(attrs, slog.Int("status", status))
	}
	logger.Warn("classifier unavailable, using deterministic decision", attrs...)
}

// LogClassifierOverride logs a classifier result replacing the
// deterministic mode.
func LogClassifierOverride(logger *slog.Logger, from, to string, confidence float64) {
	if logger == nil {
		return
	}
	logger.Info("classifier override",
		slog.String("from", from),
		slog.String("to", to),
		slog.Float64("confidence", confidence),
	)
}

// LogInvalidInput logs a rejected routing request.
func LogInvalidInput(logger *slog.Logger, err error) {
	if logger == nil || err == nil {
		return
	}
	logger.Warn("route rejected", slog.String("error", err.Error()))
}
