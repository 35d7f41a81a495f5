// Package router picks an operating mode, a model and inference parameters
// for a prompt. A deterministic rubric runs first; an optional classifier
// backend is consulted only when the rubric is uncertain.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/zen-systems/brainroute/pkg/cache"
	"github.com/zen-systems/brainroute/pkg/config"
	"github.com/zen-systems/brainroute/pkg/observability"
	"github.com/zen-systems/brainroute/pkg/tokens"
)

// RAGStrategy is the reduction strategy requested when context overflows.
const RAGStrategy = "auto"

// Router routes prompts. It holds no per-request state and is safe for
// concurrent use.
type Router struct {
	registry   *config.Registry
	classifier Backend
	cache      cache.Cache
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
}

// Option configures a Router.
type Option func(*Router)

// WithClassifier sets the default classifier backend.
func WithClassifier(b Backend) Option {
	return func(r *Router) {
		r.classifier = b
	}
}

// WithCache memoizes the default classifier backend in c.
func WithCache(c cache.Cache) Option {
	return func(r *Router) {
		r.cache = c
	}
}

// WithLimiter bounds the classifier call rate. A denied call counts as a
// classifier failure.
func WithLimiter(l *rate.Limiter) Option {
	return func(r *Router) {
		r.limiter = l
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		r.logger = l
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithTracer sets the span manager.
func WithTracer(s observability.SpanManager) Option {
	return func(r *Router) {
		r.spans = s
	}
}

// New creates a router over registry. A nil registry uses config.Default().
func New(registry *config.Registry, opts ...Option) *Router {
	if registry == nil {
		registry = config.Default()
	}
	r := &Router{
		registry: registry,
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = observability.EnrichLogger(r.logger, "router")
	if r.classifier != nil && r.cache != nil {
		settings := registry.Classifier()
		r.classifier = NewCachedBackend(r.classifier, r.cache, settings.CacheTTL, r.metrics,
			WithCallTimeout(settings.Timeout), WithCacheTracer(r.spans))
	}
	return r
}

// Registry returns the configuration registry in use.
func (r *Router) Registry() *config.Registry {
	return r.registry
}

// RouteOptions are per-call overrides.
type RouteOptions struct {
	// ForceMode skips both gates when set.
	ForceMode config.Mode
	// ForceModel replaces the resolved model. Aliases are resolved.
	ForceModel string
	// Classifier replaces the router's backend for this call. It is not
	// memoized.
	Classifier Backend
}

// Route decides how prompt should be served. The only error is
// *InvalidInputError; classifier problems degrade to the deterministic
// decision.
func (r *Router) Route(ctx context.Context, prompt string, stats *tokens.ContextStats, opts RouteOptions) (RouteResult, error) {
	start := time.Now()
	if err := validateInput(prompt, stats, opts); err != nil {
		observability.LogInvalidInput(r.logger, err)
		return RouteResult{}, err
	}

	ctx, span := r.spans.StartRouteSpan(ctx, tokens.EstimatePromptTokens(prompt), stats.TotalTokens)
	defer span.End()
	r.metrics.RecordContextTokens(ctx, stats.TotalTokens)

	decision := RouteDeterministic(prompt, *stats, opts.ForceMode, r.registry)
	result := RouteResult{
		Mode:       decision.Mode,
		Reason:     decision.Reason,
		Gate:       decision.Gate,
		Confidence: decision.Confidence,
		Uncertain:  decision.Uncertain,
		Stats:      *stats,
	}
	r.applyClassifier(ctx, prompt, *stats, opts, decision, &result)

	rubric := r.registry.Rubric()
	result.RiskLevel = AssessRisk(prompt, rubric)
	result.MatchedTriggers = r.registry.MatchedHighEffortTriggers(prompt)
	result.HighEffortTriggered = len(result.MatchedTriggers) > 0

	cfg := r.registry.ResolveModelConfig(result.Mode, result.RiskLevel, result.HighEffortTriggered)
	cfg.Verbosity = r.registry.ScaleVerbosity(cfg.Verbosity, result.Mode, stats.TotalTokens)
	if r.ShouldUseRAG(*stats) {
		cfg.UseRAG = true
		cfg.ReductionStrategy = RAGStrategy
	}
	if model := strings.TrimSpace(opts.ForceModel); model != "" {
		aliases := r.registry.Aliases()
		cfg.Model = model
		if aliases.IsAlias(model) {
			cfg.Model = aliases.Resolve(model)
		}
		if provider := aliases.GetProviderForModel(cfg.Model); provider != "" {
			cfg.Provider = provider
		}
	}
	result.Config = cfg

	inputTokens := stats.TotalTokens + tokens.EstimatePromptTokens(prompt)
	if cost, ok := r.registry.Pricing().EstimateCost(cfg.Model, inputTokens, cfg.MaxOutputTokens); ok {
		result.EstimatedCostUSD = cost
	}

	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.String("route.mode", string(result.Mode)),
		attribute.String("route.gate", string(result.Gate)),
		attribute.String("route.model", cfg.Model),
		attribute.Bool("route.used_classifier", result.UsedClassifier),
	)
	r.metrics.RecordRoute(ctx, string(result.Mode), string(result.Gate), result.UsedClassifier, result.ClassifierFallback, elapsed)
	observability.LogRouteDecision(r.logger, observability.RouteFields{
		Mode:           string(result.Mode),
		Model:          cfg.Model,
		Gate:           string(result.Gate),
		Confidence:     result.Confidence,
		Uncertain:      result.Uncertain,
		UsedClassifier: result.UsedClassifier,
		Fallback:       result.ClassifierFallback,
		Risk:           string(result.RiskLevel),
		Effort:         string(cfg.ReasoningEffort),
		TotalTokens:    stats.TotalTokens,
		DurationMs:     float64(elapsed.Microseconds()) / 1000.0,
	})
	return result, nil
}

func (r *Router) applyClassifier(ctx context.Context, prompt string, stats tokens.ContextStats, opts RouteOptions, decision GateDecision, result *RouteResult) {
	if !decision.Uncertain {
		return
	}
	settings := r.registry.Classifier()
	backend := opts.Classifier
	if backend == nil {
		backend = r.classifier
	}
	switch {
	case backend == nil:
		observability.LogClassifierSkipped(r.logger, "no backend", stats.TotalTokens)
		return
	case !settings.Enabled:
		observability.LogClassifierSkipped(r.logger, "disabled", stats.TotalTokens)
		return
	case stats.TotalTokens < r.registry.Thresholds().ClassifierMinTokens:
		observability.LogClassifierSkipped(r.logger, "below token floor", stats.TotalTokens)
		return
	}

	result.UsedClassifier = true
	cctx, span := r.spans.StartClassifierSpan(ctx)
	callStart := time.Now()

	var res ClassifierResult
	var err error
	if r.limiter != nil && !r.limiter.Allow() {
		err = unavailable(errRateLimited)
	} else {
		res, err = ClassifyPrompt(cctx, backend, prompt, stats, settings.Timeout)
	}
	r.metrics.RecordClassifierCall(ctx, time.Since(callStart), err)
	r.spans.EndSpanWithError(span, err)

	if err != nil {
		result.ClassifierFallback = true
		result.Reason = decision.Reason + "; classifier unavailable, kept deterministic decision"
		observability.LogClassifierFallback(r.logger, err, string(decision.Mode))
		return
	}

	low := r.registry.Thresholds().UncertaintyLow
	if res.Mode != decision.Mode && res.Confidence > decision.Confidence && res.Confidence >= low {
		result.Mode = res.Mode
		result.Confidence = res.Confidence
		result.Gate = GateClassifier
		result.Reason = fmt.Sprintf("classifier chose %s (%.2f) over %s (%.2f)", res.Mode, res.Confidence, decision.Mode, decision.Confidence)
		if res.Reasoning != "" {
			result.Reason += ": " + res.Reasoning
		}
		observability.LogClassifierOverride(r.logger, string(decision.Mode), string(res.Mode), res.Confidence)
		return
	}
	result.Reason = fmt.Sprintf("%s; classifier consulted (%s %.2f), kept deterministic decision", decision.Reason, res.Mode, res.Confidence)
}

func validateInput(prompt string, stats *tokens.ContextStats, opts RouteOptions) error {
	if strings.TrimSpace(prompt) == "" {
		return &InvalidInputError{Field: "prompt", Reason: "empty"}
	}
	if stats == nil {
		return &InvalidInputError{Field: "stats", Reason: "missing"}
	}
	if err := stats.Validate(); err != nil {
		return &InvalidInputError{Field: "stats", Reason: "malformed", Err: err}
	}
	if opts.ForceMode != "" && !opts.ForceMode.Valid() {
		return &InvalidInputError{Field: "force_mode", Reason: fmt.Sprintf("unknown mode %q", opts.ForceMode)}
	}
	return nil
}

// ShouldUseRAG reports whether stats exceed this router's long-context
// ceiling.
func (r *Router) ShouldUseRAG(stats tokens.ContextStats) bool {
	return ShouldUseRAG(stats, r.registry.Thresholds().LongContextTokens)
}

// ShouldUseRAG reports whether stats exceed threshold.
func ShouldUseRAG(stats tokens.ContextStats, threshold int) bool {
	return tokens.NeedsRAGStrategy(stats, threshold)
}

// GetModelConfig returns the resolved configuration of result.
func GetModelConfig(result RouteResult) config.ModelConfig {
	return result.Config
}

// FormatRouteResult renders result as one log line.
func FormatRouteResult(result RouteResult) string {
	cfg := result.Config
	var sb strings.Builder
	fmt.Fprintf(&sb, "mode=%s model=%s effort=%s verbosity=%s gate=%s confidence=%.2f",
		result.Mode, cfg.Model, cfg.ReasoningEffort, cfg.Verbosity, result.Gate, result.Confidence)
	fmt.Fprintf(&sb, " classifier=%t", result.UsedClassifier)
	if result.ClassifierFallback {
		sb.WriteString(" fallback=true")
	}
	if cfg.UseRAG {
		fmt.Fprintf(&sb, " rag=%s", cfg.ReductionStrategy)
	}
	fmt.Fprintf(&sb, " risk=%s tokens=%s", result.RiskLevel, tokens.FormatTokenCount(result.Stats.TotalTokens))
	if result.EstimatedCostUSD > 0 {
		fmt.Fprintf(&sb, " cost=$%.4f", result.EstimatedCostUSD)
	}
	fmt.Fprintf(&sb, " reason=%q", result.Reason)
	return sb.String()
}
