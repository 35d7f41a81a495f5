package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/zen-systems/brainroute/pkg/cache"
	"github.com/zen-systems/brainroute/pkg/config"
	"github.com/zen-systems/brainroute/pkg/tokens"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestRouter(t *testing.T, opts ...Option) *Router {
	t.Helper()
	return New(testRegistry(t), append([]Option{WithLogger(quietLogger)}, opts...)...)
}

func mustRoute(t *testing.T, r *Router, prompt string, stats tokens.ContextStats, opts RouteOptions) RouteResult {
	t.Helper()
	res, err := r.Route(context.Background(), prompt, &stats, opts)
	require.NoError(t, err, prompt)
	return res
}

func TestRoute_ScenarioA_ShortQuestion(t *testing.T) {
	var calls int32
	r := newTestRouter(t, WithClassifier(stubBackend(config.ModeBatch, 0.9, &calls)))

	res := mustRoute(t, r, "How do I reset a password?", tokens.ContextStats{TotalTokens: 200}, RouteOptions{})
	require.Equal(t, config.ModeConsult, res.Mode, res.Reason)
	assert.False(t, res.UsedClassifier)
	assert.Zero(t, calls, "classifier should not run")
	assert.Equal(t, "gpt-5-mini", res.Config.Model)
}

func TestRoute_ScenarioB_RiskyRefactor(t *testing.T) {
	r := newTestRouter(t)
	prompt := "Refactor the entire checkout state machine and resolve the conflicting retry rules"

	res := mustRoute(t, r, prompt, tokens.ContextStats{TotalTokens: 3000}, RouteOptions{})
	require.Equal(t, config.ModePlan, res.Mode, res.Reason)
	assert.Equal(t, config.EffortHigh, res.Config.ReasoningEffort)
	assert.True(t, res.HighEffortTriggered)
	assert.Subset(t, res.MatchedTriggers, []string{"refactor", "conflicting"})
	assert.Equal(t, r.Registry().PlanProConfig().MaxOutputTokens, res.Config.MaxOutputTokens, "expected plan-pro tier")
	assert.Greater(t, res.EstimatedCostUSD, 0.0)
}

func TestRoute_ScenarioC_LongContext(t *testing.T) {
	r := newTestRouter(t)
	over := r.Registry().Thresholds().LongContextTokens + 1

	res := mustRoute(t, r, "Refactor the schema architecture", tokens.ContextStats{TotalTokens: over}, RouteOptions{})
	require.Equal(t, config.ModeLongContext, res.Mode)
	assert.True(t, res.Config.UseRAG)
	assert.Equal(t, RAGStrategy, res.Config.ReductionStrategy)
	assert.Equal(t, config.VerbosityLow, res.Config.Verbosity)
	assert.False(t, res.UsedClassifier, "classifier should not run for long context")
}

func TestRoute_ScenarioD_ClassifierOverride(t *testing.T) {
	var calls int32
	r := newTestRouter(t, WithClassifier(stubBackend(config.ModeBatch, 0.9, &calls)))

	res := mustRoute(t, r, "update the thing", tokens.ContextStats{TotalTokens: 500}, RouteOptions{})
	require.Equal(t, config.ModeBatch, res.Mode, res.Reason)
	assert.True(t, res.UsedClassifier)
	assert.False(t, res.ClassifierFallback)
	assert.True(t, res.Uncertain, "deterministic gate should be recorded as uncertain")
	assert.Equal(t, GateClassifier, res.Gate)
	assert.Equal(t, 0.9, res.Confidence)
	assert.Equal(t, config.ModeBatch, res.Config.Mode)
	assert.Equal(t, config.VerbosityLow, res.Config.Verbosity)
	assert.Equal(t, int32(1), calls)
}

func TestRoute_ClassifierKeepsDeterministicMode(t *testing.T) {
	tests := []struct {
		name       string
		mode       config.Mode
		confidence float64
	}{
		{"below uncertainty floor", config.ModeBatch, 0.2},
		{"agrees", config.ModeConsult, 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, WithClassifier(stubBackend(tt.mode, tt.confidence, nil)))
			res := mustRoute(t, r, "update the thing", tokens.ContextStats{TotalTokens: 500}, RouteOptions{})
			require.Equal(t, config.ModeConsult, res.Mode)
			require.Equal(t, GateDeterministic, res.Gate)
			assert.True(t, res.UsedClassifier)
			assert.False(t, res.ClassifierFallback)
			assert.Contains(t, res.Reason, "classifier consulted")
		})
	}
}

func TestRoute_ClassifierSkipped(t *testing.T) {
	disabled := config.DefaultEnvConfig()
	disabled.Classifier.Enabled = false

	tests := []struct {
		name  string
		reg   *config.Registry
		total int
	}{
		{"below token floor", config.NewRegistry(config.DefaultEnvConfig()), 200},
		{"disabled", config.NewRegistry(disabled), 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			r := New(tt.reg, WithLogger(quietLogger), WithClassifier(stubBackend(config.ModeBatch, 0.9, &calls)))
			res := mustRoute(t, r, "update the thing", tokens.ContextStats{TotalTokens: tt.total}, RouteOptions{})
			require.False(t, res.UsedClassifier)
			require.Zero(t, calls, "classifier should be skipped")
			assert.Equal(t, config.ModeConsult, res.Mode)
			assert.True(t, res.Uncertain)
		})
	}
}

func TestRoute_ClassifierFailureMatchesDeterministic(t *testing.T) {
	fast := config.DefaultEnvConfig()
	fast.Classifier.Timeout = 20 * time.Millisecond
	reg := config.NewRegistry(fast)

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	prompt := "update the thing"
	stats := tokens.ContextStats{TotalTokens: 500}
	baseline, err := New(reg, WithLogger(quietLogger)).Route(context.Background(), prompt, &stats, RouteOptions{})
	require.NoError(t, err)

	tests := []struct {
		name    string
		backend Backend
		limiter *rate.Limiter
	}{
		{
			name: "error",
			backend: BackendFunc(func(context.Context, string, tokens.ContextStats) (ClassifierResult, error) {
				return ClassifierResult{}, errors.New("provider down")
			}),
		},
		{
			name: "panic",
			backend: BackendFunc(func(context.Context, string, tokens.ContextStats) (ClassifierResult, error) {
				panic("boom")
			}),
		},
		{
			name: "timeout",
			backend: BackendFunc(func(context.Context, string, tokens.ContextStats) (ClassifierResult, error) {
				<-release
				return ClassifierResult{Mode: config.ModeBatch, Confidence: 0.9}, nil
			}),
		},
		{
			name: "invalid payload",
			backend: BackendFunc(func(context.Context, string, tokens.ContextStats) (ClassifierResult, error) {
				return ClassifierResult{Mode: "SUMMARIZE", Confidence: 0.9}, nil
			}),
		},
		{
			name:    "rate limited",
			backend: stubBackend(config.ModeBatch, 0.9, nil),
			limiter: rate.NewLimiter(0, 0),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []Option{WithLogger(quietLogger), WithClassifier(tt.backend)}
			if tt.limiter != nil {
				opts = append(opts, WithLimiter(tt.limiter))
			}
			res, err := New(reg, opts...).Route(context.Background(), prompt, &stats, RouteOptions{})
			require.NoError(t, err, "classifier failure must not surface")
			require.True(t, res.UsedClassifier)
			require.True(t, res.ClassifierFallback)
			assert.Contains(t, res.Reason, "classifier unavailable")

			normalized := res
			normalized.UsedClassifier = false
			normalized.ClassifierFallback = false
			normalized.Reason = baseline.Reason
			assert.Equal(t, baseline, normalized, "fallback result differs from deterministic result")
		})
	}
}

func TestRoute_PerCallClassifier(t *testing.T) {
	var defaultCalls, callCalls int32
	r := newTestRouter(t, WithClassifier(stubBackend(config.ModePlan, 0.9, &defaultCalls)))

	res := mustRoute(t, r, "update the thing", tokens.ContextStats{TotalTokens: 500}, RouteOptions{
		Classifier: stubBackend(config.ModeBatch, 0.8, &callCalls),
	})
	require.Equal(t, config.ModeBatch, res.Mode, "per-call backend should decide")
	assert.Zero(t, defaultCalls)
	assert.Equal(t, int32(1), callCalls)
}

func TestRoute_CachedClassifier(t *testing.T) {
	var calls int32
	r := newTestRouter(t,
		WithClassifier(stubBackend(config.ModeBatch, 0.9, &calls)),
		WithCache(cache.NewMemory(16)),
	)
	for i := 0; i < 3; i++ {
		res := mustRoute(t, r, "update the thing", tokens.ContextStats{TotalTokens: 500}, RouteOptions{})
		require.Equal(t, config.ModeBatch, res.Mode)
	}
	assert.Equal(t, int32(1), calls, "expected one backend call across retries")
}

func TestRoute_Forced(t *testing.T) {
	var calls int32
	r := newTestRouter(t, WithClassifier(stubBackend(config.ModePlan, 0.9, &calls)))

	res := mustRoute(t, r, "update the thing", tokens.ContextStats{TotalTokens: 500}, RouteOptions{
		ForceMode:  config.ModeBatch,
		ForceModel: "quality",
	})
	require.Equal(t, config.ModeBatch, res.Mode)
	require.Equal(t, GateForced, res.Gate)
	assert.Equal(t, 1.0, res.Confidence)
	assert.False(t, res.UsedClassifier, "forced mode must skip the classifier")
	assert.Zero(t, calls)
	assert.Equal(t, "claude-sonnet-4-20250514", res.Config.Model, "forced model alias should resolve")
	assert.Equal(t, "anthropic", res.Config.Provider)
	assert.Zero(t, res.EstimatedCostUSD, "unpriced model should have no cost estimate")
}

func TestRoute_ForcedModelWithoutAlias(t *testing.T) {
	r := newTestRouter(t)
	stats := tokens.ContextStats{TotalTokens: 500}

	plain := mustRoute(t, r, "update the thing", stats, RouteOptions{ForceMode: config.ModeBatch})
	res := mustRoute(t, r, "update the thing", stats, RouteOptions{
		ForceMode:  config.ModeBatch,
		ForceModel: "local-finetune-7b",
	})
	assert.Equal(t, "local-finetune-7b", res.Config.Model, "a model that is not an alias is used as given")
	assert.Equal(t, plain.Config.Provider, res.Config.Provider, "an unknown model keeps the mode's provider")
}

func TestRoute_Idempotent(t *testing.T) {
	r := newTestRouter(t, WithClassifier(stubBackend(config.ModeBatch, 0.9, nil)))
	inputs := []struct {
		prompt string
		total  int
	}{
		{"update the thing", 500},
		{"Refactor the entire checkout state machine and resolve the conflicting retry rules", 3000},
		{"How do I reset a password?", 200},
		{"anything", 250000},
	}
	for _, in := range inputs {
		first := mustRoute(t, r, in.prompt, tokens.ContextStats{TotalTokens: in.total}, RouteOptions{})
		second := mustRoute(t, r, in.prompt, tokens.ContextStats{TotalTokens: in.total}, RouteOptions{})
		assert.Equal(t, first, second, in.prompt)
	}
}

func TestRoute_ConcurrentCalls(t *testing.T) {
	r := newTestRouter(t, WithClassifier(stubBackend(config.ModeBatch, 0.9, nil)))
	want := mustRoute(t, r, "update the thing", tokens.ContextStats{TotalTokens: 500}, RouteOptions{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats := tokens.ContextStats{TotalTokens: 500}
			got, err := r.Route(context.Background(), "update the thing", &stats, RouteOptions{})
			assert.NoError(t, err)
			assert.Equal(t, want, got, "concurrent route diverged")
		}()
	}
	wg.Wait()
}

func TestRoute_InvalidInput(t *testing.T) {
	r := newTestRouter(t)
	valid := tokens.ContextStats{TotalTokens: 100}

	tests := []struct {
		name      string
		prompt    string
		stats     *tokens.ContextStats
		opts      RouteOptions
		field     string
		wantStats bool
	}{
		{name: "empty prompt", prompt: "", stats: &valid, field: "prompt"},
		{name: "blank prompt", prompt: "  \n\t", stats: &valid, field: "prompt"},
		{name: "nil stats", prompt: "hello", stats: nil, field: "stats"},
		{name: "negative stats", prompt: "hello", stats: &tokens.ContextStats{TotalTokens: -1}, field: "stats", wantStats: true},
		{
			name:      "breakdown mismatch",
			prompt:    "hello",
			stats:     &tokens.ContextStats{TotalTokens: 1000, MessageTokens: 10},
			field:     "stats",
			wantStats: true,
		},
		{name: "unknown forced mode", prompt: "hello", stats: &valid, opts: RouteOptions{ForceMode: "SUMMARIZE"}, field: "force_mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Route(context.Background(), tt.prompt, tt.stats, tt.opts)
			require.ErrorIs(t, err, ErrInvalidInput)
			var inv *InvalidInputError
			require.ErrorAs(t, err, &inv)
			assert.Equal(t, tt.field, inv.Field)
			if tt.wantStats {
				assert.ErrorIs(t, err, tokens.ErrInvalidStats)
			}
		})
	}
}

func TestRoute_CalculatedStats(t *testing.T) {
	r := newTestRouter(t)
	ctx := tokens.Context{
		Messages: []tokens.Message{
			{Role: "user", Content: "We need onboarding for new admins"},
			{Role: "assistant", Content: "Which personas should it cover?"},
		},
	}
	stats := tokens.CalculateContextStats(ctx, r.Registry().Thresholds().LongContextTokens)

	res := mustRoute(t, r, "How do I reset a password?", stats, RouteOptions{})
	assert.Equal(t, stats, res.Stats, "result should carry the input stats")
}

func TestFormatRouteResult(t *testing.T) {
	r := newTestRouter(t)
	res := mustRoute(t, r, "Refactor the entire checkout state machine and resolve the conflicting retry rules",
		tokens.ContextStats{TotalTokens: 3000}, RouteOptions{})

	line := FormatRouteResult(res)
	for _, want := range []string{"mode=PLAN", "effort=high", "gate=deterministic", "classifier=false", "tokens=3k", "reason="} {
		assert.Contains(t, line, want)
	}
	assert.NotContains(t, line, "\n", "expected a single line")
	assert.Equal(t, res.Config, GetModelConfig(res))
}

func TestShouldUseRAG(t *testing.T) {
	r := newTestRouter(t)
	ceiling := r.Registry().Thresholds().LongContextTokens
	assert.False(t, r.ShouldUseRAG(tokens.ContextStats{TotalTokens: ceiling}), "context at the ceiling should not need RAG")
	assert.True(t, r.ShouldUseRAG(tokens.ContextStats{TotalTokens: ceiling + 1}))
	assert.True(t, ShouldUseRAG(tokens.ContextStats{TotalTokens: 11}, 10), "explicit threshold should be honoured")
}

type recordingMetrics struct {
	mu     sync.Mutex
	routes []string
	calls  int
	errs   int
}

func (m *recordingMetrics) RecordRoute(_ context.Context, mode, gate string, usedClassifier, fallback bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append(m.routes, mode+"/"+gate)
}

func (m *recordingMetrics) RecordClassifierCall(_ context.Context, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err != nil {
		m.errs++
	}
}

func (m *recordingMetrics) RecordCacheLookup(context.Context, bool) {}

func (m *recordingMetrics) RecordContextTokens(context.Context, int) {}

func TestRoute_RecordsMetrics(t *testing.T) {
	metrics := &recordingMetrics{}
	r := newTestRouter(t, WithMetrics(metrics), WithClassifier(stubBackend(config.ModeBatch, 0.9, nil)))

	mustRoute(t, r, "update the thing", tokens.ContextStats{TotalTokens: 500}, RouteOptions{})
	mustRoute(t, r, "How do I reset a password?", tokens.ContextStats{TotalTokens: 200}, RouteOptions{})

	assert.Equal(t, []string{"BATCH/classifier", "CONSULT/deterministic"}, metrics.routes)
	assert.Equal(t, 1, metrics.calls)
	assert.Zero(t, metrics.errs)
}
