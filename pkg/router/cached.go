package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/zen-systems/brainroute/pkg/cache"
	"github.com/zen-systems/brainroute/pkg/observability"
	"github.com/zen-systems/brainroute/pkg/tokens"
)

// DefaultCallTimeout bounds a shared backend call when no timeout is set.
const DefaultCallTimeout = 3 * time.Second

// CachedBackend memoizes a Backend by (prompt, context fingerprint).
// Concurrent identical requests share one backend call. Failures are not
// cached.
type CachedBackend struct {
	backend     Backend
	cache       cache.Cache
	ttl         time.Duration
	callTimeout time.Duration
	metrics     observability.MetricsRecorder
	spans       observability.SpanManager
	group       singleflight.Group
}

// CachedOption configures a CachedBackend.
type CachedOption func(*CachedBackend)

// WithCallTimeout bounds the shared backend call, which ignores caller
// cancellation.
func WithCallTimeout(d time.Duration) CachedOption {
	return func(b *CachedBackend) {
		if d > 0 {
			b.callTimeout = d
		}
	}
}

// WithCacheTracer records cache hits as span events.
func WithCacheTracer(s observability.SpanManager) CachedOption {
	return func(b *CachedBackend) {
		if s != nil {
			b.spans = s
		}
	}
}

// NewCachedBackend wraps backend. A nil cache gets an in-memory LRU; a nil
// recorder records nothing.
func NewCachedBackend(backend Backend, c cache.Cache, ttl time.Duration, metrics observability.MetricsRecorder, opts ...CachedOption) *CachedBackend {
	if c == nil {
		c = cache.NewMemory(cache.DefaultMemorySize)
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	b := &CachedBackend{
		backend:     backend,
		cache:       c,
		ttl:         ttl,
		callTimeout: DefaultCallTimeout,
		metrics:     metrics,
		spans:       observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Classify returns a cached result or calls the wrapped backend. Callers
// joining an in-flight call wait on their own context; cancelling one
// caller never fails the others.
func (b *CachedBackend) Classify(ctx context.Context, prompt string, stats tokens.ContextStats) (ClassifierResult, error) {
	key := Fingerprint(prompt, stats)

	if res, ok := b.lookup(ctx, key); ok {
		b.metrics.RecordCacheLookup(ctx, true)
		b.spans.AddSpanEvent(ctx, "classifier.cache_hit", attribute.String("classifier.mode", string(res.Mode)))
		return res, nil
	}
	b.metrics.RecordCacheLookup(ctx, false)

	ch := b.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.callTimeout)
		defer cancel()

		res, err := b.backend.Classify(callCtx, prompt, stats)
		if err != nil {
			return ClassifierResult{}, err
		}
		if res, err = res.validate(); err != nil {
			return ClassifierResult{}, err
		}
		if data, err := json.Marshal(res); err == nil {
			// A failed write only costs a later miss.
			_ = b.cache.Set(callCtx, key, data, b.ttl)
		}
		return res, nil
	})

	select {
	case out := <-ch:
		if out.Err != nil {
			return ClassifierResult{}, out.Err
		}
		return out.Val.(ClassifierResult), nil
	case <-ctx.Done():
		return ClassifierResult{}, ctx.Err()
	}
}

func (b *CachedBackend) lookup(ctx context.Context, key string) (ClassifierResult, bool) {
	data, err := b.cache.Get(ctx, key)
	if err != nil {
		// Store errors degrade to a miss.
		return ClassifierResult{}, false
	}
	var res ClassifierResult
	if err := json.Unmarshal(data, &res); err != nil {
		return ClassifierResult{}, false
	}
	res, err = res.validate()
	return res, err == nil
}

// ClassifyPromptCached is ClassifyPrompt over a memoizing backend.
func ClassifyPromptCached(ctx context.Context, backend *CachedBackend, prompt string, stats tokens.ContextStats, timeout time.Duration) (ClassifierResult, error) {
	if backend == nil {
		return ClassifierResult{}, unavailable(fmt.Errorf("no classifier backend"))
	}
	return ClassifyPrompt(ctx, backend, prompt, stats, timeout)
}

// Fingerprint is the cache key for a classifier request.
func Fingerprint(prompt string, stats tokens.ContextStats) string {
	h := sha256.New()
	h.Write([]byte(prompt))
	fmt.Fprintf(h, "\x00%d:%d:%d:%d:%d:%d:%d:%d",
		stats.TotalTokens, stats.BusinessRuleTokens, stats.FlowSpecTokens,
		stats.RegistryItemTokens, stats.PersonaTokens, stats.ProductProfileTokens,
		stats.MessageTokens, stats.MessageCount)
	return hex.EncodeToString(h.Sum(nil))
}
