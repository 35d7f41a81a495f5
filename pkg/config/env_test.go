package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadEnvConfigDefaults(t *testing.T) {
	cfg := LoadEnvConfigFrom(mapLookup(nil))
	require.Empty(t, cfg.Issues)

	tests := []struct {
		name string
		got  ModeSettings
		want ModeSettings
	}{
		{"plan", cfg.Plan, ModeSettings{Model: "gpt-5", ReasoningEffort: EffortMedium, Verbosity: VerbosityMedium, MaxOutputTokens: 8000}},
		{"plan pro", cfg.PlanPro, ModeSettings{Model: "gpt-5", ReasoningEffort: EffortHigh, Verbosity: VerbosityHigh, MaxOutputTokens: 16000}},
		{"consult", cfg.Consult, ModeSettings{Model: "gpt-5-mini", ReasoningEffort: EffortLow, Verbosity: VerbosityMedium, MaxOutputTokens: 4000}},
		{"batch", cfg.Batch, ModeSettings{Model: "gpt-5-nano", ReasoningEffort: EffortLow, Verbosity: VerbosityLow, MaxOutputTokens: 4000}},
		{"long context", cfg.LongContext, ModeSettings{Model: "gpt-4.1", ReasoningEffort: EffortMedium, Verbosity: VerbosityLow, MaxOutputTokens: 6000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}

	assert.Equal(t, DefaultThresholds, cfg.Thresholds)
	assert.Equal(t, ClassifierSettings{
		Enabled:   true,
		Provider:  "openai",
		Model:     "gpt-5-nano",
		Timeout:   3 * time.Second,
		CacheSize: 512,
		CacheTTL:  time.Hour,
	}, cfg.Classifier)
}

func TestLoadEnvConfigOverrides(t *testing.T) {
	cfg := LoadEnvConfigFrom(mapLookup(map[string]string{
		"BRAIN_PLAN_MODEL":             "pro",
		"BRAIN_PLAN_EFFORT":            "HIGH",
		"BRAIN_BATCH_VERBOSITY":        "medium",
		"BRAIN_CONSULT_MAX_TOKENS":     "1234",
		"BRAIN_LONG_CONTEXT_THRESHOLD": "50000",
		"BRAIN_UNCERTAINTY_LOW":        "0.2",
		"BRAIN_UNCERTAINTY_HIGH":       "0.8",
		"BRAIN_CLASSIFIER_MIN_TOKENS":  "0",
		"BRAIN_CLASSIFIER_ENABLED":     "false",
		"BRAIN_CLASSIFIER_PROVIDER":    "anthropic",
		"BRAIN_CLASSIFIER_MODEL":       "fast",
		"BRAIN_CLASSIFIER_TIMEOUT":     "1500",
		"BRAIN_CLASSIFIER_RPS":         "2.5",
		"BRAIN_CLASSIFIER_CACHE_TTL":   "10m",
		"BRAIN_REDIS_URL":              "redis://localhost:6379/0",
	}))
	require.Empty(t, cfg.Issues)

	assert.Equal(t, "pro", cfg.Plan.Model)
	assert.Equal(t, EffortHigh, cfg.Plan.ReasoningEffort)
	assert.Equal(t, VerbosityMedium, cfg.Batch.Verbosity)
	assert.Equal(t, 1234, cfg.Consult.MaxOutputTokens)

	th := cfg.Thresholds
	assert.Equal(t, 50000, th.LongContextTokens)
	assert.Equal(t, 0.2, th.UncertaintyLow)
	assert.Equal(t, 0.8, th.UncertaintyHigh)
	assert.Equal(t, 0, th.ClassifierMinTokens)

	c := cfg.Classifier
	assert.False(t, c.Enabled)
	assert.Equal(t, "anthropic", c.Provider)
	assert.Equal(t, "fast", c.Model)
	assert.Equal(t, 1500*time.Millisecond, c.Timeout)
	assert.Equal(t, 2.5, c.RPS)
	assert.Equal(t, 10*time.Minute, c.CacheTTL)
	assert.Equal(t, "redis://localhost:6379/0", c.RedisURL)
}

func TestLoadEnvConfigInvalidValuesFallBack(t *testing.T) {
	tests := []struct {
		key   string
		value string
		check func(BrainEnvConfig) bool
	}{
		{"BRAIN_PLAN_EFFORT", "extreme", func(c BrainEnvConfig) bool { return c.Plan.ReasoningEffort == EffortMedium }},
		{"BRAIN_CONSULT_VERBOSITY", "chatty", func(c BrainEnvConfig) bool { return c.Consult.Verbosity == VerbosityMedium }},
		{"BRAIN_BATCH_MAX_TOKENS", "-5", func(c BrainEnvConfig) bool { return c.Batch.MaxOutputTokens == 4000 }},
		{"BRAIN_BATCH_MAX_TOKENS", "lots", func(c BrainEnvConfig) bool { return c.Batch.MaxOutputTokens == 4000 }},
		{"BRAIN_LONG_CONTEXT_THRESHOLD", "0", func(c BrainEnvConfig) bool { return c.Thresholds.LongContextTokens == 100000 }},
		{"BRAIN_UNCERTAINTY_LOW", "1.5", func(c BrainEnvConfig) bool { return c.Thresholds.UncertaintyLow == 0.35 }},
		{"BRAIN_UNCERTAINTY_LOW", "0", func(c BrainEnvConfig) bool { return c.Thresholds.UncertaintyLow == 0.35 }},
		{"BRAIN_UNCERTAINTY_HIGH", "abc", func(c BrainEnvConfig) bool { return c.Thresholds.UncertaintyHigh == 0.70 }},
		{"BRAIN_UNCERTAINTY_HIGH", "0", func(c BrainEnvConfig) bool { return c.Thresholds.UncertaintyHigh == 0.70 }},
		{"BRAIN_CLASSIFIER_ENABLED", "maybe", func(c BrainEnvConfig) bool { return c.Classifier.Enabled }},
		{"BRAIN_CLASSIFIER_TIMEOUT", "-1s", func(c BrainEnvConfig) bool { return c.Classifier.Timeout == 3*time.Second }},
		{"BRAIN_CLASSIFIER_RPS", "-1", func(c BrainEnvConfig) bool { return c.Classifier.RPS == 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := LoadEnvConfigFrom(mapLookup(map[string]string{tt.key: tt.value}))
			assert.True(t, tt.check(cfg), "default not kept for %s=%q", tt.key, tt.value)
			require.Len(t, cfg.Issues, 1)

			issue := cfg.Issues[0]
			assert.Equal(t, tt.key, issue.Key)
			assert.Equal(t, tt.value, issue.Value)
			assert.True(t, errors.Is(issue, ErrConfig))
		})
	}
}

func TestLoadEnvConfigInvertedBand(t *testing.T) {
	cfg := LoadEnvConfigFrom(mapLookup(map[string]string{
		"BRAIN_UNCERTAINTY_LOW":  "0.9",
		"BRAIN_UNCERTAINTY_HIGH": "0.5",
	}))
	assert.Equal(t, 0.35, cfg.Thresholds.UncertaintyLow)
	assert.Equal(t, 0.70, cfg.Thresholds.UncertaintyHigh)
	assert.Len(t, cfg.Issues, 1)
}

func TestLoadEnvConfigYAMLFile(t *testing.T) {
	path := writeConfigFile(t, "brain.yaml", `modes:
  batch:
    model: mini
    verbosity: medium
  plan-pro:
    reasoning_effort: bogus
thresholds:
  long_context_tokens: 20000
classifier:
  enabled: false
  timeout: 2s
rubric:
  batch:
    - phrase: sweep
      weight: 3
pricing:
  mini-model:
    prompt_per_1k: 0.1
`)

	cfg := LoadEnvConfigFrom(mapLookup(map[string]string{
		"BRAIN_CONFIG_FILE":            path,
		"BRAIN_LONG_CONTEXT_THRESHOLD": "30000",
	}))

	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, "mini", cfg.Batch.Model)
	assert.Equal(t, VerbosityMedium, cfg.Batch.Verbosity)
	assert.Equal(t, EffortHigh, cfg.PlanPro.ReasoningEffort, "invalid file effort should keep default")
	assert.Equal(t, 30000, cfg.Thresholds.LongContextTokens, "env should win over file")
	assert.False(t, cfg.Classifier.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Classifier.Timeout)

	require.Len(t, cfg.Rubric.Batch, 1)
	assert.Equal(t, "sweep", cfg.Rubric.Batch[0].Phrase)
	assert.NotEmpty(t, cfg.Rubric.Plan, "unset rubric sections should keep defaults")
	assert.Contains(t, cfg.Pricing, "mini-model")
	assert.Contains(t, cfg.Pricing, "gpt-5", "default pricing lost")

	require.Len(t, cfg.Issues, 1)
	assert.Equal(t, "modes.plan-pro.reasoning_effort", cfg.Issues[0].Key)
}

func TestLoadEnvConfigTOMLFile(t *testing.T) {
	path := writeConfigFile(t, "brain.toml", `[modes.long_context]
model = "research"
max_output_tokens = 9000

[thresholds]
classifier_min_tokens = 600
`)

	cfg := LoadEnvConfigFrom(mapLookup(map[string]string{"BRAIN_CONFIG_FILE": path}))
	require.Empty(t, cfg.Issues)
	assert.Equal(t, "research", cfg.LongContext.Model)
	assert.Equal(t, 9000, cfg.LongContext.MaxOutputTokens)
	assert.Equal(t, 600, cfg.Thresholds.ClassifierMinTokens)
}

func TestLoadEnvConfigFileBandOutOfRange(t *testing.T) {
	path := writeConfigFile(t, "brain.yaml", `thresholds:
  uncertainty_low: -0.1
  uncertainty_high: 1.5
`)

	cfg := LoadEnvConfigFrom(mapLookup(map[string]string{"BRAIN_CONFIG_FILE": path}))
	assert.Equal(t, 0.35, cfg.Thresholds.UncertaintyLow)
	assert.Equal(t, 0.70, cfg.Thresholds.UncertaintyHigh)

	require.Len(t, cfg.Issues, 2)
	assert.Equal(t, "thresholds.uncertainty_low", cfg.Issues[0].Key)
	assert.Equal(t, "thresholds.uncertainty_high", cfg.Issues[1].Key)
	assert.Equal(t, "1.5", cfg.Issues[1].Value)
}

func TestLoadEnvConfigBadFile(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "brain.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("modes: [not, a, map"), 0644))

	for _, path := range []string{bad, filepath.Join(dir, "missing.yaml"), filepath.Join(dir, "brain.ini")} {
		cfg := LoadEnvConfigFrom(mapLookup(map[string]string{"BRAIN_CONFIG_FILE": path}))
		assert.Empty(t, cfg.Source, path)
		if assert.Len(t, cfg.Issues, 1, path) {
			assert.Equal(t, "BRAIN_CONFIG_FILE", cfg.Issues[0].Key, path)
		}
		assert.Equal(t, "gpt-5", cfg.Plan.Model, "%s: defaults lost", path)
	}
}
