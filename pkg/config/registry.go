package config

import (
	"sync"
)

// Registry is the read-only per-mode configuration table. It is built once
// and shared by all routing calls.
type Registry struct {
	env      BrainEnvConfig
	aliases  *ModelAliases
	configs  map[Mode]ModelConfig
	planPro  ModelConfig
	triggers []string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithAliases sets the alias table used to resolve model names and providers.
func WithAliases(a *ModelAliases) RegistryOption {
	return func(r *Registry) {
		if a != nil {
			r.aliases = a
		}
	}
}

// WithHighEffortTriggers replaces PlanHighEffortTriggers for this registry.
func WithHighEffortTriggers(triggers []string) RegistryOption {
	return func(r *Registry) {
		r.triggers = append([]string(nil), triggers...)
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry, loading it from the environment
// on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(LoadEnvConfig())
	})
	return defaultRegistry
}

// NewRegistry builds a registry from env. Unset fields, including a zero
// BrainEnvConfig, take the values of DefaultEnvConfig.
func NewRegistry(env BrainEnvConfig, opts ...RegistryOption) *Registry {
	def := DefaultEnvConfig()
	applyModeDefaults(&env.Plan, def.Plan)
	applyModeDefaults(&env.PlanPro, def.PlanPro)
	applyModeDefaults(&env.Consult, def.Consult)
	applyModeDefaults(&env.Batch, def.Batch)
	applyModeDefaults(&env.LongContext, def.LongContext)
	applyClassifierDefaults(&env.Classifier, def.Classifier)
	applyThresholdDefaults(&env.Thresholds)
	if env.Pricing == nil {
		env.Pricing = DefaultPricing()
	}
	if len(env.Rubric.Plan) == 0 && len(env.Rubric.Batch) == 0 && len(env.Rubric.Consult) == 0 {
		env.Rubric = DefaultRubric()
	}

	r := &Registry{
		env:      env,
		aliases:  DefaultAliases(),
		triggers: PlanHighEffortTriggers,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.configs = map[Mode]ModelConfig{
		ModePlan:        r.build(ModePlan, env.Plan),
		ModeConsult:     r.build(ModeConsult, env.Consult),
		ModeBatch:       r.build(ModeBatch, env.Batch),
		ModeLongContext: r.build(ModeLongContext, env.LongContext),
	}
	r.planPro = r.build(ModePlan, env.PlanPro)
	return r
}

func applyModeDefaults(s *ModeSettings, def ModeSettings) {
	if s.Model == "" {
		s.Model = def.Model
	}
	if s.ReasoningEffort.Rank() < 0 {
		s.ReasoningEffort = def.ReasoningEffort
	}
	if s.Verbosity.Rank() < 0 {
		s.Verbosity = def.Verbosity
	}
	if s.MaxOutputTokens <= 0 {
		s.MaxOutputTokens = def.MaxOutputTokens
	}
}

// applyClassifierDefaults treats an all-zero block as unset, so Enabled only
// defaults to true when nothing else was configured.
func applyClassifierDefaults(c *ClassifierSettings, def ClassifierSettings) {
	if *c == (ClassifierSettings{}) {
		*c = def
		return
	}
	if c.Provider == "" {
		c.Provider = def.Provider
	}
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.CacheSize <= 0 {
		c.CacheSize = def.CacheSize
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = def.CacheTTL
	}
}

func (r *Registry) build(mode Mode, s ModeSettings) ModelConfig {
	model := r.aliases.Resolve(s.Model)
	provider := s.Provider
	if provider == "" {
		provider = r.aliases.GetProviderForModel(model)
	}
	return ModelConfig{
		Mode:            mode,
		Model:           model,
		Provider:        provider,
		ReasoningEffort: s.ReasoningEffort,
		Verbosity:       s.Verbosity,
		MaxOutputTokens: s.MaxOutputTokens,
		SystemPrompt:    SystemPromptFor(mode),
	}
}

// PlanConfig returns the standard PLAN tier.
func (r *Registry) PlanConfig() ModelConfig { return r.configs[ModePlan] }

// PlanProConfig returns the escalated PLAN tier.
func (r *Registry) PlanProConfig() ModelConfig { return r.planPro }

// ConsultConfig returns the CONSULT configuration.
func (r *Registry) ConsultConfig() ModelConfig { return r.configs[ModeConsult] }

// BatchConfig returns the BATCH configuration.
func (r *Registry) BatchConfig() ModelConfig { return r.configs[ModeBatch] }

// LongContextConfig returns the LONG_CONTEXT configuration.
func (r *Registry) LongContextConfig() ModelConfig { return r.configs[ModeLongContext] }

// AllModeConfigs returns a copy of the base configuration of every mode.
func (r *Registry) AllModeConfigs() map[Mode]ModelConfig {
	out := make(map[Mode]ModelConfig, len(r.configs))
	for m, c := range r.configs {
		out[m] = c
	}
	return out
}

// ModeConfig returns the base configuration for mode. Unknown modes get the
// CONSULT configuration.
func (r *Registry) ModeConfig(mode Mode) ModelConfig {
	if c, ok := r.configs[mode]; ok {
		return c
	}
	return r.configs[ModeConsult]
}

// ResolveModelConfig applies escalation to the base configuration of mode.
// PLAN escalates to the pro tier; other modes raise effort one step. The
// returned effort is never lower than the base effort.
func (r *Registry) ResolveModelConfig(mode Mode, risk RiskLevel, triggered bool) ModelConfig {
	base := r.ModeConfig(mode)
	if risk != RiskHigh && !triggered {
		return base
	}

	if base.Mode == ModePlan {
		pro := r.planPro
		if pro.ReasoningEffort.Rank() < base.ReasoningEffort.Rank() {
			pro.ReasoningEffort = base.ReasoningEffort
		}
		return pro
	}

	escalated := base
	escalated.ReasoningEffort = base.ReasoningEffort.Raise()
	return escalated
}

// RequiresHighReasoningEffort reports whether prompt contains any high-effort
// trigger phrase.
func (r *Registry) RequiresHighReasoningEffort(prompt string) bool {
	for _, t := range r.triggers {
		if ContainsPhrase(prompt, t) {
			return true
		}
	}
	return false
}

// MatchedHighEffortTriggers returns the trigger phrases found in prompt.
func (r *Registry) MatchedHighEffortTriggers(prompt string) []string {
	return MatchPhrases(prompt, r.triggers)
}

// HighEffortTriggers returns a copy of the trigger list in use.
func (r *Registry) HighEffortTriggers() []string {
	return append([]string(nil), r.triggers...)
}

// DetermineVerbosity returns the verbosity for mode given the context size.
func (r *Registry) DetermineVerbosity(mode Mode, contextTokens int) Verbosity {
	return r.ScaleVerbosity(r.ModeConfig(mode).Verbosity, mode, contextTokens)
}

// ScaleVerbosity adjusts base for mode and context size. BATCH is always low.
// Context above half the long-context ceiling drops one step; above the
// ceiling it drops to low.
func (r *Registry) ScaleVerbosity(base Verbosity, mode Mode, contextTokens int) Verbosity {
	if mode == ModeBatch {
		return VerbosityLow
	}
	ceiling := r.env.Thresholds.LongContextTokens
	switch {
	case contextTokens > ceiling:
		return VerbosityLow
	case contextTokens > ceiling/2:
		return base.Lower()
	}
	return base
}

// SystemPromptForMode returns the system prompt for mode.
func (r *Registry) SystemPromptForMode(mode Mode) string {
	return SystemPromptFor(mode)
}

// Thresholds returns the routing thresholds.
func (r *Registry) Thresholds() Thresholds { return r.env.Thresholds }

// Rubric returns the scoring rubric. Callers must not modify its slices.
func (r *Registry) Rubric() Rubric { return r.env.Rubric }

// Classifier returns the classifier gate settings.
func (r *Registry) Classifier() ClassifierSettings { return r.env.Classifier }

// Aliases returns the model alias table.
func (r *Registry) Aliases() *ModelAliases { return r.aliases }

// Pricing returns the per-model pricing table.
func (r *Registry) Pricing() PricingConfig { return r.env.Pricing }

// Env returns the configuration the registry was built from.
func (r *Registry) Env() BrainEnvConfig { return r.env }
