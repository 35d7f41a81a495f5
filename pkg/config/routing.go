package config

// Thresholds holds the numeric cut-offs used by the routing gates.
type Thresholds struct {
	// LongContextTokens is the ceiling above which LONG_CONTEXT wins outright.
	LongContextTokens int `yaml:"long_context_tokens,omitempty" toml:"long_context_tokens,omitempty"`
	// UncertaintyLow is the minimum classifier confidence allowed to override.
	UncertaintyLow float64 `yaml:"uncertainty_low,omitempty" toml:"uncertainty_low,omitempty"`
	// UncertaintyHigh is the deterministic confidence at or above which a
	// decision counts as certain.
	UncertaintyHigh float64 `yaml:"uncertainty_high,omitempty" toml:"uncertainty_high,omitempty"`
	// ClassifierMinTokens is the context size below which the classifier is
	// never consulted.
	ClassifierMinTokens int `yaml:"classifier_min_tokens,omitempty" toml:"classifier_min_tokens,omitempty"`
	// RubricMinScore is the minimum winning rubric score for a certain decision.
	RubricMinScore float64 `yaml:"rubric_min_score,omitempty" toml:"rubric_min_score,omitempty"`
	// RubricMargin is the minimum lead over the runner-up for a certain decision.
	RubricMargin float64 `yaml:"rubric_margin,omitempty" toml:"rubric_margin,omitempty"`
	// RubricSaturation is the score at which rubric strength stops growing.
	RubricSaturation float64 `yaml:"rubric_saturation,omitempty" toml:"rubric_saturation,omitempty"`
}

// DefaultThresholds are used whenever configuration leaves a value unset.
var DefaultThresholds = Thresholds{
	LongContextTokens:   100000,
	UncertaintyLow:      0.35,
	UncertaintyHigh:     0.70,
	ClassifierMinTokens: 300,
	RubricMinScore:      2,
	RubricMargin:        1,
	RubricSaturation:    4,
}

func applyThresholdDefaults(t *Thresholds) {
	if t.LongContextTokens <= 0 {
		t.LongContextTokens = DefaultThresholds.LongContextTokens
	}
	if t.UncertaintyLow <= 0 || t.UncertaintyLow > 1 {
		t.UncertaintyLow = DefaultThresholds.UncertaintyLow
	}
	if t.UncertaintyHigh <= 0 || t.UncertaintyHigh > 1 {
		t.UncertaintyHigh = DefaultThresholds.UncertaintyHigh
	}
	if t.UncertaintyLow > t.UncertaintyHigh {
		t.UncertaintyLow, t.UncertaintyHigh = DefaultThresholds.UncertaintyLow, DefaultThresholds.UncertaintyHigh
	}
	if t.ClassifierMinTokens < 0 {
		t.ClassifierMinTokens = DefaultThresholds.ClassifierMinTokens
	}
	if t.RubricMinScore <= 0 {
		t.RubricMinScore = DefaultThresholds.RubricMinScore
	}
	if t.RubricMargin <= 0 {
		t.RubricMargin = DefaultThresholds.RubricMargin
	}
	if t.RubricSaturation <= 0 {
		t.RubricSaturation = DefaultThresholds.RubricSaturation
	}
}

// PlanHighEffortTriggers are phrases that mark a request as architecturally
// risky: irreversible data operations, security-sensitive changes, or
// multi-system refactors. Matching any of them escalates reasoning effort.
var PlanHighEffortTriggers = []string{
	"refactor",
	"re-architect",
	"rearchitect",
	"conflict",
	"conflicts",
	"conflicting",
	"migration",
	"migrate",
	"schema change",
	"drop table",
	"delete all",
	"wipe",
	"irreversible",
	"data loss",
	"security",
	"authentication",
	"authorization",
	"permissions",
	"encryption",
	"breaking change",
	"across all systems",
	"multi-system",
	"entire",
	"rewrite",
	"overhaul",
	"state machine",
	"payment",
	"compliance",
}

// WeightedTrigger is a rubric phrase and the score it contributes.
type WeightedTrigger struct {
	Phrase string  `yaml:"phrase" toml:"phrase"`
	Weight float64 `yaml:"weight" toml:"weight"`
}

// Rubric is the deterministic gate's keyword table. The lists and weights
// are calibration data and can be replaced from the config file.
type Rubric struct {
	Plan    []WeightedTrigger `yaml:"plan,omitempty" toml:"plan,omitempty"`
	Batch   []WeightedTrigger `yaml:"batch,omitempty" toml:"batch,omitempty"`
	Consult []WeightedTrigger `yaml:"consult,omitempty" toml:"consult,omitempty"`

	// QuestionOpeners score CONSULT when the prompt starts with one of them.
	QuestionOpeners []string `yaml:"question_openers,omitempty" toml:"question_openers,omitempty"`
	QuestionWeight  float64  `yaml:"question_weight,omitempty" toml:"question_weight,omitempty"`
	// QuestionMarkWeight scores CONSULT when the prompt ends with "?".
	QuestionMarkWeight float64 `yaml:"question_mark_weight,omitempty" toml:"question_mark_weight,omitempty"`
	// ShortPromptWords and ShortPromptWeight score CONSULT for short prompts
	// that contain none of the ActionVerbs.
	ShortPromptWords  int      `yaml:"short_prompt_words,omitempty" toml:"short_prompt_words,omitempty"`
	ShortPromptWeight float64  `yaml:"short_prompt_weight,omitempty" toml:"short_prompt_weight,omitempty"`
	ActionVerbs       []string `yaml:"action_verbs,omitempty" toml:"action_verbs,omitempty"`

	// RiskHigh and RiskMedium feed the risk heuristic.
	RiskHigh   []string `yaml:"risk_high,omitempty" toml:"risk_high,omitempty"`
	RiskMedium []string `yaml:"risk_medium,omitempty" toml:"risk_medium,omitempty"`
}

// DefaultRubric returns the built-in rubric.
func DefaultRubric() Rubric {
	return Rubric{
		Plan: []WeightedTrigger{
			{"architecture", 2},
			{"architect", 2},
			{"schema", 2},
			{"data model", 2},
			{"refactor", 2},
			{"restructure", 2},
			{"conflict", 2},
			{"conflicts", 2},
			{"conflicting", 2},
			{"business rule", 2},
			{"business rules", 2},
			{"define rules", 2},
			{"rule definition", 2},
			{"migrate", 2},
			{"migration", 2},
			{"state machine", 1},
			{"design", 1},
			{"spec", 1},
			{"specification", 1},
			{"plan", 1},
			{"roadmap", 1},
			{"integrate", 1},
			{"integration", 1},
			{"trade-off", 1},
			{"tradeoff", 1},
		},
		Batch: []WeightedTrigger{
			{"for each", 2},
			{"for every", 2},
			{"bulk", 2},
			{"in bulk", 1},
			{"batch", 2},
			{"transform all", 2},
			{"convert all", 2},
			{"rename all", 2},
			{"update all", 2},
			{"apply to all", 2},
			{"all of the", 1},
			{"each of", 1},
			{"every", 1},
			{"repeat", 1},
			{"one by one", 1},
			{"generate multiple", 2},
			{"mass", 1},
		},
		Consult: []WeightedTrigger{
			{"how do i", 1},
			{"how to", 1},
			{"what is", 1},
			{"what does", 1},
			{"why does", 1},
			{"why is", 1},
			{"explain", 1},
			{"difference between", 1},
			{"can you tell", 1},
			{"help me understand", 1},
		},
		QuestionOpeners: []string{
			"how", "why", "what", "when", "where", "who", "which",
			"can", "could", "does", "do", "is", "are", "should", "would",
		},
		QuestionWeight:     2,
		QuestionMarkWeight: 1,
		ShortPromptWords:   12,
		ShortPromptWeight:  1,
		ActionVerbs: []string{
			"create", "build", "add", "update", "change", "modify", "refactor",
			"delete", "remove", "generate", "convert", "transform", "migrate",
			"rename", "fix", "implement", "design", "define", "write", "make",
			"apply", "replace", "resolve", "restructure", "move",
		},
		RiskHigh: []string{
			"delete", "drop", "wipe", "destroy", "truncate", "irreversible",
			"production", "prod", "security", "credentials", "secrets",
			"permissions", "authentication", "payment", "billing",
			"all users", "every user", "migration", "migrate",
		},
		RiskMedium: []string{
			"update", "change", "modify", "rename", "remove", "replace",
			"refactor", "rewrite", "restructure", "move",
		},
	}
}

// mergeRubric overlays non-empty sections of override onto base.
func mergeRubric(base, override Rubric) Rubric {
	if len(override.Plan) > 0 {
		base.Plan = override.Plan
	}
	if len(override.Batch) > 0 {
		base.Batch = override.Batch
	}
	if len(override.Consult) > 0 {
		base.Consult = override.Consult
	}
	if len(override.QuestionOpeners) > 0 {
		base.QuestionOpeners = override.QuestionOpeners
	}
	if override.QuestionWeight > 0 {
		base.QuestionWeight = override.QuestionWeight
	}
	if override.QuestionMarkWeight > 0 {
		base.QuestionMarkWeight = override.QuestionMarkWeight
	}
	if override.ShortPromptWords > 0 {
		base.ShortPromptWords = override.ShortPromptWords
	}
	if override.ShortPromptWeight > 0 {
		base.ShortPromptWeight = override.ShortPromptWeight
	}
	if len(override.ActionVerbs) > 0 {
		base.ActionVerbs = override.ActionVerbs
	}
	if len(override.RiskHigh) > 0 {
		base.RiskHigh = override.RiskHigh
	}
	if len(override.RiskMedium) > 0 {
		base.RiskMedium = override.RiskMedium
	}
	return base
}

// PricingConfig maps model -> pricing.
type PricingConfig map[string]ModelPricing

// ModelPricing defines per-1k token pricing.
type ModelPricing struct {
	PromptPer1K     float64 `yaml:"prompt_per_1k,omitempty" toml:"prompt_per_1k,omitempty"`
	CompletionPer1K float64 `yaml:"completion_per_1k,omitempty" toml:"completion_per_1k,omitempty"`
}

// DefaultPricing returns list prices for the default models, in USD.
func DefaultPricing() PricingConfig {
	return PricingConfig{
		"gpt-5":      {PromptPer1K: 0.00125, CompletionPer1K: 0.01},
		"gpt-5-mini": {PromptPer1K: 0.00025, CompletionPer1K: 0.002},
		"gpt-5-nano": {PromptPer1K: 0.00005, CompletionPer1K: 0.0004},
		"gpt-4.1":    {PromptPer1K: 0.002, CompletionPer1K: 0.008},
	}
}

// EstimateCost returns the worst-case USD cost of a call with promptTokens
// of input and maxOutputTokens of output. ok is false when the model has no
// pricing entry.
func (p PricingConfig) EstimateCost(model string, promptTokens, maxOutputTokens int) (float64, bool) {
	if p == nil {
		return 0, false
	}
	entry, ok := p[model]
	if !ok {
		if entry, ok = p["default"]; !ok {
			return 0, false
		}
	}
	promptCost := (float64(promptTokens) / 1000.0) * entry.PromptPer1K
	completionCost := (float64(maxOutputTokens) / 1000.0) * entry.CompletionPer1K
	return promptCost + completionCost, true
}
