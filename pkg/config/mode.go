package config

import (
	"fmt"
	"strings"
)

// Mode is the coarse-grained task category that drives model choice.
type Mode string

const (
	ModePlan        Mode = "PLAN"
	ModeConsult     Mode = "CONSULT"
	ModeBatch       Mode = "BATCH"
	ModeLongContext Mode = "LONG_CONTEXT"
)

// AllModes lists every mode in display order.
var AllModes = []Mode{ModePlan, ModeConsult, ModeBatch, ModeLongContext}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModePlan, ModeConsult, ModeBatch, ModeLongContext:
		return true
	}
	return false
}

func (m Mode) String() string { return string(m) }

// ParseMode parses a mode name case-insensitively. Dashes and spaces are
// accepted in place of underscores ("long-context").
func ParseMode(s string) (Mode, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	m := Mode(norm)
	if !m.Valid() {
		return "", fmt.Errorf("unknown mode %q", s)
	}
	return m, nil
}

// level is the shared ordering used by ReasoningEffort, Verbosity and RiskLevel.
type level string

const (
	levelLow    level = "low"
	levelMedium level = "medium"
	levelHigh   level = "high"
)

func (l level) rank() int {
	switch l {
	case levelLow:
		return 0
	case levelMedium:
		return 1
	case levelHigh:
		return 2
	}
	return -1
}

func levelFromRank(r int) level {
	switch {
	case r <= 0:
		return levelLow
	case r == 1:
		return levelMedium
	default:
		return levelHigh
	}
}

func parseLevel(s string) (level, error) {
	l := level(strings.ToLower(strings.TrimSpace(s)))
	if l.rank() < 0 {
		return "", fmt.Errorf("expected low, medium or high, got %q", s)
	}
	return l, nil
}

// ReasoningEffort is the requested depth of model deliberation.
type ReasoningEffort string

const (
	EffortLow    ReasoningEffort = "low"
	EffortMedium ReasoningEffort = "medium"
	EffortHigh   ReasoningEffort = "high"
)

// Rank orders efforts low=0 < medium=1 < high=2. Unknown values rank -1.
func (e ReasoningEffort) Rank() int { return level(e).rank() }

// Raise returns the next higher effort, capped at high.
func (e ReasoningEffort) Raise() ReasoningEffort {
	return ReasoningEffort(levelFromRank(e.Rank() + 1))
}

// ParseReasoningEffort parses low/medium/high.
func ParseReasoningEffort(s string) (ReasoningEffort, error) {
	l, err := parseLevel(s)
	return ReasoningEffort(l), err
}

// Verbosity is the requested response length and detail.
type Verbosity string

const (
	VerbosityLow    Verbosity = "low"
	VerbosityMedium Verbosity = "medium"
	VerbosityHigh   Verbosity = "high"
)

// Rank orders verbosities low=0 < medium=1 < high=2.
func (v Verbosity) Rank() int { return level(v).rank() }

// Lower returns the next lower verbosity, floored at low.
func (v Verbosity) Lower() Verbosity {
	return Verbosity(levelFromRank(v.Rank() - 1))
}

// ParseVerbosity parses low/medium/high.
func ParseVerbosity(s string) (Verbosity, error) {
	l, err := parseLevel(s)
	return Verbosity(l), err
}

// RiskLevel is the estimated blast radius of a request.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Rank orders risk levels low=0 < medium=1 < high=2.
func (r RiskLevel) Rank() int { return level(r).rank() }

// ModelConfig is the resolved, mode-specific model configuration.
// Values are copied out of the registry; callers own their copy.
type ModelConfig struct {
	Mode              Mode            `json:"mode" yaml:"-" toml:"-"`
	Model             string          `json:"model" yaml:"model" toml:"model"`
	Provider          string          `json:"provider,omitempty" yaml:"provider,omitempty" toml:"provider,omitempty"`
	ReasoningEffort   ReasoningEffort `json:"reasoning_effort" yaml:"reasoning_effort" toml:"reasoning_effort"`
	Verbosity         Verbosity       `json:"verbosity" yaml:"verbosity" toml:"verbosity"`
	MaxOutputTokens   int             `json:"max_output_tokens" yaml:"max_output_tokens" toml:"max_output_tokens"`
	UseRAG            bool            `json:"use_rag" yaml:"use_rag" toml:"use_rag"`
	ReductionStrategy string          `json:"reduction_strategy,omitempty" yaml:"reduction_strategy,omitempty" toml:"reduction_strategy,omitempty"`
	SystemPrompt      string          `json:"-" yaml:"-" toml:"-"`
}
