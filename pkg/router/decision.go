package router

import (
	"github.com/zen-systems/brainroute/pkg/config"
	"github.com/zen-systems/brainroute/pkg/tokens"
)

// Gate names the step that produced the final mode.
type Gate string

const (
	GateForced        Gate = "forced"
	GateLongContext   Gate = "long_context"
	GateDeterministic Gate = "deterministic"
	GateClassifier    Gate = "classifier"
)

// Candidate captures one mode's rubric score.
type Candidate struct {
	Mode     config.Mode `json:"mode"`
	Score    float64     `json:"score"`
	Triggers []string    `json:"triggers,omitempty"`
}

// GateDecision is the deterministic gate's output.
type GateDecision struct {
	Mode       config.Mode `json:"mode"`
	Confidence float64     `json:"confidence"`
	Reason     string      `json:"reason"`
	Uncertain  bool        `json:"uncertain"`
	Gate       Gate        `json:"gate"`
	// Candidates holds every scored mode in tie-break order, best first.
	Candidates []Candidate `json:"candidates,omitempty"`
}

// RouteResult is the router's final decision.
type RouteResult struct {
	Mode                config.Mode         `json:"mode"`
	Config              config.ModelConfig  `json:"config"`
	Reason              string              `json:"reason"`
	Gate                Gate                `json:"gate"`
	Confidence          float64             `json:"confidence"`
	UsedClassifier      bool                `json:"used_classifier"`
	ClassifierFallback  bool                `json:"classifier_fallback"`
	Uncertain           bool                `json:"uncertain"`
	RiskLevel           config.RiskLevel    `json:"risk_level"`
	HighEffortTriggered bool                `json:"high_effort_triggered"`
	MatchedTriggers     []string            `json:"matched_triggers,omitempty"`
	Stats               tokens.ContextStats `json:"stats"`
	EstimatedCostUSD    float64             `json:"estimated_cost_usd,omitempty"`
}
