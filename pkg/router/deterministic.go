package router

import (
	"fmt"
	"math"
	"strings"

	"github.com/zen-systems/brainroute/pkg/config"
	"github.com/zen-systems/brainroute/pkg/tokens"
)

// longContextConfidence is reported when context size alone decides.
const longContextConfidence = 0.95

// RouteDeterministic classifies a request without any external call.
// A valid forced mode wins outright. Otherwise context above the
// long-context ceiling selects LONG_CONTEXT, and the rubric decides the rest.
// A nil registry uses config.Default().
func RouteDeterministic(prompt string, stats tokens.ContextStats, forced config.Mode, reg *config.Registry) GateDecision {
	if reg == nil {
		reg = config.Default()
	}
	if forced.Valid() {
		return GateDecision{
			Mode:       forced,
			Confidence: 1.0,
			Reason:     "forced by caller",
			Gate:       GateForced,
		}
	}

	th := reg.Thresholds()
	if stats.TotalTokens > th.LongContextTokens {
		return GateDecision{
			Mode:       config.ModeLongContext,
			Confidence: longContextConfidence,
			Reason: fmt.Sprintf("context of %s tokens exceeds long-context ceiling %s",
				tokens.FormatTokenCount(stats.TotalTokens), tokens.FormatTokenCount(th.LongContextTokens)),
			Gate: GateLongContext,
		}
	}

	candidates := ScorePrompt(prompt, reg.Rubric())
	top := candidates[0]
	second := candidates[1]

	decision := GateDecision{
		Mode:       top.Mode,
		Gate:       GateDeterministic,
		Candidates: candidates,
	}

	if top.Score <= 0 {
		decision.Mode = config.ModeConsult
		decision.Uncertain = true
		decision.Reason = "no rubric signal, defaulting to CONSULT"
		return decision
	}

	margin := top.Score - second.Score
	raw := 0.6*math.Min(margin/th.RubricSaturation, 1) + 0.4*math.Min(top.Score/th.RubricSaturation, 1)
	certain := top.Score >= th.RubricMinScore && margin >= th.RubricMargin

	if certain {
		decision.Confidence = th.UncertaintyHigh + (1-th.UncertaintyHigh)*raw
		decision.Reason = fmt.Sprintf("rubric: %s scored %.1f over %s %.1f (%s)",
			top.Mode, top.Score, second.Mode, second.Score, strings.Join(top.Triggers, ", "))
		return decision
	}

	// Uncertain confidence stays strictly below the certain band.
	decision.Confidence = math.Min(th.UncertaintyHigh*raw, math.Nextafter(th.UncertaintyHigh, 0))
	decision.Uncertain = true
	decision.Reason = fmt.Sprintf("rubric uncertain: %s scored %.1f, %s %.1f (%s)",
		top.Mode, top.Score, second.Mode, second.Score, strings.Join(top.Triggers, ", "))
	return decision
}
