package tokens

import (
	"errors"
	"fmt"
)

// DefaultLongContextThreshold applies when a caller passes no threshold.
const DefaultLongContextThreshold = 100000

// StatsSlack is the tolerated difference between TotalTokens and the
// breakdown sum for stats built outside CalculateContextStats.
const StatsSlack = 6

// ErrInvalidStats is wrapped by every ContextStats validation error.
var ErrInvalidStats = errors.New("invalid context stats")

// ContextStats is the token accounting for one request's context.
type ContextStats struct {
	TotalTokens          int  `json:"total_tokens"`
	BusinessRuleTokens   int  `json:"business_rule_tokens"`
	FlowSpecTokens       int  `json:"flow_spec_tokens"`
	RegistryItemTokens   int  `json:"registry_item_tokens"`
	PersonaTokens        int  `json:"persona_tokens"`
	ProductProfileTokens int  `json:"product_profile_tokens"`
	MessageTokens        int  `json:"message_tokens"`
	MessageCount         int  `json:"message_count"`
	ExceedsLongContext   bool `json:"exceeds_long_context"`
}

// BreakdownSum adds the per-source fields.
func (s ContextStats) BreakdownSum() int {
	return s.BusinessRuleTokens + s.FlowSpecTokens + s.RegistryItemTokens +
		s.PersonaTokens + s.ProductProfileTokens + s.MessageTokens
}

// Validate rejects negative fields and, when a breakdown is present, a total
// that differs from it by more than StatsSlack. A zero breakdown means the
// caller only knows the total.
func (s ContextStats) Validate() error {
	fields := []struct {
		name  string
		value int
	}{
		{"total_tokens", s.TotalTokens},
		{"business_rule_tokens", s.BusinessRuleTokens},
		{"flow_spec_tokens", s.FlowSpecTokens},
		{"registry_item_tokens", s.RegistryItemTokens},
		{"persona_tokens", s.PersonaTokens},
		{"product_profile_tokens", s.ProductProfileTokens},
		{"message_tokens", s.MessageTokens},
		{"message_count", s.MessageCount},
	}
	for _, f := range fields {
		if f.value < 0 {
			return fmt.Errorf("%w: %s is negative (%d)", ErrInvalidStats, f.name, f.value)
		}
	}

	sum := s.BreakdownSum()
	if sum == 0 {
		return nil
	}
	diff := s.TotalTokens - sum
	if diff < 0 {
		diff = -diff
	}
	if diff > StatsSlack {
		return fmt.Errorf("%w: total %d differs from breakdown %d", ErrInvalidStats, s.TotalTokens, sum)
	}
	return nil
}

// NewContextStats completes caller-built stats: a zero total is filled from
// the breakdown and the long-context flag is derived from threshold.
func NewContextStats(s ContextStats, threshold int) (ContextStats, error) {
	if s.TotalTokens == 0 {
		s.TotalTokens = s.BreakdownSum()
	}
	if err := s.Validate(); err != nil {
		return ContextStats{}, err
	}
	s.ExceedsLongContext = s.TotalTokens > effectiveThreshold(threshold)
	return s, nil
}

// CalculateContextStats estimates every source in ctx. TotalTokens is the
// exact sum of the breakdown.
func CalculateContextStats(ctx Context, threshold int) ContextStats {
	var s ContextStats
	for _, r := range ctx.Project.BusinessRules {
		s.BusinessRuleTokens += EstimateBusinessRuleTokens(r)
	}
	for _, f := range ctx.Project.FlowSpecs {
		s.FlowSpecTokens += EstimateFlowSpecTokens(f)
	}
	for _, item := range ctx.Project.RegistryItems {
		s.RegistryItemTokens += EstimateRegistryItemTokens(item)
	}
	for _, p := range ctx.Project.Personas {
		s.PersonaTokens += EstimatePersonaTokens(p)
	}
	s.ProductProfileTokens = EstimateProductProfileTokens(ctx.Project.ProductProfile)
	for _, m := range ctx.Messages {
		s.MessageTokens += EstimateMessageTokens(m)
	}
	s.MessageCount = len(ctx.Messages)
	s.TotalTokens = s.BreakdownSum()
	s.ExceedsLongContext = s.TotalTokens > effectiveThreshold(threshold)
	return s
}

// NeedsRAGStrategy reports whether stats exceed threshold.
func NeedsRAGStrategy(stats ContextStats, threshold int) bool {
	return stats.TotalTokens > effectiveThreshold(threshold)
}

func effectiveThreshold(threshold int) int {
	if threshold <= 0 {
		return DefaultLongContextThreshold
	}
	return threshold
}
