package tokens

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Built-in strategy names.
const (
	StrategyApprovedRulesOnly   = "approved_rules_only"
	StrategyLatestSpecsOnly     = "latest_specs_only"
	StrategyMessageLimit        = "message_limit"
	StrategyDropRegistryDetails = "drop_registry_details"
	StrategyTrimPersonas        = "trim_personas"
	StrategyAuto                = "auto"
)

// DefaultMessageLimit is N for "message_limit" without an argument.
const DefaultMessageLimit = 20

// Strategy shrinks a context. Implementations must be deterministic and
// must not modify the input.
type Strategy interface {
	Reduce(ctx Context) Context
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx Context) Context

// Reduce calls f.
func (f StrategyFunc) Reduce(ctx Context) Context { return f(ctx) }

// autoChain is the order "auto" applies strategies in.
var autoChain = []string{
	StrategyApprovedRulesOnly,
	StrategyLatestSpecsOnly,
	StrategyMessageLimit,
	StrategyDropRegistryDetails,
	StrategyTrimPersonas,
}

var (
	strategiesMu sync.RWMutex
	strategies   = map[string]Strategy{
		StrategyApprovedRulesOnly:   StrategyFunc(approvedRulesOnly),
		StrategyLatestSpecsOnly:     StrategyFunc(latestSpecsOnly),
		StrategyMessageLimit:        MessageLimit(DefaultMessageLimit),
		StrategyDropRegistryDetails: StrategyFunc(dropRegistryDetails),
		StrategyTrimPersonas:        StrategyFunc(trimPersonas),
	}
)

// RegisterStrategy adds or replaces a named strategy. "auto" is reserved.
func RegisterStrategy(name string, s Strategy) error {
	name = strings.TrimSpace(name)
	if name == "" || s == nil {
		return fmt.Errorf("register strategy: name and strategy are required")
	}
	if name == StrategyAuto {
		return fmt.Errorf("register strategy: %q is reserved", StrategyAuto)
	}
	strategiesMu.Lock()
	strategies[name] = s
	strategiesMu.Unlock()
	return nil
}

// Strategies returns the registered strategy names, sorted, plus "auto".
func Strategies() []string {
	strategiesMu.RLock()
	names := make([]string, 0, len(strategies)+1)
	for name := range strategies {
		names = append(names, name)
	}
	strategiesMu.RUnlock()
	names = append(names, StrategyAuto)
	sort.Strings(names)
	return names
}

// lookupStrategy resolves a name, including "message_limit:N".
func lookupStrategy(name string) (Strategy, bool) {
	base, arg, hasArg := strings.Cut(name, ":")
	if base == StrategyMessageLimit && hasArg {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return nil, false
		}
		return MessageLimit(n), true
	}
	if hasArg {
		return nil, false
	}
	strategiesMu.RLock()
	s, ok := strategies[name]
	strategiesMu.RUnlock()
	return s, ok
}

// Reduction is the outcome of ReduceContextToFit.
type Reduction struct {
	Context      Context  `json:"context"`
	Requested    string   `json:"requested"`
	Applied      []string `json:"applied"`
	TokensBefore int      `json:"tokens_before"`
	TokensAfter  int      `json:"tokens_after"`
	Fits         bool     `json:"fits"`
}

// ReduceContextToFit applies the named strategy and re-estimates. "auto"
// applies the built-in chain until the context fits budget. Unknown names
// fall back to "auto" and the fallback is recorded in Applied. A budget of
// zero or less uses DefaultLongContextThreshold.
func ReduceContextToFit(ctx Context, budget int, strategy string) Reduction {
	budget = effectiveThreshold(budget)
	strategy = strings.TrimSpace(strategy)
	before := CalculateContextStats(ctx, budget).TotalTokens

	red := Reduction{
		Context:      ctx.clone(),
		Requested:    strategy,
		TokensBefore: before,
		TokensAfter:  before,
	}

	if strategy != StrategyAuto && strategy != "" {
		if s, ok := lookupStrategy(strategy); ok {
			red.Context = s.Reduce(red.Context)
			red.Applied = append(red.Applied, strategy)
			red.TokensAfter = CalculateContextStats(red.Context, budget).TotalTokens
			red.Fits = red.TokensAfter <= budget
			return red
		}
		red.Applied = append(red.Applied, fmt.Sprintf("unknown:%s->%s", strategy, StrategyAuto))
	}

	for _, name := range autoChain {
		if red.TokensAfter <= budget {
			break
		}
		s, ok := lookupStrategy(name)
		if !ok {
			continue
		}
		red.Context = s.Reduce(red.Context)
		red.Applied = append(red.Applied, name)
		red.TokensAfter = CalculateContextStats(red.Context, budget).TotalTokens
	}
	red.Fits = red.TokensAfter <= budget
	return red
}

func approvedRulesOnly(ctx Context) Context {
	out := ctx.clone()
	rules := out.Project.BusinessRules[:0:0]
	for _, r := range ctx.Project.BusinessRules {
		if strings.EqualFold(r.Status, StatusApproved) {
			rules = append(rules, r)
		}
	}
	out.Project.BusinessRules = rules
	return out
}

// latestSpecsOnly keeps the newest version of each flow, by Version then
// UpdatedAt, preserving input order.
func latestSpecsOnly(ctx Context) Context {
	out := ctx.clone()
	newest := make(map[string]int)
	for i, s := range ctx.Project.FlowSpecs {
		key := specKey(s)
		j, seen := newest[key]
		if !seen || newerSpec(s, ctx.Project.FlowSpecs[j]) {
			newest[key] = i
		}
	}
	specs := make([]FlowSpec, 0, len(newest))
	for i, s := range ctx.Project.FlowSpecs {
		if newest[specKey(s)] == i {
			specs = append(specs, s)
		}
	}
	out.Project.FlowSpecs = specs
	return out
}

func specKey(s FlowSpec) string {
	if s.FlowID != "" {
		return s.FlowID
	}
	return s.Name
}

func newerSpec(a, b FlowSpec) bool {
	if a.Version != b.Version {
		return a.Version > b.Version
	}
	return a.UpdatedAt.After(b.UpdatedAt)
}

// MessageLimit keeps the n most recent messages. A negative n keeps none.
func MessageLimit(n int) Strategy {
	if n < 0 {
		n = 0
	}
	return StrategyFunc(func(ctx Context) Context {
		out := ctx.clone()
		if n < len(out.Messages) {
			out.Messages = append([]Message(nil), out.Messages[len(out.Messages)-n:]...)
		}
		return out
	})
}

func dropRegistryDetails(ctx Context) Context {
	out := ctx.clone()
	for i := range out.Project.RegistryItems {
		out.Project.RegistryItems[i].Details = nil
	}
	return out
}

// trimPersonas keeps each persona's name, role and first goal.
func trimPersonas(ctx Context) Context {
	out := ctx.clone()
	for i, p := range out.Project.Personas {
		trimmed := Persona{ID: p.ID, Name: p.Name, Role: p.Role}
		if len(p.Goals) > 0 {
			trimmed.Goals = []string{p.Goals[0]}
		}
		out.Project.Personas[i] = trimmed
	}
	return out
}
