package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/brainroute/pkg/config"
	"github.com/zen-systems/brainroute/pkg/tokens"
)

func testRegistry(t *testing.T) *config.Registry {
	t.Helper()
	return config.NewRegistry(config.DefaultEnvConfig())
}

func TestRouteDeterministic_ForcedModeWins(t *testing.T) {
	reg := testRegistry(t)
	huge := tokens.ContextStats{TotalTokens: reg.Thresholds().LongContextTokens * 10}

	for _, mode := range config.AllModes {
		t.Run(string(mode), func(t *testing.T) {
			d := RouteDeterministic("Refactor the schema for each table", huge, mode, reg)
			require.Equal(t, mode, d.Mode)
			assert.Equal(t, 1.0, d.Confidence)
			assert.Equal(t, "forced by caller", d.Reason)
			assert.False(t, d.Uncertain)
			assert.Equal(t, GateForced, d.Gate)
		})
	}
}

func TestRouteDeterministic_InvalidForcedModeIgnored(t *testing.T) {
	d := RouteDeterministic("How do I reset a password?", tokens.ContextStats{}, config.Mode("SOMETHING"), testRegistry(t))
	assert.NotEqual(t, GateForced, d.Gate, "invalid forced mode should be ignored")
}

func TestRouteDeterministic_LongContextDominates(t *testing.T) {
	reg := testRegistry(t)
	over := tokens.ContextStats{TotalTokens: reg.Thresholds().LongContextTokens + 1}

	prompts := []string{
		"Refactor the entire checkout state machine and resolve the conflicting retry rules",
		"How do I reset a password?",
		"For each persona, rename all goals in bulk",
		"x",
	}
	for _, p := range prompts {
		d := RouteDeterministic(p, over, "", reg)
		assert.Equal(t, config.ModeLongContext, d.Mode, p)
		assert.False(t, d.Uncertain, p)
		assert.Equal(t, GateLongContext, d.Gate, p)
		assert.GreaterOrEqual(t, d.Confidence, reg.Thresholds().UncertaintyHigh, p)
	}

	atCeiling := tokens.ContextStats{TotalTokens: reg.Thresholds().LongContextTokens}
	d := RouteDeterministic("How do I reset a password?", atCeiling, "", reg)
	assert.NotEqual(t, config.ModeLongContext, d.Mode, "context at the ceiling should not force LONG_CONTEXT")
}

func TestRouteDeterministic_Rubric(t *testing.T) {
	reg := testRegistry(t)
	stats := tokens.ContextStats{TotalTokens: 3000}

	tests := []struct {
		name          string
		prompt        string
		wantMode      config.Mode
		wantUncertain bool
	}{
		{
			name:     "question",
			prompt:   "How do I reset a password?",
			wantMode: config.ModeConsult,
		},
		{
			name:     "refactor with conflicts",
			prompt:   "Refactor the entire checkout state machine and resolve the conflicting retry rules",
			wantMode: config.ModePlan,
		},
		{
			name:     "architecture",
			prompt:   "Design the data model and schema for the onboarding flow",
			wantMode: config.ModePlan,
		},
		{
			name:     "bulk transform",
			prompt:   "For each persona, rename all goals to the new naming scheme in bulk",
			wantMode: config.ModeBatch,
		},
		{
			name:     "explanation",
			prompt:   "Explain the difference between personas and product profiles",
			wantMode: config.ModeConsult,
		},
		{
			name:          "ambiguous",
			prompt:        "update the thing",
			wantMode:      config.ModeConsult,
			wantUncertain: true,
		},
		{
			name:          "plan and batch tie",
			prompt:        "schema for each",
			wantMode:      config.ModePlan,
			wantUncertain: true,
		},
		{
			name:          "batch and consult tie",
			prompt:        "bulk explain",
			wantMode:      config.ModeBatch,
			wantUncertain: true,
		},
	}

	high := reg.Thresholds().UncertaintyHigh
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := RouteDeterministic(tt.prompt, stats, "", reg)
			require.Equal(t, tt.wantMode, d.Mode, d.Reason)
			require.Equal(t, tt.wantUncertain, d.Uncertain, d.Reason)
			assert.Equal(t, GateDeterministic, d.Gate)
			assert.GreaterOrEqual(t, d.Confidence, 0.0)
			assert.LessOrEqual(t, d.Confidence, 1.0)
			if d.Uncertain {
				assert.Less(t, d.Confidence, high)
			} else {
				assert.GreaterOrEqual(t, d.Confidence, high)
			}
		})
	}
}

func TestRouteDeterministic_NoSignal(t *testing.T) {
	d := RouteDeterministic("update the thing", tokens.ContextStats{TotalTokens: 500}, "", testRegistry(t))
	assert.Equal(t, config.ModeConsult, d.Mode)
	assert.True(t, d.Uncertain)
	assert.Zero(t, d.Confidence)
}

func TestRouteDeterministic_ConfidenceGrowsWithMargin(t *testing.T) {
	reg := testRegistry(t)
	stats := tokens.ContextStats{TotalTokens: 1000}

	weak := RouteDeterministic("Write the schema", stats, "", reg)
	strong := RouteDeterministic("Refactor the schema architecture and resolve conflicting business rules", stats, "", reg)
	require.Equal(t, config.ModePlan, weak.Mode)
	require.Equal(t, config.ModePlan, strong.Mode)
	assert.Greater(t, strong.Confidence, weak.Confidence)
}

func TestScorePrompt_WordBoundaries(t *testing.T) {
	rubric := config.DefaultRubric()

	tests := []struct {
		name      string
		prompt    string
		mode      config.Mode
		wantScore float64
		wantTrigs []string
	}{
		{"suffix does not match", "we are planning a party", config.ModePlan, 0, nil},
		{"longer word only", "resolve conflicting rules", config.ModePlan, 2, []string{"conflicting"}},
		{"prefix does not match", "the scheme is fine", config.ModePlan, 0, nil},
		{"case insensitive", "BULK import", config.ModeBatch, 2, []string{"bulk"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, c := range ScorePrompt(tt.prompt, rubric) {
				if c.Mode != tt.mode {
					continue
				}
				assert.Equal(t, tt.wantScore, c.Score, c.Triggers)
				if len(tt.wantTrigs) == 0 {
					assert.Empty(t, c.Triggers)
				} else {
					assert.Equal(t, tt.wantTrigs, c.Triggers)
				}
			}
		})
	}
}

func TestScorePrompt_ConsultSignals(t *testing.T) {
	rubric := config.DefaultRubric()
	var consult Candidate
	for _, c := range ScorePrompt("How do I reset a password?", rubric) {
		if c.Mode == config.ModeConsult {
			consult = c
		}
	}
	// "how do i" + opener + question mark + short prompt
	require.Equal(t, 5.0, consult.Score, consult.Triggers)

	for _, c := range ScorePrompt("update the thing", rubric) {
		assert.Zero(t, c.Score, "%s: %v", c.Mode, c.Triggers)
	}
}

func TestAssessRisk(t *testing.T) {
	rubric := config.DefaultRubric()
	tests := []struct {
		prompt string
		want   config.RiskLevel
	}{
		{"How do I reset a password?", config.RiskLow},
		{"Rename the onboarding step", config.RiskMedium},
		{"Delete all personas in production", config.RiskHigh},
		{"Refactor the payment flow", config.RiskHigh},
		{"The deleted items view", config.RiskLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AssessRisk(tt.prompt, rubric), tt.prompt)
	}
}
