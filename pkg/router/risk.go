package router

import "github.com/zen-systems/brainroute/pkg/config"

// AssessRisk estimates the blast radius of prompt from the rubric's risk
// terms: any high term makes it high, any medium term medium.
func AssessRisk(prompt string, rubric config.Rubric) config.RiskLevel {
	for _, term := range rubric.RiskHigh {
		if config.ContainsPhrase(prompt, term) {
			return config.RiskHigh
		}
	}
	for _, term := range rubric.RiskMedium {
		if config.ContainsPhrase(prompt, term) {
			return config.RiskMedium
		}
	}
	return config.RiskLow
}
