package router

import (
	"sort"
	"strings"
	"unicode"

	"github.com/zen-systems/brainroute/pkg/config"
)

// rubricModes lists the scored modes in tie-break priority order.
var rubricModes = []config.Mode{config.ModePlan, config.ModeBatch, config.ModeConsult}

// ScorePrompt scores prompt against the rubric. Candidates are returned
// best first; equal scores keep PLAN > BATCH > CONSULT order.
func ScorePrompt(prompt string, rubric config.Rubric) []Candidate {
	candidates := make([]Candidate, 0, len(rubricModes))
	for _, mode := range rubricModes {
		var c Candidate
		switch mode {
		case config.ModePlan:
			c = scoreTriggers(mode, prompt, rubric.Plan)
		case config.ModeBatch:
			c = scoreTriggers(mode, prompt, rubric.Batch)
		case config.ModeConsult:
			c = scoreConsult(prompt, rubric)
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

func scoreTriggers(mode config.Mode, prompt string, triggers []config.WeightedTrigger) Candidate {
	c := Candidate{Mode: mode}
	for _, t := range triggers {
		if t.Weight <= 0 || !config.ContainsPhrase(prompt, t.Phrase) {
			continue
		}
		c.Score += t.Weight
		c.Triggers = append(c.Triggers, strings.ToLower(t.Phrase))
	}
	return c
}

func scoreConsult(prompt string, rubric config.Rubric) Candidate {
	c := scoreTriggers(config.ModeConsult, prompt, rubric.Consult)
	words := strings.Fields(prompt)

	if len(words) > 0 {
		first := strings.ToLower(strings.TrimFunc(words[0], func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}))
		for _, opener := range rubric.QuestionOpeners {
			if first == strings.ToLower(opener) {
				c.Score += rubric.QuestionWeight
				c.Triggers = append(c.Triggers, "opener:"+first)
				break
			}
		}
	}

	if strings.HasSuffix(strings.TrimSpace(prompt), "?") {
		c.Score += rubric.QuestionMarkWeight
		c.Triggers = append(c.Triggers, "question mark")
	}

	if len(words) > 0 && len(words) <= rubric.ShortPromptWords && len(config.MatchPhrases(prompt, rubric.ActionVerbs)) == 0 {
		c.Score += rubric.ShortPromptWeight
		c.Triggers = append(c.Triggers, "short prompt")
	}
	return c
}
