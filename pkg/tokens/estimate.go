package tokens

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

// CharsPerToken is the divisor of the character heuristic.
const CharsPerToken = 4

// StructureOverhead is charged per JSON object or array.
const StructureOverhead = 2

// Fixed per-entity overheads for field labels and separators.
const (
	BusinessRuleOverhead   = 10
	FlowSpecOverhead       = 15
	RegistryItemOverhead   = 8
	PersonaOverhead        = 10
	ProductProfileOverhead = 20
	MessageOverhead        = 4
)

// EstimateStringTokens approximates the token count of text as
// ceil(runes/CharsPerToken). The empty string is 0.
func EstimateStringTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + CharsPerToken - 1) / CharsPerToken
}

// EstimateJSONTokens marshals v and estimates the result, adding
// StructureOverhead per object or array. nil or unmarshalable values are 0.
func EstimateJSONTokens(v any) int {
	if v == nil {
		return 0
	}
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return EstimateStringTokens(string(data)) + StructureOverhead*countContainers(data)
}

func countContainers(data []byte) int {
	dec := json.NewDecoder(bytes.NewReader(data))
	count := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return count
		}
		if d, ok := tok.(json.Delim); ok && (d == '{' || d == '[') {
			count++
		}
	}
}

func sumStrings(values []string) int {
	total := 0
	for _, v := range values {
		total += EstimateStringTokens(v)
	}
	return total
}

// EstimateBusinessRuleTokens estimates one business rule.
func EstimateBusinessRuleTokens(r BusinessRule) int {
	return BusinessRuleOverhead +
		EstimateStringTokens(r.Name) +
		EstimateStringTokens(r.Description) +
		EstimateStringTokens(r.Condition) +
		EstimateStringTokens(r.Action) +
		EstimateStringTokens(r.Status) +
		sumStrings(r.Tags)
}

// EstimateFlowSpecTokens estimates one flow spec.
func EstimateFlowSpecTokens(s FlowSpec) int {
	return FlowSpecOverhead +
		EstimateStringTokens(s.Name) +
		EstimateStringTokens(s.Summary) +
		EstimateStringTokens(s.Content) +
		sumStrings(s.Steps)
}

// EstimateRegistryItemTokens estimates one registry item. Details are sized
// as JSON.
func EstimateRegistryItemTokens(item RegistryItem) int {
	tokens := RegistryItemOverhead +
		EstimateStringTokens(item.Name) +
		EstimateStringTokens(item.Kind) +
		EstimateStringTokens(item.Description)
	if len(item.Details) > 0 {
		tokens += EstimateJSONTokens(item.Details)
	}
	return tokens
}

// EstimatePersonaTokens estimates one persona.
func EstimatePersonaTokens(p Persona) int {
	return PersonaOverhead +
		EstimateStringTokens(p.Name) +
		EstimateStringTokens(p.Role) +
		EstimateStringTokens(p.Description) +
		sumStrings(p.Goals) +
		sumStrings(p.PainPoints)
}

// EstimateProductProfileTokens estimates the product profile. nil is 0.
func EstimateProductProfileTokens(p *ProductProfile) int {
	if p == nil {
		return 0
	}
	return ProductProfileOverhead +
		EstimateStringTokens(p.Name) +
		EstimateStringTokens(p.Description) +
		EstimateStringTokens(p.Audience) +
		EstimateStringTokens(p.ValueProposition) +
		sumStrings(p.Features)
}

// EstimateMessageTokens estimates one message.
func EstimateMessageTokens(m Message) int {
	return MessageOverhead + EstimateStringTokens(m.Role) + EstimateStringTokens(m.Content)
}

// EstimatePromptTokens estimates the user's prompt.
func EstimatePromptTokens(prompt string) int {
	return EstimateStringTokens(prompt)
}

// EstimateTotalRequestTokens estimates prompt plus full context.
func EstimateTotalRequestTokens(prompt string, ctx Context) int {
	return EstimatePromptTokens(prompt) + CalculateContextStats(ctx, 0).TotalTokens
}
