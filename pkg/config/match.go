package config

import "strings"

// ContainsPhrase reports whether text contains phrase on word boundaries,
// ignoring case. "conflict" does not match "conflicting".
func ContainsPhrase(text, phrase string) bool {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return false
	}
	return containsLower(strings.ToLower(text), phrase)
}

// MatchPhrases returns the phrases found in text, in list order.
func MatchPhrases(text string, phrases []string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && containsLower(lower, p) {
			matched = append(matched, p)
		}
	}
	return matched
}

func containsLower(text, phrase string) bool {
	start := 0
	for {
		idx := strings.Index(text[start:], phrase)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(phrase)
		beforeOK := idx == 0 || !isWordChar(text[idx-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
		if start >= len(text) {
			return false
		}
	}
}

func isWordChar(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_'
}
