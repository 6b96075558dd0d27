package chatbot

import (
	"strings"
	"unicode"
)

// CleanValue strips the artifacts upstream data entry is known to leave behind:
// leading/trailing double quotes and trailing commas.
func CleanValue(s string) string {
	s = strings.TrimLeft(s, `"`)
	s = strings.TrimRight(s, `"`)
	s = strings.TrimRight(s, ",")
	return strings.TrimSpace(s)
}

// NormalizeText lowercases `s`, turns everything but [a-z0-9] into spaces and collapses whitespace.
func NormalizeText(s string) string {
	s = strings.ToLower(CleanValue(s))
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Tokenize splits the normalized text into tokens.
// Tokens longer than 4 characters lose a trailing "s" ("events" -> "event", but also "campus" -> "campu").
func Tokenize(s string) []string {
	normalized := NormalizeText(s)
	if normalized == "" {
		return []string{}
	}
	tokens := strings.Split(normalized, " ")
	for i, tok := range tokens {
		if len(tok) > 4 && strings.HasSuffix(tok, "s") {
			tokens[i] = tok[:len(tok)-1]
		}
	}
	return tokens
}

// OverlapScore counts the question tokens found among the candidate's text and keyword tokens.
// Repeated question tokens count every time.
func OverlapScore(questionTokens []string, candidateText string, candidateKeywords Keywords) int {
	candidate := make(map[string]struct{})
	for _, tok := range Tokenize(candidateText) {
		candidate[tok] = struct{}{}
	}
	for _, kw := range candidateKeywords {
		for _, tok := range Tokenize(kw) {
			candidate[tok] = struct{}{}
		}
	}

	var hits int
	for _, tok := range questionTokens {
		if _, ok := candidate[tok]; ok {
			hits++
		}
	}
	return hits
}
