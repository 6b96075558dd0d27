package chatbot

// TenantScopes lists the knowledge scopes visible to a school.
// Upstream data is known to carry stray trailing commas, so both variants are looked up.
func TenantScopes(schoolCode string) []string {
	code := CleanValue(schoolCode)
	return []string{code, code + ",", ScopeGlobal, ScopeGlobal + ","}
}

// IsGlobalScope reports whether scope is one of the GLOBAL variants.
func IsGlobalScope(scope string) bool {
	return scope == ScopeGlobal || scope == ScopeGlobal+","
}

// knowledgeThreshold is the minimum overlap a knowledge entry needs to be accepted.
// Short questions (1 or 2 tokens) only need a single hit.
func knowledgeThreshold(tokenCount int) int {
	if tokenCount <= 2 {
		return 1
	}
	return 2
}

const historyThreshold = 2

// bestKnowledge returns the highest scoring entry. The first entry wins ties, so the
// store ordering (tenant scopes first, most recently updated first) decides between equals.
func bestKnowledge(tokens []string, entries []KnowledgeEntry) (KnowledgeEntry, int, bool) {
	var (
		best  KnowledgeEntry
		score int
		found bool
	)
	for _, entry := range entries {
		s := OverlapScore(tokens, entry.QuestionPattern, entry.Keywords)
		if !found || s > score {
			best, score, found = entry, s, true
		}
	}
	return best, score, found
}

// bestExchange scores previous exchanges against their user message only.
func bestExchange(tokens []string, exchanges []Exchange) (Exchange, int, bool) {
	var (
		best  Exchange
		score int
		found bool
	)
	for _, exch := range exchanges {
		s := OverlapScore(tokens, exch.UserMessage, nil)
		if !found || s > score {
			best, score, found = exch, s, true
		}
	}
	return best, score, found
}

func knowledgeReply(entry KnowledgeEntry, score int) *Reply {
	confidence := ConfidenceMedium
	if score >= 3 {
		confidence = ConfidenceHigh
	}
	intent := CleanValue(entry.IntentID)
	if intent == "" {
		intent = IntentKnowledgeMatch
	}
	return &Reply{
		Text:       CleanValue(entry.AnswerText),
		Route:      CleanValue(entry.Route.String),
		IntentID:   intent,
		Confidence: confidence,
		Source:     SourceKnowledge,
		FollowUp:   CleanValue(entry.FollowUpQuestion.String),
	}
}

func historyReply(exch Exchange) *Reply {
	intent := exch.IntentID
	if intent == "" {
		intent = IntentHistoryMatch
	}
	return &Reply{
		Text:       exch.BotReply,
		Route:      exch.Route.String,
		IntentID:   intent,
		Confidence: ConfidenceMedium,
		Source:     SourceHistory,
	}
}
