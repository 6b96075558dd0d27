package chatbot

import "strings"

var (
	greetingWords = []string{"hi", "hello", "hey", "hii", "heyy"}

	// features planned for a future version of the dashboard
	outOfScopeKeywords = []string{
		"hostel",
		"library",
		"transport",
		"bus",
		"fees",
		"payroll",
		"exam",
		"attendance",
		"admission",
		"result",
	}

	greetingText   = "Hi! I can help you with Settings, Features, News, Events, and Gallery actions. What do you want to do?"
	howAreYouText  = "I'm doing great. Tell me your task and I will guide you step by step in this dashboard."
	outOfScopeText = "This feature will be included in a future version."
	fallbackText   = "I can help with settings, features, and posting news/events/gallery. " +
		"Try asking with specific action words like create, update, or enable."
)

// smallTalkReply answers greetings and "how are you" questions.
func smallTalkReply(question string) *Reply {
	q := NormalizeText(question)

	for _, w := range greetingWords {
		if q == w || strings.HasPrefix(q, w+" ") {
			return &Reply{
				Text:       greetingText,
				IntentID:   IntentGreeting,
				Confidence: ConfidenceHigh,
				Source:     SourceFallback,
			}
		}
	}

	if strings.Contains(q, "how are you") {
		return &Reply{
			Text:       howAreYouText,
			IntentID:   IntentHowAreYou,
			Confidence: ConfidenceHigh,
			Source:     SourceFallback,
		}
	}
	return nil
}

// outOfScopeReply catches questions about modules the dashboard does not have yet.
// Terms are matched as substrings of the normalized question.
func outOfScopeReply(question string) *Reply {
	q := NormalizeText(question)
	for _, kw := range outOfScopeKeywords {
		if strings.Contains(q, kw) {
			return &Reply{
				Text:       outOfScopeText,
				IntentID:   IntentOutOfScope,
				Confidence: ConfidenceHigh,
				Source:     SourceFallback,
			}
		}
	}
	return nil
}

func fallbackReply() *Reply {
	return &Reply{
		Text:       fallbackText,
		IntentID:   IntentGenericFallback,
		Confidence: ConfidenceLow,
		Source:     SourceFallback,
	}
}
