// Package guardrail recognises purely conversational messages (greetings,
// farewells, thanks, help requests) so they can be answered without retrieval.
package guardrail

import (
	"regexp"
	"strings"

	"github.com/cloo-solutions/kbchat/internal/domain"
)

type intentPatterns struct {
	intent   domain.Intent
	patterns []string
}

// vocabulary is ordered by priority; the first matching intent wins.
var vocabulary = []intentPatterns{
	{domain.IntentGreeting, []string{
		"hello", "hi", "hey", "good morning", "good afternoon", "good evening",
		"greetings", "howdy", "what's up", "sup", "yo", "hiya", "heya",
		"good day", "morning", "afternoon", "evening", "greet",
	}},
	{domain.IntentFarewell, []string{
		"bye", "goodbye", "see you", "farewell", "take care", "catch you later",
		"later", "cya", "ttyl", "talk to you later", "have a good day",
		"have a good night", "good night", "night", "adios", "cheers",
	}},
	{domain.IntentThanks, []string{
		"thank you", "thanks", "thx", "appreciate", "grateful", "much appreciated",
		"thank you so much", "thanks a lot", "ty", "tysm",
	}},
	{domain.IntentHelp, []string{
		"help", "can you help", "what can you do", "what do you do", "assist",
		"support", "guide", "how can you help", "what are your capabilities",
	}},
}

type compiledPattern struct {
	literal string
	re      *regexp.Regexp
}

type compiledIntent struct {
	intent   domain.Intent
	patterns []compiledPattern
}

var compiled = compile(vocabulary)

func compile(vocab []intentPatterns) []compiledIntent {
	out := make([]compiledIntent, 0, len(vocab))
	for _, v := range vocab {
		ci := compiledIntent{intent: v.intent}
		for _, p := range v.patterns {
			ci.patterns = append(ci.patterns, compiledPattern{
				literal: p,
				re:      regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(p) + `\b`),
			})
		}
		out = append(out, ci)
	}
	return out
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Classify returns the highest-priority intent whose pattern equals the
// normalized text or appears in it as a whole word. Returns IntentNone when
// nothing matches.
func Classify(text string) domain.Intent {
	normalized := normalize(text)
	for _, ci := range compiled {
		for _, p := range ci.patterns {
			if normalized == p.literal || p.re.MatchString(normalized) {
				return ci.intent
			}
		}
	}
	return domain.IntentNone
}

// IsConversational reports whether a message is primarily conversational:
// either it is short (three words or fewer) and classifies as an intent, or
// its first two words alone classify as one.
func IsConversational(text string) bool {
	words := strings.Fields(normalize(text))
	if len(words) <= 3 {
		return Classify(text) != domain.IntentNone
	}
	return Classify(strings.Join(words[:2], " ")) != domain.IntentNone
}
