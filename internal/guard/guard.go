// Package guard implements the pre-model emergency check. It is a plain
// lowercase substring match against a fixed phrase set: cheap, deterministic,
// and immune to prompt injection, which is exactly why it runs before any
// model call. The matching admits false positives (negated mentions) and
// false negatives (paraphrased emergencies); that trade-off is part of the
// contract, not something to paper over with a smarter classifier.
package guard

import "strings"

// EmergencyResponse is the fixed escalation reply. It is returned verbatim
// for the triggering turn and for every turn after the session latches.
const EmergencyResponse = "This may be an emergency. Please call 911 immediately."

// DefaultPhrases is the acute-symptom phrase set checked on every turn.
var DefaultPhrases = []string{
	"chest pain", "heart attack", "can't breathe", "can't breath", "choking",
	"severe pain", "unconscious", "bleeding heavily", "severe bleeding",
	"stroke", "severe headache", "suicide", "self harm", "overdose",
	"severe allergic reaction", "anaphylaxis", "severe burn", "broken bone",
	"severe injury", "emergency", "911", "ambulance", "urgent",
}

// Guard checks user text for emergency language. The zero value is not
// usable; construct with New.
type Guard struct {
	phrases []string
}

// New builds a guard over the given phrase set. An empty set falls back to
// DefaultPhrases. Phrases are matched lowercase.
func New(phrases []string) *Guard {
	if len(phrases) == 0 {
		phrases = DefaultPhrases
	}
	lowered := make([]string, len(phrases))
	for i, p := range phrases {
		lowered[i] = strings.ToLower(p)
	}
	return &Guard{phrases: lowered}
}

// Check reports whether text contains emergency language.
func (g *Guard) Check(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range g.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
