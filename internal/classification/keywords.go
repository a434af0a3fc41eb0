package classification

import (
	"strings"

	"github.com/hmasp-digital/triagem/internal/model"
)

// KeywordMatch is the best keyword-dictionary hit for a piece of text.
type KeywordMatch struct {
	Intent     model.Intent
	Matches    []string
	MatchCount int
	Confidence float64
}

// DetectKeywords scans the normalized text against every intent dictionary
// and returns the single best match, or nil when nothing matched.
//
// Scoring is context-agnostic: confidence is base + bonus per corroborating
// keyword, capped below certainty. The context only enters as a tie-break —
// when two intents score identically, the one compatible with the active
// conversation wins. Iteration order over dictionaries is sorted by intent so
// results are deterministic.
func (c *Classifier) DetectKeywords(text string, ctx model.ContextType) *KeywordMatch {
	var best *KeywordMatch

	for _, intent := range c.intents {
		dict := c.rules.Dictionaries[intent]

		var matches []string
		for _, keyword := range dict.Keywords {
			if strings.Contains(text, keyword) {
				matches = append(matches, keyword)
			}
		}
		if len(matches) == 0 {
			continue
		}

		confidence := dict.BaseConfidence + float64(len(matches))*c.rules.KeywordMatchBonus
		if confidence > c.rules.MaxKeywordConfidence {
			confidence = c.rules.MaxKeywordConfidence
		}

		candidate := &KeywordMatch{
			Intent:     intent,
			Matches:    matches,
			MatchCount: len(matches),
			Confidence: confidence,
		}

		switch {
		case best == nil || candidate.Confidence > best.Confidence:
			best = candidate
		case candidate.Confidence == best.Confidence &&
			!IsIntentCompatibleWithContext(best.Intent, ctx) &&
			IsIntentCompatibleWithContext(candidate.Intent, ctx):
			best = candidate
		}
	}

	return best
}
