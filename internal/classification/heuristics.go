package classification

import "github.com/hmasp-digital/triagem/internal/model"

// HeuristicMatch is an NLP-lite detection result.
type HeuristicMatch struct {
	Intent     model.Intent
	Confidence float64
}

// NLPClassify applies the compiled natural-language patterns to normalized
// text. These catch phrasings the literal keyword dictionaries miss, such as
// "nao vou conseguir ir". The score is flat regardless of which pattern
// fired; heuristics do not accumulate evidence the way keywords do.
func (c *Classifier) NLPClassify(text string) *HeuristicMatch {
	for _, h := range c.heuristics {
		for _, re := range h.patterns {
			if re.MatchString(text) {
				return &HeuristicMatch{
					Intent:     h.intent,
					Confidence: c.rules.HeuristicConfidence,
				}
			}
		}
	}
	return nil
}
