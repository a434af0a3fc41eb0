// Package classification implements the layered intent-detection pipeline for
// patient replies: normalization, direct-number detection, keyword matching,
// NLP-lite heuristics and a free-talk fallback, in strict priority order.
package classification

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/hmasp-digital/triagem/internal/model"
)

// Classifier runs the precedence cascade over one reply at a time. It holds
// no mutable state after construction and is safe for concurrent use.
type Classifier struct {
	rules      Rules
	heuristics []compiledHeuristic
	intents    []model.Intent
}

type compiledHeuristic struct {
	intent   model.Intent
	patterns []*regexp.Regexp
}

// NewClassifier compiles the given rules into a ready classifier. A malformed
// heuristic pattern is a configuration defect and fails construction.
func NewClassifier(rules Rules) (*Classifier, error) {
	rules = rules.withDefaults()

	compiled := make([]compiledHeuristic, 0, len(rules.Heuristics))
	for _, h := range rules.Heuristics {
		ch := compiledHeuristic{intent: h.Intent, patterns: make([]*regexp.Regexp, 0, len(h.Patterns))}
		for _, p := range h.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("failed to compile heuristic pattern for %s: %w", h.Intent, err)
			}
			ch.patterns = append(ch.patterns, re)
		}
		compiled = append(compiled, ch)
	}

	// Fixed dictionary scan order keeps tie-breaking deterministic.
	intents := make([]model.Intent, 0, len(rules.Dictionaries))
	for intent := range rules.Dictionaries {
		intents = append(intents, intent)
	}
	sort.Slice(intents, func(i, j int) bool { return intents[i] < intents[j] })

	return &Classifier{
		rules:      rules,
		heuristics: compiled,
		intents:    intents,
	}, nil
}

// Rules returns the configuration the classifier was built with.
func (c *Classifier) Rules() Rules {
	return c.rules
}

// Classify runs the full pipeline over a raw patient reply. Stages are
// winner-take-all: the first sufficiently confident stage answers and nothing
// downstream runs. It never fails; malformed input degrades to IntentUnknown
// and unmatchable input to IntentFreeTalk.
func (c *Classifier) Classify(rawText string, ctx model.ContextType) model.Result {
	normalized := Normalize(rawText)
	if normalized == "" {
		return model.Result{
			Intent:  model.IntentUnknown,
			Context: ctx,
		}
	}

	// Direct numbers dominate everything else.
	if num := DetectDirectNumber(normalized); num != nil {
		return model.Result{
			Intent:     MapNumberToIntent(num.Intent, ctx),
			RawIntent:  num.Intent,
			Confidence: num.Confidence,
			Normalized: normalized,
			Context:    ctx,
			Method:     model.MethodDirectNumber,
		}
	}

	keyword := c.DetectKeywords(normalized, ctx)
	if keyword != nil && keyword.Confidence >= c.rules.HighConfidence {
		return model.Result{
			Intent:     keyword.Intent,
			RawIntent:  keyword.Intent,
			Confidence: keyword.Confidence,
			Normalized: normalized,
			Context:    ctx,
			Method:     model.MethodKeyword,
			Matches:    keyword.Matches,
		}
	}

	if nlp := c.NLPClassify(normalized); nlp != nil && nlp.Confidence >= c.rules.MediumConfidence {
		return model.Result{
			Intent:     nlp.Intent,
			RawIntent:  nlp.Intent,
			Confidence: nlp.Confidence,
			Normalized: normalized,
			Context:    ctx,
			Method:     model.MethodNLP,
		}
	}

	// A weak keyword hit still beats the catch-all, but flagged for
	// confirmation before anyone acts on it.
	if keyword != nil {
		return model.Result{
			Intent:            keyword.Intent,
			RawIntent:         keyword.Intent,
			Confidence:        keyword.Confidence,
			Normalized:        normalized,
			Context:           ctx,
			Method:            model.MethodKeywordLowConfidence,
			Matches:           keyword.Matches,
			NeedsConfirmation: true,
		}
	}

	return model.Result{
		Intent:     model.IntentFreeTalk,
		RawIntent:  model.IntentFreeTalk,
		Confidence: c.rules.FallbackConfidence,
		Normalized: normalized,
		Context:    ctx,
		Method:     model.MethodFallback,
	}
}
