package model

// Method indicates which pipeline stage produced a classification.
type Method string

// Classification method constants.
const (
	MethodDirectNumber         Method = "direct_number"
	MethodKeyword              Method = "keyword"
	MethodKeywordLowConfidence Method = "keyword_low_confidence"
	MethodNLP                  Method = "nlp"
	MethodFallback             Method = "fallback"
)

// Result is the outcome of classifying a single patient reply. It is created
// fresh per call and never mutated afterwards.
type Result struct {
	// Intent is the final intent after context mapping.
	Intent Intent
	// RawIntent is the pre-mapping label (e.g. "number_1"). Empty when the
	// input normalized to nothing.
	RawIntent Intent
	// Normalized is the canonicalized text the matchers actually saw.
	Normalized string
	// Context is the conversational context supplied by the caller.
	Context ContextType
	// Method records which stage won the precedence cascade.
	Method Method
	// Matches lists the dictionary keywords found, for keyword methods only.
	Matches []string
	// Confidence is a heuristic certainty score in [0, 1].
	Confidence float64
	// NeedsConfirmation flags low-confidence keyword results that should be
	// echoed back to the patient before acting on them.
	NeedsConfirmation bool
}
