package classification

import (
	"regexp"

	"github.com/hmasp-digital/triagem/internal/model"
)

// directNumberRe matches a message consisting solely of the digit 1, 2 or 3,
// tolerating surrounding whitespace and a trailing "." or ")". Anything else
// in the message disqualifies the match; a longer reply that merely contains
// a digit falls through to the keyword stage instead.
var directNumberRe = regexp.MustCompile(`^\s*([123])\s*[.)]?\s*$`)

// NumberMatch is a direct-number detection result.
type NumberMatch struct {
	Intent     model.Intent
	Confidence float64
}

// DetectDirectNumber recognizes bare numeric menu replies. Patients are told
// to answer with 1, 2 or 3, so an exact digit is unambiguous by construction
// and always scores full confidence.
func DetectDirectNumber(text string) *NumberMatch {
	m := directNumberRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	var intent model.Intent
	switch m[1] {
	case "1":
		intent = model.IntentNumber1
	case "2":
		intent = model.IntentNumber2
	case "3":
		intent = model.IntentNumber3
	}

	return &NumberMatch{Intent: intent, Confidence: 1.0}
}
