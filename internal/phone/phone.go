// Package phone normalizes Brazilian phone numbers into E.164 so inbound
// replies can be matched to the conversation context they belong to.
package phone

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Type classifies a normalized number.
type Type string

// Number types.
const (
	TypeMobile   Type = "mobile"
	TypeLandline Type = "landline"
	TypeInvalid  Type = "invalid"
)

// Number is the result of normalizing a raw phone string.
type Number struct {
	// E164 is the canonical +55DDNNNNNNNNN form, empty when invalid.
	E164       string
	DDD        string
	Subscriber string
	Type       Type
	Valid      bool
}

// validDDDs is the set of Brazilian area codes in service.
var validDDDs = map[string]bool{
	"11": true, "12": true, "13": true, "14": true, "15": true, "16": true,
	"17": true, "18": true, "19": true,
	"21": true, "22": true, "24": true,
	"27": true, "28": true,
	"31": true, "32": true, "33": true, "34": true, "35": true, "37": true, "38": true,
	"41": true, "42": true, "43": true, "44": true, "45": true, "46": true,
	"47": true, "48": true, "49": true,
	"51": true, "53": true, "54": true, "55": true,
	"61": true,
	"62": true, "64": true,
	"63": true,
	"65": true, "66": true,
	"67": true,
	"68": true,
	"69": true,
	"71": true, "73": true, "74": true, "75": true, "77": true,
	"79": true,
	"81": true, "87": true,
	"82": true,
	"83": true,
	"84": true,
	"85": true, "88": true,
	"86": true, "89": true,
	"91": true, "93": true, "94": true,
	"92": true, "97": true,
	"95": true,
	"96": true,
	"98": true, "99": true,
}

var nonDigitRe = regexp.MustCompile(`\D`)

// Normalize canonicalizes a raw Brazilian phone number. It strips formatting,
// the +55 country code and leading zeros, validates the DDD, and inserts the
// ninth digit on older eight-digit mobile numbers.
func Normalize(raw string) Number {
	invalid := Number{Type: TypeInvalid}
	if raw == "" {
		return invalid
	}

	cleaned := nonDigitRe.ReplaceAllString(raw, "")
	cleaned = strings.TrimLeft(cleaned, "0")
	cleaned = strings.TrimPrefix(cleaned, "55")

	if len(cleaned) < 10 {
		return invalid
	}

	ddd := cleaned[:2]
	if !validDDDs[ddd] {
		return invalid
	}

	subscriber := cleaned[2:]
	typ := TypeLandline

	switch {
	case len(subscriber) == 9:
		if !strings.HasPrefix(subscriber, "9") {
			return invalid
		}
		typ = TypeMobile
	case len(subscriber) == 8:
		// Mobile ranges start at 6; everything else is a landline.
		switch subscriber[0] {
		case '6', '7', '8', '9':
			subscriber = "9" + subscriber
			typ = TypeMobile
		}
	case len(subscriber) == 10 && strings.HasPrefix(subscriber, "9"):
		// DDD repeated inside the subscriber; drop it.
		subscriber = subscriber[2:]
		typ = TypeMobile
	default:
		return invalid
	}

	return Number{
		E164:       fmt.Sprintf("+55%s%s", ddd, subscriber),
		DDD:        ddd,
		Subscriber: subscriber,
		Type:       typ,
		Valid:      true,
	}
}

// FormatForDisplay renders an E.164 number in the familiar (DD) NNNNN-NNNN
// form. Numbers outside the +55 space are returned untouched.
func FormatForDisplay(e164 string) string {
	if !strings.HasPrefix(e164, "+55") {
		return e164
	}

	rest := strings.TrimPrefix(e164, "+55")
	if len(rest) < 10 {
		return e164
	}

	ddd := rest[:2]
	subscriber := rest[2:]

	switch len(subscriber) {
	case 9:
		return fmt.Sprintf("(%s) %s-%s", ddd, subscriber[:5], subscriber[5:])
	case 8:
		return fmt.Sprintf("(%s) %s-%s", ddd, subscriber[:4], subscriber[4:])
	}
	return e164
}

// IsChatCapable reports whether the number can receive chat messages, which
// requires a valid mobile line.
func IsChatCapable(raw string) bool {
	n := Normalize(raw)
	return n.Valid && n.Type == TypeMobile
}

// Candidate is a raw phone number with its registration label from the
// scheduling system ("Celular", "Adicional" or "Fixo").
type Candidate struct {
	Label string
	Raw   string
}

// labelPriority orders candidates the way operators want them tried.
var labelPriority = map[string]int{
	"Celular":   1,
	"Adicional": 2,
	"Fixo":      3,
}

// Dedupe normalizes a patient's registered numbers, drops invalid ones and
// duplicates, and returns the survivors in contact-priority order.
func Dedupe(candidates []Candidate) []Number {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, ok := labelPriority[sorted[i].Label]
		if !ok {
			pi = 99
		}
		pj, ok := labelPriority[sorted[j].Label]
		if !ok {
			pj = 99
		}
		return pi < pj
	})

	seen := make(map[string]bool)
	var result []Number
	for _, c := range sorted {
		n := Normalize(c.Raw)
		if !n.Valid || seen[n.E164] {
			continue
		}
		seen[n.E164] = true
		result = append(result, n)
	}
	return result
}
