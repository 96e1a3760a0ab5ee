// Package validator decides whether user input can be rendered as a barcode
// and produces the canonical content string for the renderer.
//
// Validation is a pure function of (contents, symbology). For EAN-13, EAN-8
// and UPC-A the trailing check digit is always computed here; a digit
// supplied by the caller is discarded.
package validator

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	NoteRecomputed = "check digit recomputed"
	NoteAdded      = "check digit added"

	MinQuietZone = 0
	MaxQuietZone = 50

	// human-readable text size in pixels
	MinFontSize = 8
	MaxFontSize = 45

	code39Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-. $/+%"
)

// rule is one row of the symbology table
type rule struct {
	name     string
	alphabet string
	allowed  func(r rune) bool
	minLen   int
	maxLen   int // 0 means unbounded

	// checksum parameters; payloadLen 0 disables the check digit
	payloadLen int
	evenWeight int
	oddWeight  int
}

var rules = map[Symbology]rule{
	EAN13: {
		name: "EAN-13", alphabet: "digits", allowed: isDigit,
		minLen: 12, maxLen: 13,
		payloadLen: 12, evenWeight: 1, oddWeight: 3,
	},
	EAN8: {
		name: "EAN-8", alphabet: "digits", allowed: isDigit,
		minLen: 7, maxLen: 8,
		payloadLen: 7, evenWeight: 3, oddWeight: 1,
	},
	UPCA: {
		name: "UPC-A", alphabet: "digits", allowed: isDigit,
		minLen: 11, maxLen: 12,
		payloadLen: 11, evenWeight: 3, oddWeight: 1,
	},
	Code128: {
		name: "Code128", alphabet: "any characters", allowed: func(rune) bool { return true },
		minLen: 1, maxLen: 80,
	},
	Code39: {
		name: "Code39", alphabet: "uppercase letters, digits and - . space $ / + %", allowed: isCode39,
		minLen: 1,
	},
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isCode39(r rune) bool {
	return strings.ContainsRune(code39Alphabet, r)
}

// Result is the outcome of Validate. Exactly one of the accepted or
// rejected field groups is meaningful, selected by Accepted.
type Result struct {
	Accepted bool

	// accepted
	NormalizedContents string
	Note               string

	// rejected
	Kind   Kind
	Reason string
}

func accepted(contents, note string) Result {
	return Result{Accepted: true, NormalizedContents: contents, Note: note}
}

func rejected(kind Kind, reason string) Result {
	return Result{Kind: kind, Reason: reason}
}

// Err returns nil for an accepted result and a *RejectionError otherwise
func (r Result) Err() error {
	if r.Accepted {
		return nil
	}
	return &RejectionError{Kind: r.Kind, Reason: r.Reason}
}

// Validate checks contents against the grammar of symbology and returns
// the renderable content string or a rejection.
func Validate(contents string, symbology Symbology) Result {
	if strings.TrimSpace(contents) == "" {
		return rejected(KindEmptyInput, "empty input")
	}

	r, ok := rules[symbology]
	if !ok {
		return rejected(KindUnsupportedSymbology, "unsupported symbology")
	}

	if r.payloadLen > 0 {
		return validateChecksummed(contents, r)
	}

	for _, c := range contents {
		if !r.allowed(c) {
			return rejected(KindGrammarViolation,
				fmt.Sprintf("%s accepts %s only", r.name, r.alphabet))
		}
	}
	if n := utf8.RuneCountInString(contents); n < r.minLen || (r.maxLen > 0 && n > r.maxLen) {
		return rejected(KindLengthViolation,
			fmt.Sprintf("%s accepts at most %d characters", r.name, r.maxLen))
	}
	return accepted(contents, "")
}

func validateChecksummed(contents string, r rule) Result {
	reason := fmt.Sprintf("%s accepts %d or %d digits only", r.name, r.minLen, r.maxLen)

	for _, c := range contents {
		if !r.allowed(c) {
			return rejected(KindGrammarViolation, reason)
		}
	}
	// all bytes are ASCII digits past this point
	if len(contents) < r.minLen || len(contents) > r.maxLen {
		return rejected(KindLengthViolation, reason)
	}

	payload := contents[:r.payloadLen]
	normalized := payload + string(checkDigit(payload, r.evenWeight, r.oddWeight))

	note := NoteAdded
	if len(contents) == r.maxLen {
		note = NoteRecomputed
	}
	return accepted(normalized, note)
}

// checkDigit computes (10 - weighted sum mod 10) mod 10 over an ASCII digit
// payload. Position 0 is the leftmost digit.
func checkDigit(payload string, evenWeight, oddWeight int) byte {
	sum := 0
	for i := 0; i < len(payload); i++ {
		d := int(payload[i] - '0')
		if i%2 == 0 {
			sum += d * evenWeight
		} else {
			sum += d * oddWeight
		}
	}
	return byte('0' + (10-sum%10)%10)
}

// CheckDigit returns the check digit of a payload for a checksum-bearing
// symbology. The payload must be exactly PayloadLength digits.
func CheckDigit(symbology Symbology, payload string) (byte, error) {
	r, ok := rules[symbology]
	if !ok {
		return 0, ErrUnsupportedSymbology
	}
	if r.payloadLen == 0 {
		return 0, fmt.Errorf("%s has no check digit", r.name)
	}
	if len(payload) != r.payloadLen {
		return 0, fmt.Errorf("%s payload must be %d digits: %w", r.name, r.payloadLen, ErrLengthViolation)
	}
	for _, c := range payload {
		if !isDigit(c) {
			return 0, fmt.Errorf("%s payload must be digits: %w", r.name, ErrGrammarViolation)
		}
	}
	return checkDigit(payload, r.evenWeight, r.oddWeight), nil
}
