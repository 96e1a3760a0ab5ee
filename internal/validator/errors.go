package validator

import "errors"

// Kind classifies why an input was rejected
type Kind int

const (
	KindNone Kind = iota
	KindEmptyInput
	KindGrammarViolation
	KindLengthViolation
	KindUnsupportedSymbology
)

// String returns the API code for the kind
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "NONE"
	case KindEmptyInput:
		return "EMPTY_INPUT"
	case KindGrammarViolation:
		return "GRAMMAR_VIOLATION"
	case KindLengthViolation:
		return "LENGTH_VIOLATION"
	case KindUnsupportedSymbology:
		return "UNSUPPORTED_SYMBOLOGY"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrEmptyInput           = errors.New("empty input")
	ErrGrammarViolation     = errors.New("grammar violation")
	ErrLengthViolation      = errors.New("length violation")
	ErrUnsupportedSymbology = errors.New("unsupported symbology")
	ErrQuietZoneRange       = errors.New("quiet zone out of range")
)

func (k Kind) sentinel() error {
	switch k {
	case KindEmptyInput:
		return ErrEmptyInput
	case KindGrammarViolation:
		return ErrGrammarViolation
	case KindLengthViolation:
		return ErrLengthViolation
	case KindUnsupportedSymbology:
		return ErrUnsupportedSymbology
	default:
		return nil
	}
}

// RejectionError carries a rejection reason and unwraps to the sentinel of its kind
type RejectionError struct {
	Kind   Kind
	Reason string
}

func (e *RejectionError) Error() string {
	return e.Reason
}

func (e *RejectionError) Unwrap() error {
	return e.Kind.sentinel()
}
