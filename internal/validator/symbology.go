package validator

import (
	"strings"
)

// Symbology identifies a supported barcode encoding standard
type Symbology string

const (
	EAN13   Symbology = "ean13"
	EAN8    Symbology = "ean8"
	UPCA    Symbology = "upca"
	Code128 Symbology = "code128"
	Code39  Symbology = "code39"
)

// Symbologies returns the closed set of supported symbologies in display order
func Symbologies() []Symbology {
	return []Symbology{EAN13, EAN8, UPCA, Code128, Code39}
}

// ParseSymbology maps a wire name ("ean13", "CODE128", ...) to a Symbology
func ParseSymbology(name string) (Symbology, error) {
	sym := Symbology(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := rules[sym]; !ok {
		return "", ErrUnsupportedSymbology
	}
	return sym, nil
}

func (s Symbology) String() string {
	return string(s)
}

// DisplayName returns the human form of the symbology name, e.g. "EAN-13"
func (s Symbology) DisplayName() string {
	if r, ok := rules[s]; ok {
		return r.name
	}
	return strings.ToUpper(string(s))
}

// Supported reports whether s is one of the known symbologies
func (s Symbology) Supported() bool {
	_, ok := rules[s]
	return ok
}

// HasChecksum reports whether s carries a computed check digit
func (s Symbology) HasChecksum() bool {
	r, ok := rules[s]
	return ok && r.payloadLen > 0
}

// PayloadLength is the number of checksum-significant digits, 0 for symbologies without a check digit
func (s Symbology) PayloadLength() int {
	return rules[s].payloadLen
}

// Info describes the input rules of a symbology for API consumers
type Info struct {
	ID          Symbology `json:"id"`
	Name        string    `json:"name"`
	Alphabet    string    `json:"alphabet"`
	MinLength   int       `json:"min_length"`
	MaxLength   int       `json:"max_length,omitempty"`
	HasChecksum bool      `json:"has_checksum"`
}

// Describe returns the rule summary for every supported symbology
func Describe() []Info {
	infos := make([]Info, 0, len(rules))
	for _, sym := range Symbologies() {
		r := rules[sym]
		infos = append(infos, Info{
			ID:          sym,
			Name:        r.name,
			Alphabet:    r.alphabet,
			MinLength:   r.minLen,
			MaxLength:   r.maxLen,
			HasChecksum: r.payloadLen > 0,
		})
	}
	return infos
}
