package validator

import "fmt"

// Request is a single generate/preview/download action. It is built per
// user action and never mutated.
type Request struct {
	Contents  string
	Symbology Symbology
	QuietZone int
}

// NewRequest builds a Request, checking only the quiet zone range.
// Contents and symbology are checked by Validate.
func NewRequest(contents string, symbology Symbology, quietZone int) (Request, error) {
	if quietZone < MinQuietZone || quietZone > MaxQuietZone {
		return Request{}, fmt.Errorf("quiet zone %d not in %d..%d: %w", quietZone, MinQuietZone, MaxQuietZone, ErrQuietZoneRange)
	}
	return Request{Contents: contents, Symbology: symbology, QuietZone: quietZone}, nil
}

// Normalize validates the request. On success it returns a copy whose
// Contents is the normalized string, ready for the renderer.
func (r Request) Normalize() (Request, Result) {
	res := Validate(r.Contents, r.Symbology)
	if !res.Accepted {
		return Request{}, res
	}
	return Request{Contents: res.NormalizedContents, Symbology: r.Symbology, QuietZone: r.QuietZone}, res
}
