package services

import (
	"fmt"

	"barcode-generator/internal/validator"
)

// Slot selects which user offset applies to a text group
type Slot int

const (
	SlotLeft Slot = iota
	SlotMiddle
	SlotRight
)

const (
	MinFontSize   = validator.MinFontSize
	MaxFontSize   = validator.MaxFontSize
	MaxTextOffset = 20.0
	MaxBoxOffset  = 50.0

	// LetterSpacing is applied to all human-readable text, in em
	LetterSpacing = -0.025

	// outsideDigitPad is the number of modules reserved beside the bars for
	// a digit printed in the quiet zone (EAN-13 and UPC-A)
	outsideDigitPad = 9
)

// TextOptions controls placement of the human-readable line. Offsets are
// in pixels; text offsets move the digit groups, box offsets move the white
// box drawn behind each group.
type TextOptions struct {
	FontSize        int
	OffsetLeft      float64
	OffsetMiddle    float64
	OffsetRight     float64
	OffsetBoxLeft   float64
	OffsetBoxMiddle float64
	OffsetBoxRight  float64
}

// DefaultTextOptions returns options with the given font size and no offsets
func DefaultTextOptions(fontSize int) TextOptions {
	return TextOptions{FontSize: fontSize}
}

// Validate checks every field against its accepted range
func (o TextOptions) Validate() error {
	if o.FontSize < MinFontSize || o.FontSize > MaxFontSize {
		return fmt.Errorf("font size %d not in %d..%d", o.FontSize, MinFontSize, MaxFontSize)
	}
	for name, v := range map[string]float64{
		"offsetLeft": o.OffsetLeft, "offsetMiddle": o.OffsetMiddle, "offsetRight": o.OffsetRight,
	} {
		if v < -MaxTextOffset || v > MaxTextOffset {
			return fmt.Errorf("%s %.1f not in -%.0f..%.0f", name, v, MaxTextOffset, MaxTextOffset)
		}
	}
	for name, v := range map[string]float64{
		"offsetBoxLeft": o.OffsetBoxLeft, "offsetBoxMiddle": o.OffsetBoxMiddle, "offsetBoxRight": o.OffsetBoxRight,
	} {
		if v < -MaxBoxOffset || v > MaxBoxOffset {
			return fmt.Errorf("%s %.1f not in -%.0f..%.0f", name, v, MaxBoxOffset, MaxBoxOffset)
		}
	}
	return nil
}

func (o TextOptions) textOffset(s Slot) float64 {
	switch s {
	case SlotLeft:
		return o.OffsetLeft
	case SlotRight:
		return o.OffsetRight
	default:
		return o.OffsetMiddle
	}
}

func (o TextOptions) boxOffset(s Slot) float64 {
	switch s {
	case SlotLeft:
		return o.OffsetBoxLeft
	case SlotRight:
		return o.OffsetBoxRight
	default:
		return o.OffsetBoxMiddle
	}
}

// TextGroup is one run of human-readable characters. Positions are in
// modules relative to the first module of the symbol.
type TextGroup struct {
	Text    string
	Start   float64
	End     float64
	Slot    Slot
	Outside bool
}

// Center returns the horizontal center of the group in modules
func (g TextGroup) Center() float64 {
	return (g.Start + g.End) / 2
}

type groupSpan struct {
	from, to   int // character range
	start, end float64
	outside    bool
}

// layoutText splits normalized contents into the groups printed under the
// bars. EAN/UPC digit groups sit between the guard patterns; other
// symbologies print one centred line.
func layoutText(sym validator.Symbology, contents string, modules int) []TextGroup {
	var spans []groupSpan
	switch sym {
	case validator.EAN13:
		if len(contents) == 13 {
			spans = []groupSpan{
				{0, 1, -8, -1, true},
				{1, 7, 3, 45, false},
				{7, 13, 50, 92, false},
			}
		}
	case validator.EAN8:
		if len(contents) == 8 {
			spans = []groupSpan{
				{0, 4, 3, 31, false},
				{4, 8, 36, 64, false},
			}
		}
	case validator.UPCA:
		if len(contents) == 12 {
			spans = []groupSpan{
				{0, 1, -8, -1, true},
				{1, 6, 10, 45, false},
				{6, 11, 50, 85, false},
				{11, 12, 96, 103, true},
			}
		}
	}

	if spans == nil {
		return []TextGroup{{Text: contents, Start: 0, End: float64(modules), Slot: SlotMiddle}}
	}

	groups := make([]TextGroup, len(spans))
	for i, sp := range spans {
		slot := SlotMiddle
		switch i {
		case 0:
			slot = SlotLeft
		case len(spans) - 1:
			slot = SlotRight
		}
		groups[i] = TextGroup{
			Text:    contents[sp.from:sp.to],
			Start:   sp.start,
			End:     sp.end,
			Slot:    slot,
			Outside: sp.outside,
		}
	}
	return groups
}

// textPadding returns the minimum left and right padding, in modules, needed
// so that digits printed in the quiet zone stay on the canvas
func textPadding(sym validator.Symbology) (left, right int) {
	switch sym {
	case validator.EAN13:
		return outsideDigitPad, 0
	case validator.UPCA:
		return outsideDigitPad, outsideDigitPad
	default:
		return 0, 0
	}
}

// guardRanges lists module ranges [from, to) whose bars extend below the
// others
func guardRanges(sym validator.Symbology) [][2]int {
	switch sym {
	case validator.EAN13:
		return [][2]int{{0, 3}, {45, 50}, {92, 95}}
	case validator.UPCA:
		// first and last digit bars extend with the guards
		return [][2]int{{0, 10}, {45, 50}, {85, 95}}
	case validator.EAN8:
		return [][2]int{{0, 3}, {31, 36}, {64, 67}}
	default:
		return nil
	}
}
