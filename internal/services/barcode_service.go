package services

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"regexp"
	"strconv"
	"strings"

	"barcode-generator/internal/config"
	"barcode-generator/internal/validator"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/ean"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ErrUnencodable is returned when the encoder refuses contents that passed
// validation, e.g. Code128 input outside the encodable character set
var ErrUnencodable = errors.New("contents cannot be encoded")

// Bar is a run of dark modules
type Bar struct {
	Start int
	Width int
	Guard bool
}

// Symbol is the module pattern of an encoded barcode
type Symbol struct {
	Symbology validator.Symbology
	Contents  string
	Modules   int
	Bars      []Bar
}

type BarcodeService struct {
	cfg config.BarcodeConfig
}

func NewBarcodeService(cfg config.BarcodeConfig) *BarcodeService {
	if cfg.ModuleWidth <= 0 {
		cfg.ModuleWidth = 1
	}
	if cfg.BarHeight <= 0 {
		cfg.BarHeight = 1
	}
	if cfg.FontFamily == "" {
		cfg.FontFamily = "monospace"
	}
	return &BarcodeService{cfg: cfg}
}

// Encode turns normalized contents into an unscaled 1-D barcode. UPC-A is
// encoded as EAN-13 with a leading zero, which yields the same bars.
func (s *BarcodeService) Encode(req validator.Request) (barcode.Barcode, error) {
	var (
		bc  barcode.Barcode
		err error
	)
	switch req.Symbology {
	case validator.EAN13, validator.EAN8:
		var c barcode.BarcodeIntCS
		if c, err = ean.Encode(req.Contents); err == nil {
			bc = c
		}
	case validator.UPCA:
		var c barcode.BarcodeIntCS
		if c, err = ean.Encode("0" + req.Contents); err == nil {
			bc = c
		}
	case validator.Code128:
		var c barcode.BarcodeIntCS
		if c, err = code128.Encode(req.Contents); err == nil {
			bc = c
		}
	case validator.Code39:
		var c barcode.BarcodeIntCS
		if c, err = code39.Encode(req.Contents, false, false); err == nil {
			bc = c
		}
	default:
		return nil, validator.ErrUnsupportedSymbology
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s barcode: %w: %v", req.Symbology.DisplayName(), ErrUnencodable, err)
	}
	return bc, nil
}

// Symbol encodes req and extracts its bar runs
func (s *BarcodeService) Symbol(req validator.Request) (*Symbol, error) {
	bc, err := s.Encode(req)
	if err != nil {
		return nil, err
	}
	return symbolOf(req, bc), nil
}

func symbolOf(req validator.Request, bc barcode.Barcode) *Symbol {
	modules := bc.Bounds().Dx()
	guards := guardRanges(req.Symbology)
	sym := &Symbol{Symbology: req.Symbology, Contents: req.Contents, Modules: modules}

	minX, y := bc.Bounds().Min.X, bc.Bounds().Min.Y
	for x := 0; x < modules; {
		if !isDark(bc.At(minX+x, y)) {
			x++
			continue
		}
		start := x
		for x < modules && isDark(bc.At(minX+x, y)) {
			x++
		}
		sym.Bars = append(sym.Bars, Bar{Start: start, Width: x - start, Guard: inRanges(start, guards)})
	}
	return sym
}

func isDark(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r+g+b < 3*0x8000
}

func inRanges(x int, ranges [][2]int) bool {
	for _, r := range ranges {
		if x >= r[0] && x < r[1] {
			return true
		}
	}
	return false
}

// geometry is the pixel layout shared by the SVG and PNG renderers
type geometry struct {
	moduleWidth float64
	leftPad     int
	rightPad    int
	barHeight   float64
	guardHeight float64
	baseline    float64
	width       float64
	height      float64
}

func (s *BarcodeService) geometry(sym *Symbol, quietZone int, opts TextOptions) geometry {
	padL, padR := textPadding(sym.Symbology)
	g := geometry{
		moduleWidth: s.cfg.ModuleWidth,
		leftPad:     max(quietZone, padL),
		rightPad:    max(quietZone, padR),
		barHeight:   s.cfg.BarHeight,
		guardHeight: s.cfg.BarHeight,
	}
	if guardRanges(sym.Symbology) != nil {
		g.guardHeight += s.cfg.GuardExtension
	}

	fs := float64(opts.FontSize)
	g.baseline = g.barHeight + 2 + fs*0.8
	g.width = float64(g.leftPad+sym.Modules+g.rightPad) * g.moduleWidth
	g.height = math.Ceil(math.Max(g.guardHeight, g.baseline+fs*0.25) + 2)
	return g
}

// x returns the pixel position of a module coordinate
func (g geometry) x(module float64) float64 {
	return (float64(g.leftPad) + module) * g.moduleWidth
}

// RenderSVG renders req (already normalized) as an SVG document with the
// human-readable line overlaid under the bars
func (s *BarcodeService) RenderSVG(req validator.Request, opts TextOptions) ([]byte, error) {
	sym, err := s.Symbol(req)
	if err != nil {
		return nil, err
	}
	g := s.geometry(sym, req.QuietZone, opts)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" version="1.1" width="%s" height="%s" viewBox="0 0 %s %s">`+"\n",
		num(g.width), num(g.height), num(g.width), num(g.height))
	fmt.Fprintf(&b, `  <rect x="0" y="0" width="%s" height="%s" fill="#FFFFFF"/>`+"\n", num(g.width), num(g.height))

	b.WriteString(`  <g id="bars" fill="#000000">` + "\n")
	for _, bar := range sym.Bars {
		h := g.barHeight
		if bar.Guard {
			h = g.guardHeight
		}
		fmt.Fprintf(&b, `    <rect class="bar" x="%s" y="0" width="%s" height="%s"/>`+"\n",
			num(g.x(float64(bar.Start))), num(float64(bar.Width)*g.moduleWidth), num(h))
	}
	b.WriteString("  </g>\n")

	groups := layoutText(sym.Symbology, sym.Contents, sym.Modules)

	b.WriteString(`  <g id="text-boxes" fill="#FFFFFF">` + "\n")
	for _, grp := range groups {
		if grp.Outside {
			continue
		}
		fmt.Fprintf(&b, `    <rect class="text-box" x="%s" y="%s" width="%s" height="%s"/>`+"\n",
			num(g.x(grp.Start)+opts.boxOffset(grp.Slot)), num(g.barHeight),
			num((grp.End-grp.Start)*g.moduleWidth), num(g.height-g.barHeight))
	}
	b.WriteString("  </g>\n")

	fmt.Fprintf(&b, `  <g id="text" font-family="%s" font-size="%d" text-anchor="middle" letter-spacing="%sem" style="font-feature-settings: 'lnum', 'tnum';" fill="#000000">`+"\n",
		html.EscapeString(s.cfg.FontFamily), opts.FontSize, num(LetterSpacing))
	for _, grp := range groups {
		fmt.Fprintf(&b, `    <text x="%s" y="%s">%s</text>`+"\n",
			num(g.x(grp.Center())+opts.textOffset(grp.Slot)), num(g.baseline), html.EscapeString(grp.Text))
	}
	b.WriteString("  </g>\n")
	b.WriteString("</svg>\n")

	return []byte(b.String()), nil
}

// RenderPNG renders req as a bitmap. Text uses the built-in 7x13 face
// scaled to the requested font size.
func (s *BarcodeService) RenderPNG(req validator.Request, opts TextOptions) ([]byte, error) {
	img, err := s.RenderImage(req, opts)
	if err != nil {
		return nil, err
	}

	// Convert to PNG bytes
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode barcode as PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderImage is RenderPNG without the PNG encoding step
func (s *BarcodeService) RenderImage(req validator.Request, opts TextOptions) (*image.RGBA, error) {
	bc, err := s.Encode(req)
	if err != nil {
		return nil, err
	}
	sym := symbolOf(req, bc)

	g := s.geometry(sym, req.QuietZone, opts)
	mw := int(math.Max(1, math.Round(g.moduleWidth)))
	barH := int(math.Round(g.barHeight))
	fs := opts.FontSize

	// Scale the barcode to whole pixels per module
	scaled, err := barcode.Scale(bc, sym.Modules*mw, barH)
	if err != nil {
		return nil, fmt.Errorf("failed to scale barcode: %w", err)
	}

	guardH := int(math.Round(g.guardHeight))
	width := (g.leftPad + sym.Modules + g.rightPad) * mw
	height := max(barH+fs+8, guardH+2)
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	left := g.leftPad * mw
	barsAt := image.Rect(left, 0, left+sym.Modules*mw, barH)
	draw.Draw(img, barsAt, scaled, scaled.Bounds().Min, draw.Src)

	// guard bars run on below the others
	black := &image.Uniform{color.Black}
	for _, bar := range sym.Bars {
		if bar.Guard {
			x := left + bar.Start*mw
			draw.Draw(img, image.Rect(x, barH, x+bar.Width*mw, guardH), black, image.Point{}, draw.Src)
		}
	}

	groups := layoutText(sym.Symbology, sym.Contents, sym.Modules)

	white := &image.Uniform{color.White}
	for _, grp := range groups {
		if grp.Outside {
			continue
		}
		x0 := int(math.Round((float64(g.leftPad)+grp.Start)*float64(mw) + opts.boxOffset(grp.Slot)))
		x1 := x0 + int(math.Round((grp.End-grp.Start)*float64(mw)))
		draw.Draw(img, image.Rect(x0, barH, x1, height), white, image.Point{}, draw.Src)
	}

	for _, grp := range groups {
		cx := (float64(g.leftPad)+grp.Center())*float64(mw) + opts.textOffset(grp.Slot)
		drawScaledText(img, grp.Text, int(math.Round(cx)), barH+4, fs)
	}
	return img, nil
}

// drawScaledText draws text centred on cx with its top at y, scaling the
// 7x13 face to the given pixel height
func drawScaledText(img *image.RGBA, text string, cx, y, size int) {
	face := basicfont.Face7x13
	glyphs := image.NewRGBA(image.Rect(0, 0, face.Advance*len(text), face.Height))

	d := &font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: fixed.I(face.Ascent)},
	}
	d.DrawString(text)

	w := glyphs.Bounds().Dx() * size / face.Height
	dst := image.Rect(cx-w/2, y, cx-w/2+w, y+size)
	xdraw.NearestNeighbor.Scale(img, dst, glyphs, glyphs.Bounds(), draw.Over, nil)
}

// num formats a coordinate without trailing zeros
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DownloadFilename builds barcode_<symbology>_<contents>.<ext>. Runs of
// characters unsafe in a header or on disk become a single underscore.
func DownloadFilename(req validator.Request, ext string) string {
	contents := unsafeFilenameChars.ReplaceAllString(req.Contents, "_")
	return fmt.Sprintf("barcode_%s_%s.%s", req.Symbology, contents, ext)
}
