package services

import (
	"bytes"
	"fmt"
	"log"
	"os"

	"barcode-generator/internal/config"
	"barcode-generator/internal/validator"

	"github.com/jung-kurt/gofpdf"
)

const (
	ocrbFamily = "OCRB"

	// FontFallbackNotice is reported when the OCR-B font file is unavailable
	FontFallbackNotice = "Missing OCRB font, using fallback"
)

// PDFResult is a rendered vector download
type PDFResult struct {
	Data       []byte
	FontNotice string
}

type PDFService struct {
	pdfConfig *config.PDFConfig
	barcodes  *BarcodeService
}

func NewPDFService(pdfConfig *config.PDFConfig, barcodes *BarcodeService) *PDFService {
	return &PDFService{
		pdfConfig: pdfConfig,
		barcodes:  barcodes,
	}
}

// GenerateBarcodePDF draws req as vector bars on a single page and prints
// the contents below, one character at a time with tightened spacing. The
// output is served as an Illustrator-compatible .ai file.
func (s *PDFService) GenerateBarcodePDF(req validator.Request) (*PDFResult, error) {
	sym, err := s.barcodes.Symbol(req)
	if err != nil {
		return nil, err
	}

	cfg := s.pdfConfig
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: cfg.PageWidth, Ht: cfg.PageHeight},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(fmt.Sprintf("%s %s", req.Symbology.DisplayName(), req.Contents), true)
	pdf.SetCreator("barcode-generator", true)
	pdf.AddPage()

	s.drawBars(pdf, sym, req.QuietZone)

	notice := s.setTextFont(pdf)
	s.drawText(pdf, req.Contents, notice != "")

	// Output PDF to bytes
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return &PDFResult{Data: buf.Bytes(), FontNotice: notice}, nil
}

// drawBars centres the symbol horizontally and scales it to fit MaxBarsWidth
func (s *PDFService) drawBars(pdf *gofpdf.Fpdf, sym *Symbol, quietZone int) {
	cfg := s.pdfConfig
	padL, padR := textPadding(sym.Symbology)
	leftPad, rightPad := max(quietZone, padL), max(quietZone, padR)

	total := float64(leftPad + sym.Modules + rightPad)
	moduleWidth := cfg.MaxBarsWidth / total
	x0 := (cfg.PageWidth-total*moduleWidth)/2 + float64(leftPad)*moduleWidth

	guardHeight := cfg.BarHeight
	if guardRanges(sym.Symbology) != nil {
		guardHeight += cfg.BarHeight * 0.06
	}

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetFillColor(0, 0, 0)
	for _, bar := range sym.Bars {
		h := cfg.BarHeight
		if bar.Guard {
			h = guardHeight
		}
		pdf.Rect(x0+float64(bar.Start)*moduleWidth, cfg.TopMargin, float64(bar.Width)*moduleWidth, h, "F")
	}
}

// setTextFont selects OCR-B when the font file loads, Courier otherwise
func (s *PDFService) setTextFont(pdf *gofpdf.Fpdf) string {
	cfg := s.pdfConfig
	if cfg.FontPath != "" {
		if fontBytes, err := os.ReadFile(cfg.FontPath); err == nil {
			pdf.AddUTF8FontFromBytes(ocrbFamily, "", fontBytes)
			// a font that fails to parse is only detected when selected
			if !pdf.Err() {
				pdf.SetFont(ocrbFamily, "", cfg.FontSize)
			}
			if !pdf.Err() {
				return ""
			}
			log.Printf("PDFService: failed to load font %s: %v", cfg.FontPath, pdf.Error())
			pdf.ClearError()
		}
	}

	pdf.SetFont("Courier", "", cfg.FontSize)
	return FontFallbackNotice
}

// drawText renders contents centred at the text baseline, advancing by each
// glyph width plus LetterSpacing
func (s *PDFService) drawText(pdf *gofpdf.Fpdf, contents string, coreFont bool) {
	cfg := s.pdfConfig

	translate := func(str string) string { return str }
	if coreFont {
		translate = pdf.UnicodeTranslatorFromDescriptor("")
	}

	text := translate(contents)
	x := (cfg.PageWidth - pdf.GetStringWidth(text)) / 2

	pdf.SetTextColor(0, 0, 0)
	for _, ch := range contents {
		glyph := translate(string(ch))
		pdf.Text(x, cfg.TextBaseline, glyph)
		w := pdf.GetStringWidth(glyph)
		x += w + w*LetterSpacing
	}
}
