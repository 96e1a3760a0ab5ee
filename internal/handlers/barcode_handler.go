package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"barcode-generator/internal/config"
	"barcode-generator/internal/logger"
	"barcode-generator/internal/monitoring"
	"barcode-generator/internal/scan"
	"barcode-generator/internal/services"
	"barcode-generator/internal/validator"

	"github.com/gin-gonic/gin"
)

// minVerifyQuietZone keeps enough white space around the bars for the
// decoder to find the start pattern
const minVerifyQuietZone = 10

// BarcodeRequest is the body shared by every barcode endpoint
type BarcodeRequest struct {
	Contents        string  `json:"contents" form:"contents"`
	Symbology       string  `json:"symbology" form:"symbology"`
	QuietZone       *int    `json:"quietZone" form:"quietZone" binding:"omitempty,min=0,max=50"`
	FontSize        *int    `json:"fontSize" form:"fontSize" binding:"omitempty,min=8,max=45"`
	OffsetLeft      float64 `json:"offsetLeft" form:"offsetLeft" binding:"min=-20,max=20"`
	OffsetMiddle    float64 `json:"offsetMiddle" form:"offsetMiddle" binding:"min=-20,max=20"`
	OffsetRight     float64 `json:"offsetRight" form:"offsetRight" binding:"min=-20,max=20"`
	OffsetBoxLeft   float64 `json:"offsetBoxLeft" form:"offsetBoxLeft" binding:"min=-50,max=50"`
	OffsetBoxMiddle float64 `json:"offsetBoxMiddle" form:"offsetBoxMiddle" binding:"min=-50,max=50"`
	OffsetBoxRight  float64 `json:"offsetBoxRight" form:"offsetBoxRight" binding:"min=-50,max=50"`
}

type BarcodeHandler struct {
	barcodeService *services.BarcodeService
	pdfService     *services.PDFService
	decoder        *scan.ServerDecoder
	defaults       config.BarcodeConfig
	verifyEnabled  bool
	log            *logger.StructuredLogger
}

func NewBarcodeHandler(
	barcodeService *services.BarcodeService,
	pdfService *services.PDFService,
	decoder *scan.ServerDecoder,
	cfg *config.Config,
	log *logger.StructuredLogger,
) *BarcodeHandler {
	return &BarcodeHandler{
		barcodeService: barcodeService,
		pdfService:     pdfService,
		decoder:        decoder,
		defaults:       cfg.Barcode,
		verifyEnabled:  cfg.Verify.Enabled,
		log:            log,
	}
}

// bind parses the body, applies defaults and normalizes the contents. On
// failure the error response is already written and ok is false.
func (h *BarcodeHandler) bind(c *gin.Context) (req validator.Request, opts services.TextOptions, res validator.Result, ok bool) {
	var body BarcodeRequest
	if err := c.ShouldBind(&body); err != nil {
		SafeJSON(c, http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"code":    "INVALID_REQUEST",
			"details": err.Error(),
		})
		return
	}

	symbology, err := validator.ParseSymbology(body.Symbology)
	if err != nil {
		// leave it unparsed so Validate reports it in its usual order
		symbology = validator.Symbology(body.Symbology)
	}

	quietZone := h.defaults.DefaultQuietZone
	if body.QuietZone != nil {
		quietZone = *body.QuietZone
	}
	fontSize := h.defaults.DefaultFontSize
	if body.FontSize != nil {
		fontSize = *body.FontSize
	}

	raw, err := validator.NewRequest(body.Contents, symbology, quietZone)
	if err != nil {
		SafeJSON(c, http.StatusBadRequest, gin.H{"error": err.Error(), "code": "QUIET_ZONE_RANGE"})
		return
	}

	// unknown names stay out of the metric labels
	label := "unsupported"
	if symbology.Supported() {
		label = symbology.String()
	}

	req, res = raw.Normalize()
	if !res.Accepted {
		monitoring.ObserveValidation(label, res.Kind.String())
		// contents stay out of the log
		h.log.LogBusinessEvent("validation rejected", label, "validate", map[string]interface{}{
			"kind":       res.Kind.String(),
			"route":      c.FullPath(),
			"request_id": logger.GetRequestID(c),
		})
		SafeJSON(c, http.StatusBadRequest, gin.H{"error": res.Reason, "code": res.Kind.String()})
		return
	}
	monitoring.ObserveValidation(label, "accepted")

	opts = services.TextOptions{
		FontSize:        fontSize,
		OffsetLeft:      body.OffsetLeft,
		OffsetMiddle:    body.OffsetMiddle,
		OffsetRight:     body.OffsetRight,
		OffsetBoxLeft:   body.OffsetBoxLeft,
		OffsetBoxMiddle: body.OffsetBoxMiddle,
		OffsetBoxRight:  body.OffsetBoxRight,
	}
	if err := opts.Validate(); err != nil {
		SafeJSON(c, http.StatusBadRequest, gin.H{"error": err.Error(), "code": "INVALID_TEXT_OPTIONS"})
		return
	}

	return req, opts, res, true
}

// renderError maps a renderer failure to a response
func (h *BarcodeHandler) renderError(c *gin.Context, format string, req validator.Request, err error) {
	if errors.Is(err, services.ErrUnencodable) {
		SafeJSON(c, http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "code": "UNENCODABLE"})
		return
	}
	h.log.WithRequestContext(c).Error("failed to render barcode", err, map[string]interface{}{
		"format":    format,
		"symbology": req.Symbology.String(),
	})
	SafeJSON(c, http.StatusInternalServerError, gin.H{"error": "Failed to render barcode", "code": "RENDER_ERROR"})
}

// Validate reports whether the contents are acceptable and what will be rendered
func (h *BarcodeHandler) Validate(c *gin.Context) {
	req, _, res, ok := h.bind(c)
	if !ok {
		return
	}

	SafeJSON(c, http.StatusOK, gin.H{
		"valid":              true,
		"symbology":          req.Symbology,
		"normalizedContents": req.Contents,
		"note":               res.Note,
	})
}

// Preview returns the SVG for inline display
func (h *BarcodeHandler) Preview(c *gin.Context) {
	req, opts, res, ok := h.bind(c)
	if !ok {
		return
	}

	started := time.Now()
	svg, err := h.barcodeService.RenderSVG(req, opts)
	monitoring.ObserveRender("svg", req.Symbology.String(), started, err)
	if err != nil {
		h.renderError(c, "svg", req, err)
		return
	}

	h.log.LogBusinessEvent("barcode previewed", req.Symbology.String(), "preview")
	if res.Note != "" {
		c.Header("X-Barcode-Note", res.Note)
	}
	c.Data(http.StatusOK, "image/svg+xml", svg)
}

// DownloadSVG returns the SVG as an attachment
func (h *BarcodeHandler) DownloadSVG(c *gin.Context) {
	req, opts, _, ok := h.bind(c)
	if !ok {
		return
	}

	started := time.Now()
	svg, err := h.barcodeService.RenderSVG(req, opts)
	monitoring.ObserveRender("svg", req.Symbology.String(), started, err)
	if err != nil {
		h.renderError(c, "svg", req, err)
		return
	}

	h.log.LogBusinessEvent("barcode downloaded", req.Symbology.String(), "download-svg")
	attachment(c, services.DownloadFilename(req, "svg"))
	c.Data(http.StatusOK, "image/svg+xml", svg)
}

// DownloadAI returns the vector PDF, saved with an .ai extension
func (h *BarcodeHandler) DownloadAI(c *gin.Context) {
	req, _, _, ok := h.bind(c)
	if !ok {
		return
	}

	started := time.Now()
	result, err := h.pdfService.GenerateBarcodePDF(req)
	monitoring.ObserveRender("ai", req.Symbology.String(), started, err)
	if err != nil {
		h.renderError(c, "ai", req, err)
		return
	}

	if result.FontNotice != "" {
		monitoring.ObserveFontFallback()
		c.Header("X-Font-Notice", result.FontNotice)
	}

	h.log.LogBusinessEvent("barcode downloaded", req.Symbology.String(), "download-ai")
	attachment(c, services.DownloadFilename(req, "ai"))
	c.Data(http.StatusOK, "application/pdf", result.Data)
}

// DownloadPNG returns the bitmap rendition as an attachment
func (h *BarcodeHandler) DownloadPNG(c *gin.Context) {
	req, opts, _, ok := h.bind(c)
	if !ok {
		return
	}

	started := time.Now()
	data, err := h.barcodeService.RenderPNG(req, opts)
	monitoring.ObserveRender("png", req.Symbology.String(), started, err)
	if err != nil {
		h.renderError(c, "png", req, err)
		return
	}

	h.log.LogBusinessEvent("barcode downloaded", req.Symbology.String(), "download-png")
	attachment(c, services.DownloadFilename(req, "png"))
	c.Data(http.StatusOK, "image/png", data)
}

// Verify renders the barcode, decodes it again and compares the result
// with the normalized contents
func (h *BarcodeHandler) Verify(c *gin.Context) {
	if !h.verifyEnabled {
		SafeJSON(c, http.StatusNotFound, gin.H{
			"error": "Verification is disabled",
			"code":  "FEATURE_DISABLED",
		})
		return
	}

	req, opts, _, ok := h.bind(c)
	if !ok {
		return
	}
	req.QuietZone = max(req.QuietZone, minVerifyQuietZone)

	img, err := h.barcodeService.RenderImage(req, opts)
	if err != nil {
		h.renderError(c, "png", req, err)
		return
	}

	result, err := h.decoder.Verify(img, req.Symbology, req.Contents)
	if errors.Is(err, scan.ErrNoBarcode) {
		monitoring.ObserveVerification(req.Symbology.String(), "unreadable")
		SafeJSON(c, http.StatusUnprocessableEntity, gin.H{
			"verified": false,
			"expected": req.Contents,
			"error":    err.Error(),
			"code":     "UNREADABLE",
		})
		return
	}
	if err != nil {
		h.log.WithRequestContext(c).Error("failed to verify barcode", err)
		SafeJSON(c, http.StatusInternalServerError, gin.H{"error": "Failed to verify barcode", "code": "VERIFY_ERROR"})
		return
	}

	outcome := "verified"
	if !result.Verified {
		outcome = "mismatch"
		h.log.WithRequestContext(c).Warn("decoded barcode does not match contents", map[string]interface{}{
			"symbology": req.Symbology.String(),
			"expected":  result.Expected,
			"decoded":   result.Decoded,
		})
	}
	monitoring.ObserveVerification(req.Symbology.String(), outcome)

	SafeJSON(c, http.StatusOK, result)
}

// Symbologies lists the supported symbologies and their input rules
func (h *BarcodeHandler) Symbologies(c *gin.Context) {
	SafeJSON(c, http.StatusOK, gin.H{
		"symbologies": validator.Describe(),
		"defaults": gin.H{
			"quietZone": h.defaults.DefaultQuietZone,
			"fontSize":  h.defaults.DefaultFontSize,
		},
		"limits": gin.H{
			"quietZone":  []int{validator.MinQuietZone, validator.MaxQuietZone},
			"fontSize":   []int{services.MinFontSize, services.MaxFontSize},
			"textOffset": services.MaxTextOffset,
			"boxOffset":  services.MaxBoxOffset,
		},
	})
}

func attachment(c *gin.Context, filename string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
}
