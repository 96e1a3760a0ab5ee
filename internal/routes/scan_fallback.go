package routes

import (
	"net/http"

	"barcode-generator/internal/handlers"
	"barcode-generator/internal/scan"

	"github.com/gin-gonic/gin"
)

// ScanFallbackHandler decodes uploaded barcode images on the server. The
// enabled switch is fixed at construction from Verify.Enabled.
type ScanFallbackHandler struct {
	decoder *scan.ServerDecoder
	enabled bool
}

// NewScanFallbackHandler creates a new scan fallback handler
func NewScanFallbackHandler(decoder *scan.ServerDecoder, enabled bool) *ScanFallbackHandler {
	return &ScanFallbackHandler{
		decoder: decoder,
		enabled: enabled,
	}
}

// DecodeFallback handles server-side decode requests
func (h *ScanFallbackHandler) DecodeFallback(c *gin.Context) {
	if !h.enabled {
		handlers.SafeJSON(c, http.StatusNotFound, gin.H{
			"error": "Server-side decode is disabled",
			"code":  "FEATURE_DISABLED",
		})
		return
	}

	var req scan.DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.SafeJSON(c, http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"code":    "INVALID_REQUEST",
			"details": err.Error(),
		})
		return
	}

	response := h.decoder.Decode(&req)

	switch {
	case response.Success:
		handlers.SafeJSON(c, http.StatusOK, response)
	case response.Code == "IMAGE_TOO_LARGE":
		handlers.SafeJSON(c, http.StatusRequestEntityTooLarge, response)
	default:
		// Return 422 for decode failures (valid request, but no barcode found)
		handlers.SafeJSON(c, http.StatusUnprocessableEntity, response)
	}
}

// GetDecoderStatus returns the status of the fallback decoder
func (h *ScanFallbackHandler) GetDecoderStatus(c *gin.Context) {
	handlers.SafeJSON(c, http.StatusOK, gin.H{
		"enabled":          h.enabled,
		"status":           "ready",
		"serverSide":       true,
		"supportedFormats": scan.SupportedFormats(),
	})
}

// SetupScanFallbackRoutes sets up the fallback decode routes
func SetupScanFallbackRoutes(api *gin.RouterGroup, handler *ScanFallbackHandler) {
	scanGroup := api.Group("/scan")
	{
		scanGroup.POST("/decode", handler.DecodeFallback)
		scanGroup.GET("/status", handler.GetDecoderStatus)
	}
}
