package scan

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"
	"time"

	"barcode-generator/internal/validator"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

// MaxImagePixels bounds the size of an uploaded image. The header is
// checked before the pixel data is decoded.
const MaxImagePixels = 4_000_000

var (
	// ErrNoBarcode is returned when no reader finds a barcode in the image
	ErrNoBarcode = errors.New("no barcode found")

	// ErrImageTooLarge is returned for uploads over MaxImagePixels
	ErrImageTooLarge = errors.New("image too large")
)

// decodeOrder tries UPC-A before EAN-13 so a UPC-A symbol is reported as
// UPC_A with its 12-digit text rather than as EAN-13 with a leading zero
var decodeOrder = []validator.Symbology{
	validator.UPCA, validator.EAN13, validator.EAN8, validator.Code128, validator.Code39,
}

// DecodeRequest represents a server-side decode request
type DecodeRequest struct {
	ImageData string   `json:"imageData" binding:"required"` // Base64 encoded PNG
	ROI       *ROI     `json:"roi,omitempty"`
	Formats   []string `json:"formats,omitempty"`
}

// DecodeResponse represents a server-side decode response
type DecodeResponse struct {
	Success        bool    `json:"success"`
	Result         *Result `json:"result,omitempty"`
	Error          string  `json:"error,omitempty"`
	Code           string  `json:"code,omitempty"`
	ProcessingTime int64   `json:"processingTime"` // milliseconds
	Timestamp      int64   `json:"timestamp"`
}

// Result represents a decode result
type Result struct {
	Text         string  `json:"text"`
	Format       string  `json:"format"`
	CornerPoints []Point `json:"cornerPoints"`
}

// Point represents a 2D coordinate
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ROI represents a region of interest
type ROI struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Verification is the outcome of decoding a freshly rendered barcode
type Verification struct {
	Verified bool   `json:"verified"`
	Expected string `json:"expected"`
	Decoded  string `json:"decoded"`
	Format   string `json:"format"`
}

// ServerDecoder reads the 1-D symbologies this service renders. The
// gozxing readers keep scratch state, so decodes are serialized.
type ServerDecoder struct {
	mu      sync.Mutex
	readers map[validator.Symbology]gozxing.Reader
}

// NewServerDecoder creates a new server-side decoder
func NewServerDecoder() *ServerDecoder {
	return &ServerDecoder{
		readers: map[validator.Symbology]gozxing.Reader{
			validator.Code128: oned.NewCode128Reader(),
			validator.Code39:  oned.NewCode39Reader(),
			validator.EAN13:   oned.NewEAN13Reader(),
			validator.EAN8:    oned.NewEAN8Reader(),
			validator.UPCA:    oned.NewUPCAReader(),
		},
	}
}

// Verify decodes img with the reader for symbology and compares the text
// with the expected normalized contents
func (d *ServerDecoder) Verify(img image.Image, symbology validator.Symbology, expected string) (*Verification, error) {
	result, err := d.decodeImage(img, []validator.Symbology{symbology})
	if err != nil {
		return nil, err
	}
	return &Verification{
		Verified: result.Text == expected,
		Expected: expected,
		Decoded:  result.Text,
		Format:   result.Format,
	}, nil
}

// Decode processes a decode request
func (d *ServerDecoder) Decode(req *DecodeRequest) *DecodeResponse {
	startTime := time.Now()

	response := &DecodeResponse{
		Success:   false,
		Timestamp: time.Now().UnixMilli(),
	}

	// Decode base64 image data
	img, err := d.decodeImageData(req.ImageData)
	if err != nil {
		response.Error = fmt.Sprintf("Failed to decode image: %v", err)
		response.Code = "INVALID_IMAGE"
		if errors.Is(err, ErrImageTooLarge) {
			response.Code = "IMAGE_TOO_LARGE"
		}
		response.ProcessingTime = time.Since(startTime).Milliseconds()
		return response
	}

	// Apply ROI if specified
	if req.ROI != nil {
		img, err = d.extractROI(img, req.ROI)
		if err != nil {
			response.Error = fmt.Sprintf("Failed to extract ROI: %v", err)
			response.Code = "INVALID_ROI"
			response.ProcessingTime = time.Since(startTime).Milliseconds()
			return response
		}
	}

	symbologies := decodeOrder
	if len(req.Formats) > 0 {
		wanted := make(map[validator.Symbology]bool, len(req.Formats))
		for _, f := range req.Formats {
			if sym, ok := symbologyForFormat(f); ok {
				wanted[sym] = true
			}
		}
		symbologies = nil
		for _, sym := range decodeOrder {
			if wanted[sym] {
				symbologies = append(symbologies, sym)
			}
		}
	}

	result, err := d.decodeImage(img, symbologies)
	response.ProcessingTime = time.Since(startTime).Milliseconds()
	if err != nil {
		response.Error = err.Error()
		response.Code = "UNREADABLE"
		return response
	}

	response.Success = true
	response.Result = result
	return response
}

func (d *ServerDecoder) decodeImage(img image.Image, symbologies []validator.Symbology) (*Result, error) {
	// Convert to binary bitmap
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("failed to create bitmap: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, sym := range symbologies {
		reader, ok := d.readers[sym]
		if !ok {
			continue
		}
		res, err := reader.Decode(bmp, hints)
		reader.Reset()
		if err == nil && res != nil {
			return &Result{
				Text:         res.GetText(),
				Format:       mapGozxingFormat(res.GetBarcodeFormat()),
				CornerPoints: extractCornerPoints(res),
			}, nil
		}
	}
	return nil, ErrNoBarcode
}

// decodeImageData decodes base64 PNG data, with or without a data URL prefix
func (d *ServerDecoder) decodeImageData(imageData string) (image.Image, error) {
	imageData = strings.TrimPrefix(imageData, "data:image/png;base64,")

	data, err := base64.StdEncoding.DecodeString(imageData)
	if err != nil {
		return nil, fmt.Errorf("base64 decode failed: %w", err)
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("PNG decode failed: %w", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > MaxImagePixels {
		return nil, fmt.Errorf("%dx%d exceeds %d pixels: %w", cfg.Width, cfg.Height, MaxImagePixels, ErrImageTooLarge)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("PNG decode failed: %w", err)
	}

	return img, nil
}

// extractROI extracts a region of interest from the image
func (d *ServerDecoder) extractROI(img image.Image, roi *ROI) (image.Image, error) {
	bounds := img.Bounds()
	rect := image.Rect(roi.X, roi.Y, roi.X+roi.Width, roi.Y+roi.Height).Add(bounds.Min)

	// Validate ROI bounds
	if roi.Width <= 0 || roi.Height <= 0 || !rect.In(bounds) {
		return nil, fmt.Errorf("ROI out of bounds")
	}

	roiImg := image.NewRGBA(image.Rect(0, 0, roi.Width, roi.Height))
	for y := 0; y < roi.Height; y++ {
		for x := 0; x < roi.Width; x++ {
			roiImg.Set(x, y, img.At(rect.Min.X+x, rect.Min.Y+y))
		}
	}

	return roiImg, nil
}

// extractCornerPoints extracts corner points from decode result
func extractCornerPoints(result *gozxing.Result) []Point {
	resultPoints := result.GetResultPoints()
	corners := make([]Point, len(resultPoints))
	for i, p := range resultPoints {
		corners[i] = Point{
			X: p.GetX(),
			Y: p.GetY(),
		}
	}
	return corners
}

// mapGozxingFormat maps gozxing format to string
func mapGozxingFormat(format gozxing.BarcodeFormat) string {
	switch format {
	case gozxing.BarcodeFormat_CODE_128:
		return "CODE_128"
	case gozxing.BarcodeFormat_CODE_39:
		return "CODE_39"
	case gozxing.BarcodeFormat_EAN_13:
		return "EAN_13"
	case gozxing.BarcodeFormat_EAN_8:
		return "EAN_8"
	case gozxing.BarcodeFormat_UPC_A:
		return "UPC_A"
	default:
		return "UNKNOWN"
	}
}

// symbologyForFormat maps a format name, either gozxing style ("EAN_13")
// or wire style ("ean13"), to a symbology
func symbologyForFormat(format string) (validator.Symbology, bool) {
	switch strings.ToUpper(format) {
	case "CODE_128", "CODE128":
		return validator.Code128, true
	case "CODE_39", "CODE39":
		return validator.Code39, true
	case "EAN_13", "EAN13":
		return validator.EAN13, true
	case "EAN_8", "EAN8":
		return validator.EAN8, true
	case "UPC_A", "UPCA":
		return validator.UPCA, true
	default:
		return "", false
	}
}

// SupportedFormats lists the format names accepted by Decode
func SupportedFormats() []string {
	return []string{"CODE_128", "CODE_39", "EAN_13", "EAN_8", "UPC_A"}
}
