package routes

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"barcode-generator/internal/config"
	"barcode-generator/internal/logger"
	"barcode-generator/internal/services"
	"barcode-generator/internal/validator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, mutate func(*config.Config)) *gin.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Mode = gin.TestMode
	cfg.PDF.FontPath = filepath.Join(t.TempDir(), "missing.ttf")
	if mutate != nil {
		mutate(cfg)
	}
	var buf bytes.Buffer
	return NewRouter(cfg, logger.NewWithWriter(logger.LoggerConfig{Level: logger.INFO}, &buf))
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNewRouter_Endpoints(t *testing.T) {
	r := newTestEngine(t, nil)

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/api/symbologies", "", http.StatusOK},
		{http.MethodGet, "/api/scan/status", "", http.StatusOK},
		{http.MethodGet, "/api/monitoring/system", "", http.StatusOK},
		{http.MethodGet, "/api/monitoring/performance", "", http.StatusOK},
		{http.MethodPost, "/api/validate", `{"contents":"1234567","symbology":"ean8"}`, http.StatusOK},
		{http.MethodPost, "/api/preview", `{"contents":"1234567","symbology":"ean8"}`, http.StatusOK},
		{http.MethodPost, "/api/download-svg", `{"contents":"ABC","symbology":"code39"}`, http.StatusOK},
		{http.MethodPost, "/api/download-ai", `{"contents":"ABC","symbology":"code39"}`, http.StatusOK},
		{http.MethodPost, "/api/download-png", `{"contents":"ABC","symbology":"code39"}`, http.StatusOK},
		{http.MethodPost, "/api/verify", `{"contents":"ABC","symbology":"code39"}`, http.StatusOK},
		{http.MethodPost, "/api/validate", `{"contents":"","symbology":"ean8"}`, http.StatusBadRequest},
		{http.MethodGet, "/api/validate", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/unknown", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestNewRouter_RateLimit(t *testing.T) {
	r := newTestEngine(t, func(cfg *config.Config) {
		cfg.Security.RequestsPerMinute = 1
		cfg.Security.Burst = 2
	})

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/symbologies", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/symbologies", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/api/symbologies", "").Code)
	// health is outside the API group
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", "").Code)
}

func TestNewRouter_BodyLimit(t *testing.T) {
	r := newTestEngine(t, func(cfg *config.Config) { cfg.Server.MaxBodyBytes = 32 })

	body := `{"contents":"` + strings.Repeat("A", 64) + `","symbology":"code39"}`
	assert.Equal(t, http.StatusRequestEntityTooLarge, do(r, http.MethodPost, "/api/validate", body).Code)
}

func TestScanFallback_Decode(t *testing.T) {
	r := newTestEngine(t, nil)

	req, err := validator.NewRequest("96385074", validator.EAN8, 10)
	require.NoError(t, err)
	png, err := services.NewBarcodeService(config.Default().Barcode).RenderPNG(req, services.DefaultTextOptions(20))
	require.NoError(t, err)

	body, _ := json.Marshal(gin.H{"imageData": base64.StdEncoding.EncodeToString(png)})
	w := do(r, http.MethodPost, "/api/scan/decode", string(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		Success bool `json:"success"`
		Result  struct {
			Text   string `json:"text"`
			Format string `json:"format"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.Equal(t, "96385074", out.Result.Text)
	assert.Equal(t, "EAN_8", out.Result.Format)

	w = do(r, http.MethodPost, "/api/scan/decode", `{"imageData":"bm9wZQ=="}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodPost, "/api/scan/decode", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScanFallback_Disabled(t *testing.T) {
	r := newTestEngine(t, func(cfg *config.Config) { cfg.Verify.Enabled = false })

	w := do(r, http.MethodPost, "/api/scan/decode", `{"imageData":"bm9wZQ=="}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/scan/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, false, status["enabled"])
	assert.Len(t, status["supportedFormats"], 5)
}

func TestScanFallback_ImageTooLarge(t *testing.T) {
	r := newTestEngine(t, nil)

	// blank images compress to a few KB, far below the body limit
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3000, 2000))))

	body, _ := json.Marshal(gin.H{"imageData": base64.StdEncoding.EncodeToString(buf.Bytes())})
	require.Less(t, len(body), 1<<20)

	w := do(r, http.MethodPost, "/api/scan/decode", string(body))
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "IMAGE_TOO_LARGE", out["code"])
}
