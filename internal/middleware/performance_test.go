package middleware

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"barcode-generator/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() (*logger.StructuredLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logger.NewWithWriter(logger.LoggerConfig{Level: logger.DEBUG}, &buf), &buf
}

func TestRateLimiter(t *testing.T) {
	log, buf := testLogger()
	rl := NewRateLimiter(60, 2, log)

	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/api/symbologies", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/symbologies", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1"))
	// buckets are per client
	assert.Equal(t, http.StatusOK, do("10.0.0.2"))

	assert.Contains(t, buf.String(), "rate limit exceeded")
	assert.Contains(t, buf.String(), "10.0.0.1")
}

func TestRateLimiter_Unlimited(t *testing.T) {
	log, _ := testLogger()
	rl := NewRateLimiter(0, 0, log)
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("10.0.0.1"))
	}
}

func TestRateLimiter_SweepsIdleVisitors(t *testing.T) {
	log, _ := testLogger()
	rl := NewRateLimiter(60, 1, log)
	rl.idleTTL = time.Millisecond

	rl.Allow("10.0.0.1")
	time.Sleep(5 * time.Millisecond)
	rl.Allow("10.0.0.2")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.visitors, "10.0.0.1")
	assert.Contains(t, rl.visitors, "10.0.0.2")
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestSizeLimitMiddleware(16))
	r.POST("/api/validate", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"small", `{"a":1}`, http.StatusOK},
		{"declared too large", strings.Repeat("x", 64), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/validate", strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, w.Code)
		})
	}

	t.Run("undeclared too large", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/validate", io.NopCloser(strings.NewReader(strings.Repeat("x", 64))))
		req.ContentLength = -1
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestSecurityAndCacheHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeadersMiddleware(), CacheControlMiddleware())
	r.GET("/api/symbologies", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/preview", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/symbologies", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/preview", nil))
	assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))
}

func TestCompressionMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CompressionMiddleware("/api/download-"))
	r.POST("/api/preview", func(c *gin.Context) { c.String(http.StatusOK, "<svg></svg>") })
	r.POST("/api/download-png", func(c *gin.Context) { c.Data(http.StatusOK, "image/png", []byte("png")) })

	req := httptest.NewRequest(http.MethodPost, "/api/preview", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "<svg></svg>", string(body))

	req = httptest.NewRequest(http.MethodPost, "/api/download-png", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "png", w.Body.String())
}

func TestPerformanceMonitorAndHealth(t *testing.T) {
	log, buf := testLogger()
	pm := NewPerformanceMonitor(time.Nanosecond, log)

	r := gin.New()
	r.Use(HealthCheckMiddleware(pm), pm.PerformanceMiddleware())
	r.GET("/api/symbologies", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/download-ai", func(c *gin.Context) {
		time.Sleep(time.Millisecond)
		c.Status(http.StatusInternalServerError)
	})

	for _, call := range []struct{ method, path string }{
		{http.MethodGet, "/api/symbologies"},
		{http.MethodGet, "/api/symbologies"},
		{http.MethodPost, "/api/download-ai"},
		{http.MethodGet, "/nope"},
	} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(call.method, call.path, nil))
	}

	metrics := pm.GetMetrics()
	assert.Equal(t, int64(4), metrics.RequestCount)
	assert.Equal(t, int64(2), metrics.EndpointStats["GET /api/symbologies"].Count)
	assert.Equal(t, int64(1), metrics.EndpointStats["POST /api/download-ai"].ErrorCount)
	assert.Contains(t, metrics.EndpointStats, "GET unmatched")
	assert.InDelta(t, 25.0, metrics.ErrorRate, 0.001)

	top := pm.GetTopSlowEndpoints(1)
	require.Len(t, top, 1)
	assert.Equal(t, "POST /api/download-ai", top[0].Endpoint)

	assert.Contains(t, buf.String(), "slow request")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health["status"])
	assert.Equal(t, float64(4), health["requests"])
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2*1024*1024))
}
