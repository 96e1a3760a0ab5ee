package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"barcode-generator/internal/logger"
	"barcode-generator/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitoringHandler(t *testing.T) {
	var buf bytes.Buffer
	perf := middleware.NewPerformanceMonitor(time.Second, logger.NewWithWriter(logger.LoggerConfig{}, &buf))
	h := NewMonitoringHandler(perf)

	r := gin.New()
	r.Use(perf.PerformanceMiddleware())
	r.GET("/api/symbologies", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/monitoring/system", h.GetSystemMetrics)
	r.GET("/api/monitoring/performance", h.GetPerformanceMetrics)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/symbologies", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/monitoring/system", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		System struct {
			GoVersion string `json:"go_version"`
		} `json:"system"`
		Performance struct {
			RequestCount int64 `json:"request_count"`
		} `json:"performance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.NotEmpty(t, out.System.GoVersion)
	assert.Equal(t, int64(1), out.Performance.RequestCount)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/monitoring/performance", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var perfOut struct {
		Endpoints []middleware.EndpointSummary `json:"endpoints"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &perfOut))
	require.NotEmpty(t, perfOut.Endpoints)
}
