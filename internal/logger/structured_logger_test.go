package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newBufferLogger(level LogLevel) (*StructuredLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewWithWriter(LoggerConfig{
		Level:       level,
		Service:     "barcode-generator",
		Version:     "test",
		Environment: "test",
	}, &buf), &buf
}

func entries(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var out []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e), line)
		out = append(out, e)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{" warn ", WARN},
		{"warning", WARN},
		{"error", ERROR},
		{"fatal", FATAL},
		{"", INFO},
		{"verbose", INFO},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestStructuredLogger_LevelFiltering(t *testing.T) {
	sl, buf := newBufferLogger(WARN)

	sl.Debug("hidden")
	sl.Info("hidden")
	sl.Warn("shown", map[string]interface{}{"symbology": "ean13"})
	sl.Error("failed", errors.New("boom"))

	got := entries(t, buf)
	require.Len(t, got, 2)
	assert.Equal(t, "WARN", got[0].Level)
	assert.Equal(t, "ean13", got[0].Fields["symbology"])
	assert.Equal(t, "barcode-generator", got[0].Service)
	assert.Equal(t, "ERROR", got[1].Level)
	assert.Equal(t, "boom", got[1].Fields["error"])
	assert.NotEmpty(t, got[1].Fields["stack"])
}

func TestStructuredLogger_Events(t *testing.T) {
	sl, buf := newBufferLogger(DEBUG)

	sl.LogBusinessEvent("barcode rendered", "ean13", "download-svg")
	sl.LogSecurityEvent("rate limit exceeded", "medium", map[string]interface{}{"ip": "10.0.0.1"})
	sl.LogSystemEvent("server started")

	got := entries(t, buf)
	require.Len(t, got, 3)
	assert.Equal(t, "business", got[0].Fields["component"])
	assert.Equal(t, "download-svg", got[0].Fields["operation"])
	assert.Equal(t, "WARN", got[1].Level)
	assert.Equal(t, "security", got[1].Fields["component"])
	assert.Equal(t, "system", got[2].Fields["component"])
}

func TestStructuredLogger_EnableCaller(t *testing.T) {
	var buf bytes.Buffer
	sl := NewWithWriter(LoggerConfig{Level: INFO, EnableCaller: true}, &buf)
	sl.Info("with caller")

	got := entries(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "structured_logger_test.go", got[0].File)
	assert.NotZero(t, got[0].Line)
}

func TestLoggingMiddleware(t *testing.T) {
	sl, buf := newBufferLogger(INFO)

	r := gin.New()
	r.Use(sl.LoggingMiddleware())
	r.GET("/api/symbologies", func(c *gin.Context) {
		sl.WithRequestContext(c).Info("listing")
		c.String(http.StatusOK, "ok")
	})
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/validate", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	t.Run("generates request id", func(t *testing.T) {
		buf.Reset()
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/symbologies?x=1", nil))

		id := w.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		require.NoError(t, err)

		got := entries(t, buf)
		require.Len(t, got, 2)
		assert.Equal(t, id, got[0].Fields["request_id"])
		assert.Equal(t, "HTTP Request", got[1].Message)
		assert.Equal(t, id, got[1].RequestID)
		assert.Equal(t, http.StatusOK, got[1].StatusCode)
		assert.Equal(t, "x=1", got[1].Fields["query"])
	})

	t.Run("keeps caller request id", func(t *testing.T) {
		buf.Reset()
		req := httptest.NewRequest(http.MethodGet, "/api/symbologies", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
		got := entries(t, buf)
		require.NotEmpty(t, got)
		assert.Equal(t, "abc-123", got[len(got)-1].RequestID)
	})

	t.Run("skips health", func(t *testing.T) {
		buf.Reset()
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
		assert.Empty(t, buf.String())
	})

	t.Run("client errors log as warnings", func(t *testing.T) {
		buf.Reset()
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/validate", nil))
		got := entries(t, buf)
		require.Len(t, got, 1)
		assert.Equal(t, "WARN", got[0].Level)
	})
}

func TestNewStructuredLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	sl, err := NewStructuredLogger(LoggerConfig{Level: INFO, OutputPath: path})
	require.NoError(t, err)
	sl.Info("to file")
	require.NoError(t, sl.Close())

	stdout, err := NewStructuredLogger(LoggerConfig{OutputPath: "stdout"})
	require.NoError(t, err)
	assert.NoError(t, stdout.Close())
}
