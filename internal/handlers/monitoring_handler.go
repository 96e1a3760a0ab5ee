package handlers

import (
	"net/http"
	"runtime"
	"time"

	"barcode-generator/internal/middleware"

	"github.com/gin-gonic/gin"
)

// MonitoringHandler exposes the in-process performance counters as JSON
type MonitoringHandler struct {
	perfMonitor *middleware.PerformanceMonitor
	startTime   time.Time
}

// NewMonitoringHandler creates a new monitoring handler
func NewMonitoringHandler(perfMonitor *middleware.PerformanceMonitor) *MonitoringHandler {
	return &MonitoringHandler{
		perfMonitor: perfMonitor,
		startTime:   time.Now(),
	}
}

// GetSystemMetrics returns runtime, request and memory figures
func (h *MonitoringHandler) GetSystemMetrics(c *gin.Context) {
	perfMetrics := h.perfMonitor.GetMetrics()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	SafeJSON(c, http.StatusOK, gin.H{
		"timestamp": time.Now().UTC(),
		"system": gin.H{
			"uptime":     time.Since(h.startTime).String(),
			"goroutines": runtime.NumGoroutine(),
			"cpu_cores":  runtime.NumCPU(),
			"go_version": runtime.Version(),
		},
		"performance": gin.H{
			"request_count":  perfMetrics.RequestCount,
			"error_rate":     perfMetrics.ErrorRate,
			"slow_endpoints": h.perfMonitor.GetTopSlowEndpoints(10),
		},
		"memory": gin.H{
			"allocated":     memStats.Alloc,
			"total_alloc":   memStats.TotalAlloc,
			"sys":           memStats.Sys,
			"heap_in_use":   memStats.HeapInuse,
			"heap_released": memStats.HeapReleased,
			"gc_runs":       memStats.NumGC,
			"gc_pause":      memStats.PauseNs[(memStats.NumGC+255)%256],
		},
	})
}

// GetPerformanceMetrics returns per-endpoint latency figures
func (h *MonitoringHandler) GetPerformanceMetrics(c *gin.Context) {
	SafeJSON(c, http.StatusOK, gin.H{
		"performance": h.perfMonitor.GetMetrics(),
		"endpoints":   h.perfMonitor.GetTopSlowEndpoints(20),
	})
}
