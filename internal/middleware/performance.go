package middleware

import (
	"compress/gzip"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"barcode-generator/internal/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// PerformanceMetrics stores request performance metrics
type PerformanceMetrics struct {
	RequestCount  int64            `json:"request_count"`
	ErrorRate     float64          `json:"error_rate"`
	MemoryUsage   MemoryStats      `json:"memory_usage"`
	EndpointStats map[string]Stats `json:"endpoint_stats"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated    uint64 `json:"allocated"`
	TotalAlloc   uint64 `json:"total_alloc"`
	Sys          uint64 `json:"sys"`
	GCRuns       uint32 `json:"gc_runs"`
	HeapInUse    uint64 `json:"heap_in_use"`
	HeapReleased uint64 `json:"heap_released"`
}

// Stats represents endpoint-specific statistics
type Stats struct {
	Count         int64         `json:"count"`
	TotalDuration time.Duration `json:"total_duration"`
	AverageTime   time.Duration `json:"average_time"`
	ErrorCount    int64         `json:"error_count"`
	SlowCount     int64         `json:"slow_count"`
}

// PerformanceMonitor tracks per-endpoint latency and server error rate
type PerformanceMonitor struct {
	mu            sync.Mutex
	requestCount  int64
	errorCount    int64
	endpoints     map[string]Stats
	slowThreshold time.Duration
	startTime     time.Time
	log           *logger.StructuredLogger
}

// NewPerformanceMonitor creates a new performance monitor
func NewPerformanceMonitor(slowThreshold time.Duration, log *logger.StructuredLogger) *PerformanceMonitor {
	return &PerformanceMonitor{
		endpoints:     make(map[string]Stats),
		slowThreshold: slowThreshold,
		startTime:     time.Now(),
		log:           log,
	}
}

// PerformanceMiddleware tracks request performance
func (pm *PerformanceMonitor) PerformanceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Skip health checks and metrics scrapes
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		endpoint := fmt.Sprintf("%s %s", c.Request.Method, routeOf(c))

		pm.record(endpoint, duration, status >= http.StatusInternalServerError)

		if duration > pm.slowThreshold {
			pm.log.Warn("slow request", map[string]interface{}{
				"endpoint":    endpoint,
				"duration_ms": duration.Milliseconds(),
				"status":      status,
			})
		}
	}
}

// routeOf returns the matched route pattern, or "unmatched" for 404s so
// arbitrary paths do not grow the endpoint table
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

func (pm *PerformanceMonitor) record(endpoint string, duration time.Duration, isError bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.requestCount++

	stats := pm.endpoints[endpoint]
	stats.Count++
	stats.TotalDuration += duration
	stats.AverageTime = stats.TotalDuration / time.Duration(stats.Count)
	if isError {
		stats.ErrorCount++
		pm.errorCount++
	}
	if duration > pm.slowThreshold {
		stats.SlowCount++
	}
	pm.endpoints[endpoint] = stats
}

func readMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemoryStats{
		Allocated:    m.Alloc,
		TotalAlloc:   m.TotalAlloc,
		Sys:          m.Sys,
		GCRuns:       m.NumGC,
		HeapInUse:    m.HeapInuse,
		HeapReleased: m.HeapReleased,
	}
}

// GetMetrics returns a snapshot of the current metrics
func (pm *PerformanceMonitor) GetMetrics() *PerformanceMetrics {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	snapshot := &PerformanceMetrics{
		RequestCount:  pm.requestCount,
		MemoryUsage:   readMemoryStats(),
		EndpointStats: make(map[string]Stats, len(pm.endpoints)),
	}
	for k, v := range pm.endpoints {
		snapshot.EndpointStats[k] = v
	}
	if pm.requestCount > 0 {
		snapshot.ErrorRate = float64(pm.errorCount) / float64(pm.requestCount) * 100
	}
	return snapshot
}

// GetTopSlowEndpoints returns the slowest endpoints
func (pm *PerformanceMonitor) GetTopSlowEndpoints(limit int) []EndpointSummary {
	metrics := pm.GetMetrics()
	endpoints := make([]EndpointSummary, 0, len(metrics.EndpointStats))

	for endpoint, stats := range metrics.EndpointStats {
		endpoints = append(endpoints, EndpointSummary{
			Endpoint:    endpoint,
			AverageTime: stats.AverageTime,
			Count:       stats.Count,
			ErrorRate:   float64(stats.ErrorCount) / float64(stats.Count) * 100,
			SlowRate:    float64(stats.SlowCount) / float64(stats.Count) * 100,
		})
	}

	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].AverageTime > endpoints[j].AverageTime
	})

	if limit > 0 && limit < len(endpoints) {
		endpoints = endpoints[:limit]
	}

	return endpoints
}

// EndpointSummary represents endpoint performance summary
type EndpointSummary struct {
	Endpoint    string        `json:"endpoint"`
	AverageTime time.Duration `json:"average_time"`
	Count       int64         `json:"count"`
	ErrorRate   float64       `json:"error_rate"`
	SlowRate    float64       `json:"slow_rate"`
}

// CompressionMiddleware gzips responses for clients that accept it. Paths
// under any of skipPrefixes are passed through untouched.
func CompressionMiddleware(skipPrefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}
		for _, prefix := range skipPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		c.Header("Content-Encoding", "gzip")
		c.Header("Vary", "Accept-Encoding")

		gz := gzip.NewWriter(c.Writer)
		defer gz.Close()

		c.Writer = &gzipWriter{Writer: gz, ResponseWriter: c.Writer}
		c.Next()
	}
}

// gzipWriter wraps gin.ResponseWriter with gzip compression
type gzipWriter struct {
	gin.ResponseWriter
	Writer *gzip.Writer
}

func (g *gzipWriter) Write(data []byte) (int, error) {
	return g.Writer.Write(data)
}

func (g *gzipWriter) WriteString(s string) (int, error) {
	return g.Writer.Write([]byte(s))
}

// CacheControlMiddleware lets clients cache the symbology catalogue and
// forbids caching of everything rendered per request
func CacheControlMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/api/symbologies" {
			c.Header("Cache-Control", "public, max-age=3600")
		} else {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
		}

		c.Next()
	}
}

// SecurityHeadersMiddleware adds security headers
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Don't set HSTS in development
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

// RequestSizeLimitMiddleware rejects bodies larger than maxSize, whether
// declared up front or discovered while reading
func RequestSizeLimitMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request entity too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)

		c.Next()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out a token bucket per client IP
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	log      *logger.StructuredLogger
}

// NewRateLimiter allows requestsPerMinute per client with the given burst
func NewRateLimiter(requestsPerMinute, burst int, log *logger.StructuredLogger) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		idleTTL:  10 * time.Minute,
		log:      log,
	}
}

// Allow reports whether ip may make another request now
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, ok := rl.visitors[ip]
	if !ok {
		rl.sweep(now)
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// sweep drops idle visitors; caller holds mu
func (rl *RateLimiter) sweep(now time.Time) {
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.idleTTL {
			delete(rl.visitors, ip)
		}
	}
}

// Middleware rejects over-limit clients with 429
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !rl.Allow(clientIP) {
			rl.log.LogSecurityEvent("rate limit exceeded", "medium", map[string]interface{}{
				"ip":   clientIP,
				"path": c.Request.URL.Path,
			})
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// HealthCheckMiddleware answers /health with uptime, error rate and memory
func HealthCheckMiddleware(pm *PerformanceMonitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path != "/health" {
			c.Next()
			return
		}

		metrics := pm.GetMetrics()

		health := gin.H{
			"status":     "healthy",
			"timestamp":  time.Now(),
			"uptime":     time.Since(pm.startTime).String(),
			"requests":   metrics.RequestCount,
			"error_rate": fmt.Sprintf("%.2f%%", metrics.ErrorRate),
			"memory": gin.H{
				"allocated": formatBytes(metrics.MemoryUsage.Allocated),
				"sys":       formatBytes(metrics.MemoryUsage.Sys),
				"gc_runs":   metrics.MemoryUsage.GCRuns,
			},
		}

		if metrics.ErrorRate > 10 {
			health["status"] = "degraded"
		}
		if metrics.ErrorRate > 25 {
			health["status"] = "unhealthy"
		}

		c.AbortWithStatusJSON(http.StatusOK, health)
	}
}

// formatBytes formats byte count as human readable string
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
