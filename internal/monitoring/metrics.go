package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barcode_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "barcode_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Validation metrics
	validationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barcode_validations_total",
			Help: "Total number of validation outcomes",
		},
		[]string{"symbology", "outcome"}, // outcome: accepted or a rejection kind
	)

	// Rendering metrics
	renderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "barcode_render_duration_seconds",
			Help:    "Barcode rendering duration in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"format", "symbology"}, // format: svg, png, ai
	)

	renderFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barcode_render_failures_total",
			Help: "Total number of failed renders",
		},
		[]string{"format", "symbology"},
	)

	fontFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "barcode_font_fallbacks_total",
			Help: "Total number of vector downloads rendered without the OCR-B font",
		},
	)

	verificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barcode_verifications_total",
			Help: "Total number of decode round-trip checks",
		},
		[]string{"symbology", "result"}, // result: verified, mismatch, unreadable
	)
)

// ObserveValidation counts a validation outcome
func ObserveValidation(symbology, outcome string) {
	validationsTotal.WithLabelValues(symbology, outcome).Inc()
}

// ObserveRender records how long a render took, or a failure when err is set
func ObserveRender(format, symbology string, started time.Time, err error) {
	if err != nil {
		renderFailuresTotal.WithLabelValues(format, symbology).Inc()
		return
	}
	renderDuration.WithLabelValues(format, symbology).Observe(time.Since(started).Seconds())
}

// ObserveFontFallback counts a vector download that used the fallback font
func ObserveFontFallback() {
	fontFallbacksTotal.Inc()
}

// ObserveVerification counts a round-trip decode result
func ObserveVerification(symbology, result string) {
	verificationsTotal.WithLabelValues(symbology, result).Inc()
}

// PrometheusMiddleware records request counts and latencies per route
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
