package routes

import (
	"barcode-generator/internal/config"
	"barcode-generator/internal/handlers"
	"barcode-generator/internal/logger"
	"barcode-generator/internal/middleware"
	"barcode-generator/internal/monitoring"
	"barcode-generator/internal/scan"
	"barcode-generator/internal/services"

	"github.com/gin-gonic/gin"
)

// NewRouter wires services, middleware and handlers into a gin engine
func NewRouter(cfg *config.Config, log *logger.StructuredLogger) *gin.Engine {
	switch cfg.Server.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(cfg.Server.Mode)
	}

	barcodeService := services.NewBarcodeService(cfg.Barcode)
	pdfService := services.NewPDFService(&cfg.PDF, barcodeService)
	decoder := scan.NewServerDecoder()

	barcodeHandler := handlers.NewBarcodeHandler(barcodeService, pdfService, decoder, cfg, log)
	scanHandler := NewScanFallbackHandler(decoder, cfg.Verify.Enabled)

	perf := middleware.NewPerformanceMonitor(cfg.Server.SlowRequest, log)
	limiter := middleware.NewRateLimiter(cfg.Security.RequestsPerMinute, cfg.Security.Burst, log)
	monitoringHandler := handlers.NewMonitoringHandler(perf)

	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(handlers.GlobalErrorHandler())
	r.Use(log.LoggingMiddleware())
	r.Use(monitoring.PrometheusMiddleware())
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.HealthCheckMiddleware(perf))
	r.Use(perf.PerformanceMiddleware())
	r.Use(middleware.CacheControlMiddleware())
	// downloads are already compressed or binary; promhttp compresses itself
	r.Use(middleware.CompressionMiddleware("/api/download-", "/metrics"))

	r.NoRoute(handlers.NotFoundHandler())
	r.NoMethod(handlers.MethodNotAllowedHandler())

	r.GET("/metrics", monitoring.Handler())

	api := r.Group("/api")
	api.Use(limiter.Middleware())
	api.Use(middleware.RequestSizeLimitMiddleware(cfg.Server.MaxBodyBytes))
	{
		api.GET("/symbologies", barcodeHandler.Symbologies)
		api.POST("/validate", barcodeHandler.Validate)
		api.POST("/preview", barcodeHandler.Preview)
		api.POST("/download-svg", barcodeHandler.DownloadSVG)
		api.POST("/download-ai", barcodeHandler.DownloadAI)
		api.POST("/download-png", barcodeHandler.DownloadPNG)
		api.POST("/verify", barcodeHandler.Verify)

		SetupScanFallbackRoutes(api, scanHandler)

		monitoringGroup := api.Group("/monitoring")
		{
			monitoringGroup.GET("/system", monitoringHandler.GetSystemMetrics)
			monitoringGroup.GET("/performance", monitoringHandler.GetPerformanceMetrics)
		}
	}

	return r
}
