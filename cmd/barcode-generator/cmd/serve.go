package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"barcode-generator/internal/config"
	"barcode-generator/internal/logger"
	"barcode-generator/internal/routes"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start an HTTP server that validates and renders barcodes.

The server provides the following endpoints:
  POST /api/validate      - Validate and normalize contents
  POST /api/preview       - Inline SVG preview
  POST /api/download-svg  - SVG download
  POST /api/download-ai   - Vector (.ai) download
  POST /api/download-png  - PNG download
  POST /api/verify        - Render, decode and compare
  GET  /api/symbologies   - Supported symbologies and their rules
  POST /api/scan/decode   - Decode an uploaded PNG
  GET  /api/scan/status   - Decoder status
  GET  /api/monitoring/*  - Runtime and latency figures
  GET  /health            - Health check
  GET  /metrics           - Prometheus metrics

Flags can also be set through BARCODE_* environment variables,
e.g. BARCODE_PORT=9090.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.serveConfig()
			if err != nil {
				return err
			}

			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, cfg, log)
		},
	}

	serveCmd.Flags().String("host", "", "interface to listen on")
	serveCmd.Flags().Int("port", 0, "port to listen on")
	serveCmd.Flags().String("mode", "", "gin mode (debug, release, test)")
	serveCmd.Flags().Int("rate-limit", 0, "requests per minute allowed per client")
	serveCmd.Flags().Bool("verify", true, "enable the decode round-trip endpoints")
	for _, name := range []string{"host", "port", "mode", "rate-limit", "verify"} {
		_ = a.v.BindPFlag(name, serveCmd.Flags().Lookup(name))
	}

	return serveCmd
}

// serveConfig layers the serve flags over the loaded configuration
func (a *app) serveConfig() (*config.Config, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	if a.v.IsSet("host") {
		cfg.Server.Host = a.v.GetString("host")
	}
	if a.v.IsSet("port") {
		cfg.Server.Port = a.v.GetInt("port")
	}
	if a.v.IsSet("mode") {
		cfg.Server.Mode = a.v.GetString("mode")
	}
	if a.v.IsSet("rate-limit") {
		cfg.Security.RequestsPerMinute = a.v.GetInt("rate-limit")
	}
	if a.v.IsSet("verify") {
		cfg.Verify.Enabled = a.v.GetBool("verify")
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", cfg.Server.Port)
	}
	return cfg, nil
}

// newHTTPServer builds the http.Server for cfg
func newHTTPServer(cfg *config.Config, log *logger.StructuredLogger) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           routes.NewRouter(cfg, log),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
}

// runServer serves until ctx is cancelled, then drains in-flight requests
func runServer(ctx context.Context, cfg *config.Config, log *logger.StructuredLogger) error {
	srv := newHTTPServer(cfg, log)

	errCh := make(chan error, 1)
	go func() {
		log.LogSystemEvent("server starting", map[string]interface{}{
			"addr":           srv.Addr,
			"mode":           cfg.Server.Mode,
			"verify_enabled": cfg.Verify.Enabled,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.LogSystemEvent("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.LogSystemEvent("server stopped")
	return nil
}
