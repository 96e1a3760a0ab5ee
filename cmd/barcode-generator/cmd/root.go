package cmd

import (
	"fmt"
	"strings"

	"barcode-generator/internal/config"
	"barcode-generator/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "unknown"
)

// envPrefix namespaces the environment overrides of command flags,
// e.g. BARCODE_PORT for --port
const envPrefix = "BARCODE"

// app carries what the subcommands share: the flag/env view and the
// configuration resolved from it
type app struct {
	v       *viper.Viper
	cfgFile string
}

// Execute runs the command line against os.Args
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds a fresh command tree. Each call gets its own flag
// and environment bindings so tests can run commands side by side.
func NewRootCommand() *cobra.Command {
	return newRootCommand(newApp())
}

func newApp() *app {
	a := &app{v: viper.New()}
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	return a
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "barcode-generator",
		Short: "Validate and render retail and industrial barcodes",
		Long: `Barcode generator for EAN-13, EAN-8, UPC-A, Code128 and Code39.

Input is validated and normalized before rendering: check digits of
EAN-13, EAN-8 and UPC-A are always computed, never trusted. Barcodes can
be rendered as SVG, PNG or a vector .ai (PDF) file.

Examples:
  barcode-generator serve --port 8080
  barcode-generator validate ean13 880956022307
  barcode-generator render code39 ABC-123 --format svg`,
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "config.json", "path to the JSON config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("font-path", "", "OCR-B TrueType font used for .ai output")
	_ = a.v.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("font-path", rootCmd.PersistentFlags().Lookup("font-path"))

	rootCmd.AddCommand(
		newServeCommand(a),
		newValidateCommand(a),
		newRenderCommand(a),
		newConfigCommand(a),
	)
	return rootCmd
}

// loadConfig resolves the configuration: defaults, then the config file
// and its environment variables, then BARCODE_* variables and flags
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(a.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", a.cfgFile, err)
	}

	if a.v.IsSet("log-level") {
		cfg.Logging.Level = a.v.GetString("log-level")
	}
	if a.v.IsSet("font-path") {
		cfg.PDF.FontPath = a.v.GetString("font-path")
	}
	return cfg, nil
}

// newLogger builds the structured logger described by cfg
func newLogger(cfg *config.Config) (*logger.StructuredLogger, error) {
	return logger.NewStructuredLogger(logger.LoggerConfig{
		Level:       logger.ParseLevel(cfg.Logging.Level),
		Service:     "barcode-generator",
		Version:     version,
		Environment: cfg.Logging.Environment,
		OutputPath:  cfg.Logging.File,
	})
}
