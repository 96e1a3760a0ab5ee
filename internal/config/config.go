package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"barcode-generator/internal/validator"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Barcode  BarcodeConfig  `json:"barcode"`
	PDF      PDFConfig      `json:"pdf"`
	Security SecurityConfig `json:"security"`
	Logging  LoggingConfig  `json:"logging"`
	Verify   VerifyConfig   `json:"verify"`
}

type ServerConfig struct {
	Port         int           `json:"port"`
	Host         string        `json:"host"`
	Mode         string        `json:"mode"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	MaxBodyBytes int64         `json:"max_body_bytes"`
	SlowRequest  time.Duration `json:"slow_request"`
}

// BarcodeConfig holds the rendering defaults applied when a request omits them
type BarcodeConfig struct {
	DefaultQuietZone int     `json:"default_quiet_zone"`
	DefaultFontSize  int     `json:"default_font_size"`
	ModuleWidth      float64 `json:"module_width"`
	BarHeight        float64 `json:"bar_height"`
	GuardExtension   float64 `json:"guard_extension"`
	FontFamily       string  `json:"font_family"`
}

// PDFConfig describes the vector (.ai) download page, in points
type PDFConfig struct {
	PageWidth    float64 `json:"page_width"`
	PageHeight   float64 `json:"page_height"`
	TopMargin    float64 `json:"top_margin"`
	MaxBarsWidth float64 `json:"max_bars_width"`
	BarHeight    float64 `json:"bar_height"`
	TextBaseline float64 `json:"text_baseline"`
	FontSize     float64 `json:"font_size"`
	FontPath     string  `json:"font_path"`
}

type SecurityConfig struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	Burst             int `json:"burst"`
}

type LoggingConfig struct {
	Level       string `json:"level"`
	File        string `json:"file"`
	Environment string `json:"environment"`
}

type VerifyConfig struct {
	Enabled bool `json:"enabled"`
}

func LoadConfig(path string) (*Config, error) {
	// Start with default config
	config := getDefaultConfig()

	// Override with environment variables if they exist
	loadFromEnvironment(config)

	// Try to load from file if it exists
	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		decoder := json.NewDecoder(file)
		if err := decoder.Decode(config); err != nil {
			return nil, err
		}
		// Override again with environment variables to give them priority
		loadFromEnvironment(config)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the request defaults against the ranges accepted from
// clients, so a bad default fails at startup instead of on every request
func (c *Config) Validate() error {
	b := c.Barcode
	if b.DefaultQuietZone < validator.MinQuietZone || b.DefaultQuietZone > validator.MaxQuietZone {
		return fmt.Errorf("barcode.default_quiet_zone %d not in %d..%d",
			b.DefaultQuietZone, validator.MinQuietZone, validator.MaxQuietZone)
	}
	if b.DefaultFontSize < validator.MinFontSize || b.DefaultFontSize > validator.MaxFontSize {
		return fmt.Errorf("barcode.default_font_size %d not in %d..%d",
			b.DefaultFontSize, validator.MinFontSize, validator.MaxFontSize)
	}
	return nil
}

func (c *Config) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(c)
}

// Default returns the built-in configuration
func Default() *Config {
	return getDefaultConfig()
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "localhost",
			Mode:         "release",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			MaxBodyBytes: 1 << 20,
			SlowRequest:  500 * time.Millisecond,
		},
		Barcode: BarcodeConfig{
			DefaultQuietZone: 10,
			DefaultFontSize:  35,
			ModuleWidth:      3,
			BarHeight:        128,
			GuardExtension:   15,
			FontFamily:       "OCR-B, OCRB, monospace",
		},
		PDF: PDFConfig{
			PageWidth:    600,
			PageHeight:   300,
			TopMargin:    50,
			MaxBarsWidth: 400,
			BarHeight:    170,
			TextBaseline: 250,
			FontSize:     14,
			FontPath:     "public/fonts/ocrb/OCRB10BT.ttf",
		},
		Security: SecurityConfig{
			RequestsPerMinute: 120,
			Burst:             20,
		},
		Logging: LoggingConfig{
			Level:       "info",
			File:        "stdout",
			Environment: "production",
		},
		Verify: VerifyConfig{
			Enabled: true,
		},
	}
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *Config) {
	// Server configuration
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		config.Server.Mode = mode
	}

	// Rendering
	if fontPath := os.Getenv("OCRB_FONT_PATH"); fontPath != "" {
		config.PDF.FontPath = fontPath
	}
	if qz := os.Getenv("DEFAULT_QUIET_ZONE"); qz != "" {
		if q, err := strconv.Atoi(qz); err == nil {
			config.Barcode.DefaultQuietZone = q
		}
	}

	// Security configuration
	if rpm := os.Getenv("RATE_LIMIT_RPM"); rpm != "" {
		if r, err := strconv.Atoi(rpm); err == nil {
			config.Security.RequestsPerMinute = r
		}
	}

	// Logging configuration
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if file := os.Getenv("LOG_FILE"); file != "" {
		config.Logging.File = file
	}
	if env := os.Getenv("APP_ENV"); env != "" {
		config.Logging.Environment = env
	}

	if enabled := os.Getenv("VERIFY_ENABLED"); enabled != "" {
		config.Verify.Enabled = enabled == "true"
	}
}
