package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LogLevel represents logging severity levels
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// RequestIDHeader carries the request ID in and out of the service
const RequestIDHeader = "X-Request-ID"

// String returns string representation of log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config value such as "debug" or "WARN" to a level.
// Unknown values fall back to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp   time.Time              `json:"timestamp"`
	Level       string                 `json:"level"`
	Message     string                 `json:"message"`
	Service     string                 `json:"service"`
	Version     string                 `json:"version"`
	Environment string                 `json:"environment"`
	RequestID   string                 `json:"request_id,omitempty"`
	Method      string                 `json:"method,omitempty"`
	Path        string                 `json:"path,omitempty"`
	StatusCode  int                    `json:"status_code,omitempty"`
	Duration    string                 `json:"duration,omitempty"`
	IP          string                 `json:"ip,omitempty"`
	UserAgent   string                 `json:"user_agent,omitempty"`
	Fields      map[string]interface{} `json:"fields,omitempty"`
	File        string                 `json:"file,omitempty"`
	Line        int                    `json:"line,omitempty"`
	Function    string                 `json:"function,omitempty"`
}

// StructuredLogger writes one JSON object per line
type StructuredLogger struct {
	mu           sync.Mutex
	level        LogLevel
	service      string
	version      string
	environment  string
	output       io.Writer
	closer       io.Closer
	enableCaller bool
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level        LogLevel
	Service      string
	Version      string
	Environment  string
	OutputPath   string
	EnableCaller bool
}

// NewStructuredLogger creates a logger writing to stdout, stderr or a file
func NewStructuredLogger(config LoggerConfig) (*StructuredLogger, error) {
	switch config.OutputPath {
	case "", "stdout":
		return NewWithWriter(config, os.Stdout), nil
	case "stderr":
		return NewWithWriter(config, os.Stderr), nil
	}

	// Ensure log directory exists
	if err := os.MkdirAll(filepath.Dir(config.OutputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	sl := NewWithWriter(config, file)
	sl.closer = file
	return sl, nil
}

// NewWithWriter creates a logger on an arbitrary writer
func NewWithWriter(config LoggerConfig, w io.Writer) *StructuredLogger {
	return &StructuredLogger{
		level:        config.Level,
		service:      config.Service,
		version:      config.Version,
		environment:  config.Environment,
		output:       w,
		enableCaller: config.EnableCaller,
	}
}

func (sl *StructuredLogger) newEntry(level LogLevel, message string, fields map[string]interface{}) *LogEntry {
	return &LogEntry{
		Timestamp:   time.Now().UTC(),
		Level:       level.String(),
		Message:     message,
		Service:     sl.service,
		Version:     sl.version,
		Environment: sl.environment,
		Fields:      fields,
	}
}

// log writes a structured log entry
func (sl *StructuredLogger) log(level LogLevel, message string, fields map[string]interface{}) {
	if level < sl.level {
		return
	}

	entry := sl.newEntry(level, message, fields)

	// Add caller information if enabled
	if sl.enableCaller {
		if file, line, fn := sl.getCaller(3); file != "" {
			entry.File = file
			entry.Line = line
			entry.Function = fn
		}
	}

	sl.write(entry)
}

func (sl *StructuredLogger) write(entry *LogEntry) {
	jsonData, err := json.Marshal(entry)
	if err != nil {
		jsonData, _ = json.Marshal(sl.newEntry(ERROR, "unserializable log entry: "+entry.Message, nil))
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	fmt.Fprintf(sl.output, "%s\n", jsonData)
}

// Debug logs debug messages
func (sl *StructuredLogger) Debug(message string, fields ...map[string]interface{}) {
	sl.log(DEBUG, message, sl.mergeFields(fields...))
}

// Info logs info messages
func (sl *StructuredLogger) Info(message string, fields ...map[string]interface{}) {
	sl.log(INFO, message, sl.mergeFields(fields...))
}

// Warn logs warning messages
func (sl *StructuredLogger) Warn(message string, fields ...map[string]interface{}) {
	sl.log(WARN, message, sl.mergeFields(fields...))
}

// Error logs err with a stack trace of the calling goroutine
func (sl *StructuredLogger) Error(message string, err error, fields ...map[string]interface{}) {
	sl.log(ERROR, message, sl.errorFields(err, fields))
}

func (sl *StructuredLogger) errorFields(err error, fields []map[string]interface{}) map[string]interface{} {
	merged := sl.mergeFields(fields...)
	if err != nil {
		merged["error"] = err.Error()
		merged["stack"] = sl.getStackTrace()
	}
	return merged
}

// LogRequest logs HTTP request details
func (sl *StructuredLogger) LogRequest(c *gin.Context, duration time.Duration, fields ...map[string]interface{}) {
	level := INFO
	switch status := c.Writer.Status(); {
	case status >= 500:
		level = ERROR
	case status >= 400:
		level = WARN
	}
	if level < sl.level {
		return
	}

	entry := sl.newEntry(level, "HTTP Request", sl.mergeFields(fields...))
	entry.RequestID = GetRequestID(c)
	entry.Method = c.Request.Method
	entry.Path = c.Request.URL.Path
	entry.StatusCode = c.Writer.Status()
	entry.Duration = duration.String()
	entry.IP = c.ClientIP()
	entry.UserAgent = c.GetHeader("User-Agent")

	sl.write(entry)
}

// LogBusinessEvent logs business-specific events
func (sl *StructuredLogger) LogBusinessEvent(event string, resource string, operation string, fields ...map[string]interface{}) {
	logFields := sl.mergeFields(fields...)
	logFields["component"] = "business"
	logFields["operation"] = operation
	logFields["resource"] = resource

	sl.log(INFO, event, logFields)
}

// LogSecurityEvent logs security-related events
func (sl *StructuredLogger) LogSecurityEvent(event string, severity string, fields ...map[string]interface{}) {
	level := INFO
	switch severity {
	case "high":
		level = ERROR
	case "medium":
		level = WARN
	}

	logFields := sl.mergeFields(fields...)
	logFields["component"] = "security"
	logFields["severity"] = severity

	sl.log(level, event, logFields)
}

// LogSystemEvent logs system-level events
func (sl *StructuredLogger) LogSystemEvent(event string, fields ...map[string]interface{}) {
	logFields := sl.mergeFields(fields...)
	logFields["component"] = "system"

	sl.log(INFO, event, logFields)
}

// WithRequestContext returns a request-aware logger
func (sl *StructuredLogger) WithRequestContext(c *gin.Context) *RequestLogger {
	return &RequestLogger{
		logger: sl,
		ctx:    c,
	}
}

// getCaller returns caller information
func (sl *StructuredLogger) getCaller(skip int) (string, int, string) {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "", 0, ""
	}

	var fnName string
	if fn := runtime.FuncForPC(pc); fn != nil {
		fnName = fn.Name()
		if i := strings.LastIndex(fnName, "."); i >= 0 {
			fnName = fnName[i+1:]
		}
	}

	return filepath.Base(file), line, fnName
}

// getStackTrace returns formatted stack trace
func (sl *StructuredLogger) getStackTrace() string {
	stack := make([]byte, 4096)
	length := runtime.Stack(stack, false)
	return string(stack[:length])
}

// mergeFields merges multiple field maps
func (sl *StructuredLogger) mergeFields(fields ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for _, field := range fields {
		for k, v := range field {
			result[k] = v
		}
	}
	return result
}

// GetRequestID returns the ID assigned by LoggingMiddleware, the caller's
// header, or a fresh UUID
func GetRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	if id := c.GetHeader(RequestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}

// RequestLogger stamps every entry with the request ID, method, path and
// client IP of one gin request
type RequestLogger struct {
	logger *StructuredLogger
	ctx    *gin.Context
}

func (rl *RequestLogger) Debug(message string, fields ...map[string]interface{}) {
	rl.logger.Debug(message, rl.requestFields(fields...))
}

func (rl *RequestLogger) Info(message string, fields ...map[string]interface{}) {
	rl.logger.Info(message, rl.requestFields(fields...))
}

func (rl *RequestLogger) Warn(message string, fields ...map[string]interface{}) {
	rl.logger.Warn(message, rl.requestFields(fields...))
}

func (rl *RequestLogger) Error(message string, err error, fields ...map[string]interface{}) {
	rl.logger.Error(message, err, rl.requestFields(fields...))
}

func (rl *RequestLogger) requestFields(fields ...map[string]interface{}) map[string]interface{} {
	enriched := rl.logger.mergeFields(fields...)
	enriched["request_id"] = GetRequestID(rl.ctx)
	enriched["method"] = rl.ctx.Request.Method
	enriched["path"] = rl.ctx.Request.URL.Path
	enriched["ip"] = rl.ctx.ClientIP()
	return enriched
}

// LoggingMiddleware tags every request with an ID and logs it on completion
func (sl *StructuredLogger) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		// Skip logging for health checks and metrics scrapes
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		c.Next()

		fields := map[string]interface{}{
			"bytes_in":  c.Request.ContentLength,
			"bytes_out": c.Writer.Size(),
		}
		if raw := c.Request.URL.RawQuery; raw != "" {
			fields["query"] = raw
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		sl.LogRequest(c, time.Since(start), fields)
	}
}

// Close closes the logger output if it owns a file
func (sl *StructuredLogger) Close() error {
	if sl.closer != nil {
		return sl.closer.Close()
	}
	return nil
}
