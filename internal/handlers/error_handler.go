package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SafeJSON safely renders JSON with proper error handling
func SafeJSON(c *gin.Context, statusCode int, data interface{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("SafeJSON: JSON rendering panic: %v", r)
			if c.Writer.Written() {
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
				"code":  "RENDER_ERROR",
			})
		}
	}()

	c.JSON(statusCode, data)
}

// renderError writes a JSON error that should never fail
func renderError(c *gin.Context, statusCode int, code, message string) {
	if c.Writer.Written() {
		log.Printf("renderError: Response already written, skipping error body")
		return
	}

	body := gin.H{
		"error": getErrorMessage(statusCode, message),
		"code":  code,
	}
	if id := c.GetString("request_id"); id != "" {
		body["request_id"] = id
	}
	c.AbortWithStatusJSON(statusCode, body)
}

// getErrorMessage returns a user-friendly error message based on status code
func getErrorMessage(statusCode int, originalMessage string) string {
	if originalMessage != "" {
		return originalMessage
	}
	switch statusCode {
	case http.StatusBadRequest:
		return "Bad Request - The request was invalid or cannot be processed"
	case http.StatusNotFound:
		return "Not Found - The requested resource could not be found"
	case http.StatusMethodNotAllowed:
		return "Method Not Allowed - The resource does not support this method"
	case http.StatusInternalServerError:
		return "Internal Server Error - Something went wrong on the server"
	default:
		return "An unexpected error occurred"
	}
}

// GlobalErrorHandler provides global error recovery middleware
func GlobalErrorHandler() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(gin.DefaultErrorWriter, func(c *gin.Context, recovered interface{}) {
		log.Printf("GlobalErrorHandler: Panic recovered: %v", recovered)
		renderError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "")
	})
}

// NotFoundHandler answers unknown routes with a JSON body
func NotFoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		renderError(c, http.StatusNotFound, "NOT_FOUND", "")
	}
}

// MethodNotAllowedHandler answers known routes called with the wrong method
func MethodNotAllowedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		renderError(c, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "")
	}
}
