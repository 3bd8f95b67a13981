package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error      bool   `json:"error"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Path       string `json:"path,omitempty"`
	Method     string `json:"method,omitempty"`
	RetryAfter *int   `json:"retryAfter,omitempty"`
}

// AbortWithError writes an error body and stops the handler chain
func AbortWithError(c *gin.Context, status int, message string, details any) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:   true,
		Message: message,
		Details: details,
	})
}

// ErrorHandler recovers from panics and turns them into a 500 response.
// The panic text is only exposed outside production.
func ErrorHandler(logger *zap.Logger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("requestId", GetRequestID(c)),
					zap.ByteString("stack", debug.Stack()),
				)

				var details any
				if !production {
					details = fmt.Sprint(err)
				}
				AbortWithError(c, http.StatusInternalServerError, "An error occurred while processing your content", details)
			}
		}()

		c.Next()
	}
}

// NotFound answers unmatched routes
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   true,
			Message: "Route not found",
			Path:    c.Request.URL.Path,
			Method:  c.Request.Method,
		})
	}
}
