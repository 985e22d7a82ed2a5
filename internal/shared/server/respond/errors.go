package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"legaldoc-backend/internal/shared/telemetry"
)

// Error codes shared by handlers.
const (
	CodeValidation        = "validation_error"
	CodeUnauthorized      = "unauthorized"
	CodeNotFound          = "not_found"
	CodeConflict          = "conflict"
	CodeUnsupportedFormat = "unsupported_format"
	CodeCorruptFile       = "corrupt_file"
	CodeAIUnavailable     = "ai_unavailable"
	CodeAITimeout         = "ai_timeout"
	CodeRateLimited       = "rate_limited"
	CodeInternal          = "internal"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// Validation sends a 400 with the validation code.
func Validation(c *gin.Context, message string, details interface{}) {
	Error(c, http.StatusBadRequest, CodeValidation, message, details)
}

// NotFound sends a 404. Used for both missing and foreign resources.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, CodeNotFound, message, nil)
}

// Unauthorized sends a 401.
func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, "missing or invalid token", nil)
}

// Internal sends a 500 without leaking the underlying error.
func Internal(c *gin.Context) {
	Error(c, http.StatusInternalServerError, CodeInternal, "Unexpected server error", nil)
}
