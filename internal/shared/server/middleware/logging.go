package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"legaldoc-backend/internal/shared/telemetry"
)

// Context keys handlers set so the request log carries resource ids.
const (
	DocumentIDKey = "documentId"
	AnalysisIDKey = "analysisId"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"user_id":     UserIDFromContext(c),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if v := c.GetString(DocumentIDKey); v != "" {
			fields["document_id"] = v
		}
		if v := c.GetString(AnalysisIDKey); v != "" {
			fields["analysis_id"] = v
		}
		telemetry.Info("request.complete", fields)
	}
}
