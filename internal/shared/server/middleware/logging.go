package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/shared/telemetry"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		reqID := RequestIDFromContext(c)

		userID, _ := c.Get(userIDKey)
		documentID, _ := c.Get("documentId")
		docStatus := ""
		if raw, ok := c.Get("documentStatus"); ok {
			if s, ok := raw.(string); ok {
				docStatus = s
			}
		}

		telemetry.Info("request.complete", map[string]any{
			"request_id":      reqID,
			"method":          c.Request.Method,
			"path":            c.Request.URL.Path,
			"status":          status,
			"document_id":     documentID,
			"document_status": docStatus,
			"duration_ms":     float64(latency.Microseconds()) / 1000.0,
			"user_id":         userID,
			"client_ip":       c.ClientIP(),
			"user_agent":      c.Request.UserAgent(),
		})
	}
}
