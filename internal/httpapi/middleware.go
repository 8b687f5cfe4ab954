package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ironsheep/pixelfly/internal/orchestrator"
)

const requestIDKey = "request_id"

// requestID adds a unique request ID to each request, reusing the caller's
// X-Request-ID when present. The ID is also placed on the request context
// so the orchestrator logs under it.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Request = c.Request.WithContext(orchestrator.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// limitBody caps the request body at n bytes. Reads past the cap fail, which
// bind reports as an invalid body.
func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

// getRequestID gets the request ID from context
func getRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// accessLog logs every request except health checks and scrapes.
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if path == "/health" || strings.HasPrefix(path, "/metrics") {
			return
		}

		ev := log.Info()
		if c.Writer.Status() >= 500 {
			ev = log.Error()
		} else if c.Writer.Status() >= 400 {
			ev = log.Warn()
		}
		ev.Str("request_id", getRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Str("ip", c.ClientIP()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
