package httpmw

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/blog-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/blog-backend/internal/pkg/logger"
)

// RequestLogger attaches a request-scoped logger to the request context and
// writes one access log line once the rest of the chain has returned.
//
// Error responses are written later by the error handler, so for a pending
// error the logged status is the one that handler is going to send.
func RequestLogger(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		l := base.With(
			"request_id", RequestIDFromContext(c.Request.Context()),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), l))

		c.Next()

		status := c.Writer.Status()
		if len(c.Errors) > 0 && !c.Writer.Written() {
			status = apperror.Normalize(c.Errors.Last().Err).StatusCode
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		level := slog.LevelInfo
		if route == "/api/health" || route == "/metrics" {
			level = slog.LevelDebug
		}

		l.Log(c.Request.Context(), level, "http request",
			"status", status,
			"route", route,
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", max(c.Writer.Size(), 0),
			"client_ip", c.ClientIP(),
		)
	}
}
