package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware measures inflight, total, duration, and size. It must wrap the
// error handler so the recorded status is the one sent to the client.
func (m *ServerMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		m.inflight.Inc()
		defer m.inflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		code := c.Writer.Status()

		m.reqTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
		m.reqDur.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		m.respSize.WithLabelValues(method, route).Observe(float64(max(c.Writer.Size(), 0)))

		if code >= http.StatusInternalServerError {
			m.errorsTotal.WithLabelValues(method, route).Inc()
		}
	}
}
