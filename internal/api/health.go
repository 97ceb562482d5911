package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/blog-backend/internal/pkg/logger"
)

// Pinger checks a dependency is reachable. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

const (
	statusUp   = "UP"
	statusDown = "DOWN"
)

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
	Database  string    `json:"database"`
}

// Health reports liveness and database reachability. A failing database
// makes the endpoint answer 503 so load balancers take the instance out.
func Health(db Pinger, startedAt time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := HealthResponse{
			Status:    statusUp,
			Timestamp: time.Now().UTC(),
			Uptime:    time.Since(startedAt).Seconds(),
			Database:  statusUp,
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if db == nil {
			resp.Database = statusDown
		} else if err := db.Ping(ctx); err != nil {
			logger.FromContext(ctx).Warn("health check: database unreachable", "error", err)
			resp.Database = statusDown
		}

		code := http.StatusOK
		if resp.Database != statusUp {
			resp.Status = statusDown
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, resp)
	}
}
