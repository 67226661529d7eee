package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/postpulse/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// degradedAfter is the failure streak at which health reports "degraded".
const degradedAfter = 3

// StatusSource is what the status handlers report on.
type StatusSource interface {
	Progress() models.ProgressStats
	ConsecutiveFailures() int
}

// Health returns a handler for GET /health.
//
// Degrades status while the batch is on a failure streak.
func Health(src StatusSource, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		failures := src.ConsecutiveFailures()
		status := "healthy"
		if failures >= degradedAfter {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:              status,
			State:               src.Progress().State,
			Uptime:              time.Since(startTime).Round(time.Second).String(),
			Version:             Version,
			ConsecutiveFailures: failures,
		})
	}
}
