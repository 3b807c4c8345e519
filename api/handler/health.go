package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelf/models"
)

// Version is reported by GET /health.
const Version = "0.1.0"

// StatsProvider reports session usage.
type StatsProvider interface {
	Stats() models.SessionStat
}

// Health returns a handler for GET /health.
//
// Reports session usage and degrades status when more than 80% of the
// session slots are in use.
func Health(sp StatsProvider, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := sp.Stats()

		status := "healthy"
		if stats.Max > 0 && stats.Active > int(float64(stats.Max)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:      status,
			Uptime:      time.Since(startTime).Round(time.Second).String(),
			SessionStat: stats,
			Version:     Version,
		})
	}
}
