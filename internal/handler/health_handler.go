package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catering_api/internal/utils"
)

var startTime = time.Now()

const healthCheckTimeout = 2 * time.Second

type dbPinger interface {
	PingContext(ctx context.Context) error
}

type cachePinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health endpoint.
type HealthHandler struct {
	db    dbPinger
	cache cachePinger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db dbPinger, cache cachePinger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

func probe(ctx context.Context, ping func(context.Context) error) string {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := ping(ctx); err != nil {
		return "disconnected"
	}
	return "connected"
}

// GetHealth responds with service, database and Redis status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()
	dbStatus := probe(ctx, h.db.PingContext)
	cacheStatus := probe(ctx, h.cache.Ping)

	if dbStatus != "connected" || cacheStatus != "connected" {
		log.Warn().Str("database", dbStatus).Str("redis", cacheStatus).Msg("Health check failed")
		utils.Error(c, 503, "SERVICE_UNAVAILABLE", "database "+dbStatus+", redis "+cacheStatus)
		return
	}

	utils.Success(c, 200, "Service is healthy", gin.H{
		"status":   "healthy",
		"version":  "1.0.0",
		"uptime":   int(time.Since(startTime).Seconds()),
		"database": gin.H{"status": dbStatus},
		"redis":    gin.H{"status": cacheStatus},
	})
}
