package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/tesseract-hub/enquiry-service/internal/database"
	enquiryNats "github.com/tesseract-hub/enquiry-service/internal/nats"
)

const readinessTimeout = 2 * time.Second

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
	nats  *enquiryNats.Client
}

// NewHealthHandler creates a new health handler. redis and nats may be nil.
func NewHealthHandler(db *gorm.DB, redisClient *redis.Client, natsClient *enquiryNats.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, nats: natsClient}
}

// Health returns basic health status
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "enquiry-service",
	})
}

// Ready reports whether the service can take traffic. Only the database is required;
// redis and NATS outages degrade to local fallbacks.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if err := database.Ping(ctx, h.db); err != nil {
		checks["database"] = "error: " + err.Error()
		status = "not ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "connected"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "degraded: " + err.Error()
		} else {
			checks["redis"] = "connected"
		}
	}

	if h.nats != nil {
		if h.nats.IsConnected() {
			checks["nats"] = "connected"
		} else {
			checks["nats"] = "degraded: disconnected"
		}
	}

	c.JSON(httpStatus, gin.H{
		"status": status,
		"checks": checks,
	})
}
