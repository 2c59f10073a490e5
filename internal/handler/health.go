package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vidstream/accounts/internal/constants"
	"github.com/vidstream/accounts/internal/service"
	"github.com/vidstream/accounts/pkg/database"
)

type HealthHandler struct {
	db    *gorm.DB
	cache *service.CacheService
}

func NewHealthHandler(db *gorm.DB, cache *service.CacheService) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Health reports overall status plus per-backend checks.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	checks := gin.H{}
	healthy := true

	if err := database.Ping(ctx, h.db); err != nil {
		checks["database"] = "down"
		healthy = false
	} else {
		checks["database"] = "up"
	}

	if err := h.cache.Ping(ctx); err != nil {
		checks["redis"] = "down"
		healthy = false
	} else {
		checks["redis"] = "up"
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	c.JSON(status, gin.H{
		"status":    state,
		"version":   constants.AppVersion,
		"timestamp": time.Now(),
		"checks":    checks,
	})
}
