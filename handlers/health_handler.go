package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health checks.
type HealthHandler struct {
	db           pinger
	redis        pinger
	checkTimeout time.Duration
}

// NewHealthHandler takes the database and cache probes. A nil database means
// the in-memory store is active; a nil cache means Redis is not configured.
func NewHealthHandler(db pinger, redisClient pinger) *HealthHandler {
	return &HealthHandler{
		db:           db,
		redis:        redisClient,
		checkTimeout: 2 * time.Second,
	}
}

// Health returns overall status and basic component statuses (DB and Redis).
// @Summary Health check
// @Description Returns overall status with DB and Redis connectivity results
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /health [get]
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.checkTimeout)
	defer cancel()

	overallStatus := "ok"
	code := http.StatusOK

	dbStatus := "disabled"
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			dbStatus = "down"
			overallStatus = "down"
			code = http.StatusServiceUnavailable
		} else {
			dbStatus = "up"
		}
	}

	redisStatus := "disabled"
	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			redisStatus = "down"
			if overallStatus == "ok" {
				overallStatus = "degraded"
			}
		} else {
			redisStatus = "up"
		}
	}

	return c.JSON(code, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().Format(time.RFC3339),
		"components": map[string]any{
			"database": map[string]any{
				"status": dbStatus,
			},
			"redis": map[string]any{
				"status": redisStatus,
			},
		},
	})
}
