package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PromptForge/internal/pkg/database"
)

type HealthController struct {
	db    *gorm.DB
	cache *redis.Client
}

func NewHealthController(db *gorm.DB, cache *redis.Client) *HealthController {
	return &HealthController{db: db, cache: cache}
}

// HandleHealthz reports 503 when the database is unreachable. Redis is
// reported but does not fail the check.
func (h *HealthController) HandleHealthz(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	if err := database.Ping(ctx, h.db); err != nil {
		dbStatus = err.Error()
	}
	cacheStatus := "disabled"
	if h.cache != nil {
		cacheStatus = "ok"
		if err := h.cache.Ping(ctx).Err(); err != nil {
			cacheStatus = err.Error()
		}
	}

	status := fiber.StatusOK
	if dbStatus != "ok" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"database": dbStatus, "cache": cacheStatus})
}
