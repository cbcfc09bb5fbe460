package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PromptForge/internal/pkg/billing"
	"github.com/ManuelReschke/PromptForge/internal/pkg/metrics/counter"
)

type AdminController struct {
	counters *counter.Store
	repo     billing.Repository
}

func NewAdminController(counters *counter.Store, repo billing.Repository) *AdminController {
	return &AdminController{counters: counters, repo: repo}
}

// HandleWebhookStats shows the outcome counters and the latest processed events.
func (h *AdminController) HandleWebhookStats(c *fiber.Ctx) error {
	stats, err := h.counters.Snapshot(c.UserContext())
	if err != nil {
		log.Errorf("[Admin] Failed to read webhook counters: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "counters_unavailable"})
	}

	recent, err := h.repo.ListProcessedEvents(c.UserContext(), c.QueryInt("limit", 20))
	if err != nil {
		log.Errorf("[Admin] Failed to list processed events: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "events_unavailable"})
	}
	return c.JSON(fiber.Map{"counters": stats, "recent_events": recent})
}

// HandleResetWebhookStats drains the counters and returns what they held.
func (h *AdminController) HandleResetWebhookStats(c *fiber.Ctx) error {
	stats, err := h.counters.Drain(c.UserContext())
	if err != nil {
		log.Errorf("[Admin] Failed to drain webhook counters: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "counters_unavailable"})
	}
	return c.JSON(fiber.Map{"drained": stats})
}
