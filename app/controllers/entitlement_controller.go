package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PromptForge/internal/pkg/entitlements"
)

type EntitlementController struct {
	reader *entitlements.Reader
}

func NewEntitlementController(reader *entitlements.Reader) *EntitlementController {
	return &EntitlementController{reader: reader}
}

// HandleGetOrgEntitlements returns the full entitlement set of an org.
func (h *EntitlementController) HandleGetOrgEntitlements(c *fiber.Ctx) error {
	orgID := strings.TrimSpace(c.Params("orgID"))
	if orgID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "orgID missing"})
	}

	set, err := h.reader.Entitlements(c.UserContext(), orgID)
	if err != nil {
		log.Errorf("[Entitlements] Lookup for org %s failed: %v", orgID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(fiber.Map{"org_id": orgID, "entitlements": set})
}

// HandleGetOrgCapability answers whether an org holds one capability.
func (h *EntitlementController) HandleGetOrgCapability(c *fiber.Ctx) error {
	orgID := strings.TrimSpace(c.Params("orgID"))
	capability := strings.TrimSpace(c.Params("capability"))
	if orgID == "" || capability == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "orgID and capability are required"})
	}

	set, err := h.reader.Entitlements(c.UserContext(), orgID)
	if err != nil {
		log.Errorf("[Entitlements] Lookup for org %s failed: %v", orgID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	resp := fiber.Map{
		"org_id":     orgID,
		"capability": capability,
		"allowed":    set.Allows(capability),
		"plan_code":  set.PlanCode,
	}
	if limit, ok := set.Limit(capability); ok {
		resp["limit"] = limit
	}
	return c.JSON(resp)
}
