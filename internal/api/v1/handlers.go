package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/ManuelReschke/PromptForge/app/controllers"
)

// APIServer implements the ServerInterface
type APIServer struct {
	entitlements *controllers.EntitlementController
}

// NewAPIServer creates a new API server instance
func NewAPIServer(entitlements *controllers.EntitlementController) *APIServer {
	return &APIServer{entitlements: entitlements}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetOrgEntitlements returns the entitlement set of an organization.
// Security is enforced via the internal token middleware attached in the router.
func (s *APIServer) GetOrgEntitlements(c *fiber.Ctx, orgID string) error {
	return s.entitlements.HandleGetOrgEntitlements(c)
}

// GetOrgCapability reports whether an organization holds a capability.
func (s *APIServer) GetOrgCapability(c *fiber.Ctx, orgID string, capability string) error {
	return s.entitlements.HandleGetOrgCapability(c)
}
