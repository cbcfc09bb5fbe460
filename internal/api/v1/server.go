package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// Pong is the response of GET /ping.
type Pong struct {
	Ping string `json:"ping"`
}

// ServerInterface lists the v1 operations documented in public/docs/v1/openapi.yml.
type ServerInterface interface {
	// (GET /ping)
	GetPing(c *fiber.Ctx) error
	// (GET /orgs/{orgID}/entitlements)
	GetOrgEntitlements(c *fiber.Ctx, orgID string) error
	// (GET /orgs/{orgID}/entitlements/{capability})
	GetOrgCapability(c *fiber.Ctx, orgID string, capability string) error
}

// ServerInterfaceWrapper extracts path parameters before calling the handler.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func (siw *ServerInterfaceWrapper) GetPing(c *fiber.Ctx) error {
	return siw.Handler.GetPing(c)
}

func (siw *ServerInterfaceWrapper) GetOrgEntitlements(c *fiber.Ctx) error {
	return siw.Handler.GetOrgEntitlements(c, c.Params("orgID"))
}

func (siw *ServerInterfaceWrapper) GetOrgCapability(c *fiber.Ctx) error {
	return siw.Handler.GetOrgCapability(c, c.Params("orgID"), c.Params("capability"))
}

// RegisterHandlers mounts every v1 operation on router.
func RegisterHandlers(router fiber.Router, si ServerInterface, middlewares ...fiber.Handler) {
	wrapper := ServerInterfaceWrapper{Handler: si}

	router.Get("/ping", wrapper.GetPing)

	guarded := router.Group("/orgs", middlewares...)
	guarded.Get("/:orgID/entitlements", wrapper.GetOrgEntitlements)
	guarded.Get("/:orgID/entitlements/:capability", wrapper.GetOrgCapability)
}
