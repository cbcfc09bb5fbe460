package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	apiv1 "github.com/ManuelReschke/PromptForge/internal/api/v1"
	"github.com/ManuelReschke/PromptForge/internal/pkg/middleware"
)

type ApiRouter struct {
	server        apiv1.ServerInterface
	internalToken string
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{Max: 600}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	apiv1.RegisterHandlers(v1, h.server, middleware.InternalTokenAuth(h.internalToken))
}

func NewApiRouter(server apiv1.ServerInterface, internalToken string) *ApiRouter {
	return &ApiRouter{server: server, internalToken: internalToken}
}
