package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PromptForge/app/controllers"
)

type HttpRouter struct {
	billing *controllers.BillingController
	health  *controllers.HealthController
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", h.health.HandleHealthz)

	// Provider webhooks read the raw body; no body-parsing middleware here.
	webhooks := app.Group("/webhooks")
	webhooks.Post("/stripe", h.billing.HandleStripeWebhook)
}

func NewHttpRouter(billing *controllers.BillingController, health *controllers.HealthController) *HttpRouter {
	return &HttpRouter{billing: billing, health: health}
}
