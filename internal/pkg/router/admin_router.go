package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"

	"github.com/ManuelReschke/PromptForge/app/controllers"
)

type AdminRouter struct {
	admin   *controllers.AdminController
	metrics fiber.Handler
	users   map[string]string
}

func (h AdminRouter) InstallRouter(app *fiber.App) {
	auth := basicauth.New(basicauth.Config{Users: h.users})

	app.Get("/metrics", auth, h.metrics)

	admin := app.Group("/admin/billing", auth)
	admin.Get("/webhook-stats", h.admin.HandleWebhookStats)
	admin.Post("/webhook-stats/reset", h.admin.HandleResetWebhookStats)
}

func NewAdminRouter(admin *controllers.AdminController, metrics fiber.Handler, user, password string) *AdminRouter {
	return &AdminRouter{admin: admin, metrics: metrics, users: map[string]string{user: password}}
}
