package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/cartflow/CartFlow/app/controllers"
	"github.com/cartflow/CartFlow/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", limiter.New(), middleware.RequireAdminToken())

	// Webhook event inspection
	adminGroup.Get("/webhooks", controllers.HandleAdminWebhookList)
	adminGroup.Get("/webhooks/:id", controllers.HandleAdminWebhookDetail)
	adminGroup.Post("/webhooks/:id/retry", controllers.HandleAdminWebhookRetry)

	// Queue monitor
	adminGroup.Get("/queues", controllers.HandleAdminQueueStats)

	// Runtime settings
	adminGroup.Get("/settings", controllers.HandleAdminSettingsGet)
	adminGroup.Post("/settings", controllers.HandleAdminSettingsUpdate)
}
