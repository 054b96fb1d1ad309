package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cartflow/CartFlow/app/controllers"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get("/health", controllers.HandleHealth)

	// Provider webhooks (signature-verified in the controller, never
	// behind auth)
	app.Post("/webhook/razorpay", controllers.HandleRazorpayWebhook)
	app.Post("/webhook/delhivery", controllers.HandleDelhiveryWebhook)
}
