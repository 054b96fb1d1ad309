package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/cartflow/CartFlow/app/models"
	"github.com/cartflow/CartFlow/internal/pkg/database"
	"github.com/cartflow/CartFlow/internal/pkg/jobqueue"
	"github.com/cartflow/CartFlow/internal/pkg/webhook"
)

// webhookIngestTimeout bounds the persist plus enqueue path for one
// delivery. Providers retry on their own schedule, so a slow database
// must not hold their connection open.
const webhookIngestTimeout = 15 * time.Second

// ingestDelivery persists one delivery and enqueues its processing job.
// Tests swap it out to exercise the handler without a database.
var ingestDelivery = func(ctx context.Context, in webhook.IngestInput) (*webhook.IngestResult, error) {
	svc := webhook.NewServiceFromDB(database.GetDB(), jobqueue.GetManager().GetQueue())
	return svc.Ingest(ctx, in)
}

// HandleRazorpayWebhook receives payment notifications from Razorpay.
// Razorpay treats any non-2xx response as a delivery failure and retries
// aggressively, so every outcome after persistence answers 200.
func HandleRazorpayWebhook(c *fiber.Ctx) error {
	return handleProviderWebhook(c, models.WebhookSourceRazorpay, "X-Razorpay-Signature")
}

// HandleDelhiveryWebhook receives shipment tracking pushes from Delhivery.
func HandleDelhiveryWebhook(c *fiber.Ctx) error {
	return handleProviderWebhook(c, models.WebhookSourceDelhivery, "X-Delhivery-Signature")
}

func handleProviderWebhook(c *fiber.Ctx, source, signatureHeaderName string) error {
	settings := models.GetAppSettings()
	if settings != nil && !settings.IsWebhookSourceEnabled(source) {
		return c.Status(fiber.StatusGone).JSON(fiber.Map{
			"ok":      false,
			"message": "webhook source disabled",
		})
	}

	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get(signatureHeaderName))

	ctx, cancel := context.WithTimeout(context.Background(), webhookIngestTimeout)
	defer cancel()

	result, err := ingestDelivery(ctx, webhook.IngestInput{
		Source:          source,
		Body:            rawBody,
		SignatureHeader: signature,
	})
	if err != nil {
		log.Errorf("[Webhook] %s ingest failed: %v", source, err)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"ok":      false,
			"message": "event could not be recorded",
		})
	}

	resp := fiber.Map{
		"ok":             true,
		"eventId":        result.Event.ID,
		"signatureValid": result.SignatureValid,
	}
	if result.Duplicate {
		resp["duplicate"] = true
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}
