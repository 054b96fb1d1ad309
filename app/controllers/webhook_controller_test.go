package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartflow/CartFlow/app/models"
	"github.com/cartflow/CartFlow/internal/pkg/webhook"
)

func newWebhookTestApp() *fiber.App {
	app := fiber.New()
	app.Post("/webhook/razorpay", HandleRazorpayWebhook)
	app.Post("/webhook/delhivery", HandleDelhiveryWebhook)
	return app
}

// swapIngest replaces the ingest seam for the duration of one test.
func swapIngest(t *testing.T, fn func(ctx context.Context, in webhook.IngestInput) (*webhook.IngestResult, error)) {
	t.Helper()
	prev := ingestDelivery
	ingestDelivery = fn
	t.Cleanup(func() { ingestDelivery = prev })
}

// swapSettings installs test settings and restores the previous ones.
func swapSettings(t *testing.T, settings *models.AppSettings) {
	t.Helper()
	prev := models.GetAppSettings()
	models.SetAppSettings(settings)
	t.Cleanup(func() { models.SetAppSettings(prev) })
}

func decodeBody(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestWebhookDisabledSourceAnswersGoneWithoutIngesting(t *testing.T) {
	swapSettings(t, &models.AppSettings{
		RazorpayWebhookEnabled:  false,
		DelhiveryWebhookEnabled: true,
	})
	ingested := false
	swapIngest(t, func(ctx context.Context, in webhook.IngestInput) (*webhook.IngestResult, error) {
		ingested = true
		return &webhook.IngestResult{Event: &models.WebhookEvent{ID: 1}}, nil
	})

	app := newWebhookTestApp()
	req := httptest.NewRequest("POST", "/webhook/razorpay", strings.NewReader(`{"event":"payment.captured"}`))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusGone, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, false, body["ok"])
	assert.False(t, ingested, "disabled source must not reach the ingest pipeline")
}

func TestWebhookDisabledDelhiverySourceAnswersGone(t *testing.T) {
	swapSettings(t, &models.AppSettings{
		RazorpayWebhookEnabled:  true,
		DelhiveryWebhookEnabled: false,
	})
	ingested := false
	swapIngest(t, func(ctx context.Context, in webhook.IngestInput) (*webhook.IngestResult, error) {
		ingested = true
		return &webhook.IngestResult{Event: &models.WebhookEvent{ID: 1}}, nil
	})

	app := newWebhookTestApp()
	req := httptest.NewRequest("POST", "/webhook/delhivery", strings.NewReader(`{"status":"In Transit"}`))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusGone, resp.StatusCode)
	assert.False(t, ingested, "disabled source must not reach the ingest pipeline")
}

func TestWebhookIngestFailureStillAnswersOK(t *testing.T) {
	swapSettings(t, &models.AppSettings{RazorpayWebhookEnabled: true})
	swapIngest(t, func(ctx context.Context, in webhook.IngestInput) (*webhook.IngestResult, error) {
		return nil, errors.New("database unavailable")
	})

	app := newWebhookTestApp()
	req := httptest.NewRequest("POST", "/webhook/razorpay", strings.NewReader(`{"event":"payment.captured"}`))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "event could not be recorded", body["message"])
}

func TestWebhookSuccessEnvelope(t *testing.T) {
	swapSettings(t, &models.AppSettings{RazorpayWebhookEnabled: true})
	var captured webhook.IngestInput
	swapIngest(t, func(ctx context.Context, in webhook.IngestInput) (*webhook.IngestResult, error) {
		captured = in
		return &webhook.IngestResult{
			Event:          &models.WebhookEvent{ID: 42},
			SignatureValid: true,
		}, nil
	})

	app := newWebhookTestApp()
	req := httptest.NewRequest("POST", "/webhook/razorpay", strings.NewReader(`{"event":"payment.captured"}`))
	req.Header.Set("X-Razorpay-Signature", "abc123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, float64(42), body["eventId"])
	assert.Equal(t, true, body["signatureValid"])
	_, hasDuplicate := body["duplicate"]
	assert.False(t, hasDuplicate)

	assert.Equal(t, models.WebhookSourceRazorpay, captured.Source)
	assert.Equal(t, "abc123", captured.SignatureHeader)
	assert.Equal(t, `{"event":"payment.captured"}`, string(captured.Body))
}

func TestWebhookDuplicateDeliveryFlagged(t *testing.T) {
	swapSettings(t, &models.AppSettings{RazorpayWebhookEnabled: true})
	swapIngest(t, func(ctx context.Context, in webhook.IngestInput) (*webhook.IngestResult, error) {
		return &webhook.IngestResult{
			Event:          &models.WebhookEvent{ID: 7},
			SignatureValid: false,
			Duplicate:      true,
		}, nil
	})

	app := newWebhookTestApp()
	req := httptest.NewRequest("POST", "/webhook/razorpay", strings.NewReader(`{"event":"payment.captured"}`))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, true, body["duplicate"])
	assert.Equal(t, false, body["signatureValid"])
}

func TestWebhookNilSettingsDoesNotBlockIngestion(t *testing.T) {
	swapSettings(t, nil)
	swapIngest(t, func(ctx context.Context, in webhook.IngestInput) (*webhook.IngestResult, error) {
		return &webhook.IngestResult{Event: &models.WebhookEvent{ID: 1}, SignatureValid: true}, nil
	})

	app := newWebhookTestApp()
	req := httptest.NewRequest("POST", "/webhook/delhivery", strings.NewReader(`{"status":"Delivered"}`))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
