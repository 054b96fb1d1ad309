package controllers

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminListTestApp() *fiber.App {
	app := fiber.New()
	app.Get("/admin/webhooks", HandleAdminWebhookList)
	return app
}

// Query validation runs before any repository access, so these cases need
// no database behind the handler.
func TestAdminWebhookListRejectsInvalidQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"unknown source", "source=stripe"},
		{"unknown status", "status=done"},
		{"negative limit", "limit=-1"},
		{"limit above maximum", "limit=500"},
		{"negative page", "page=-2"},
	}

	app := newAdminListTestApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/admin/webhooks?"+tt.query, nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			body := decodeBody(t, resp.Body)
			assert.Equal(t, false, body["ok"])
		})
	}
}

func TestAdminWebhookListRejectsMalformedNumbers(t *testing.T) {
	app := newAdminListTestApp()
	req := httptest.NewRequest("GET", "/admin/webhooks?page=abc", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
