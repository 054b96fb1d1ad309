package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProtectedApp() *fiber.App {
	app := fiber.New()
	app.Get("/admin/ping", RequireAdminToken(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	return app
}

func TestRequireAdminTokenAcceptsHeaderToken(t *testing.T) {
	t.Setenv("ADMIN_API_TOKEN", "s3cret")
	app := newProtectedApp()

	req := httptest.NewRequest("GET", "/admin/ping", nil)
	req.Header.Set("X-Admin-Token", "s3cret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireAdminTokenAcceptsBearerToken(t *testing.T) {
	t.Setenv("ADMIN_API_TOKEN", "s3cret")
	app := newProtectedApp()

	req := httptest.NewRequest("GET", "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireAdminTokenRejectsWrongToken(t *testing.T) {
	t.Setenv("ADMIN_API_TOKEN", "s3cret")
	app := newProtectedApp()

	req := httptest.NewRequest("GET", "/admin/ping", nil)
	req.Header.Set("X-Admin-Token", "wrong")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAdminTokenRejectsMissingToken(t *testing.T) {
	t.Setenv("ADMIN_API_TOKEN", "s3cret")
	app := newProtectedApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/admin/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAdminTokenLockedWhenUnconfigured(t *testing.T) {
	t.Setenv("ADMIN_API_TOKEN", "")
	app := newProtectedApp()

	req := httptest.NewRequest("GET", "/admin/ping", nil)
	req.Header.Set("X-Admin-Token", "anything")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
