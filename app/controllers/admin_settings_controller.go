package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/cartflow/CartFlow/app/models"
	"github.com/cartflow/CartFlow/internal/pkg/database"
)

// HandleAdminSettingsGet serves GET /admin/settings.
func HandleAdminSettingsGet(c *fiber.Ctx) error {
	settings := models.GetAppSettings()
	if settings == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "settings_not_loaded"})
	}
	return c.JSON(fiber.Map{"ok": true, "settings": settings})
}

// HandleAdminSettingsUpdate serves POST /admin/settings. The full settings
// document is replaced, validated and persisted, then reloaded into the
// in-memory singleton so workers pick up the new values.
func HandleAdminSettingsUpdate(c *fiber.Ctx) error {
	var incoming models.AppSettings
	if err := c.BodyParser(&incoming); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid_request_body"})
	}
	if err := incoming.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"ok": false, "error": err.Error()})
	}

	db := database.GetDB()
	if err := models.SaveSettings(db, &incoming); err != nil {
		log.Errorf("[Admin] settings save failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "settings_save_failed"})
	}
	if err := models.LoadSettings(db); err != nil {
		log.Errorf("[Admin] settings reload failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "settings_reload_failed"})
	}

	log.Info("[Admin] settings updated")
	return c.JSON(fiber.Map{"ok": true, "settings": models.GetAppSettings()})
}
