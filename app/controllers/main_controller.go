package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cartflow/CartFlow/internal/pkg/database"
	"github.com/cartflow/CartFlow/internal/pkg/jobqueue"
)

// HandleHealth serves GET /health for load balancer checks.
func HandleHealth(c *fiber.Ctx) error {
	dbOK := false
	if db := database.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err == nil && sqlDB.Ping() == nil {
			dbOK = true
		}
	}

	status := fiber.StatusOK
	if !dbOK {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"ok":       dbOK,
		"database": dbOK,
		"workers":  jobqueue.GetManager().IsRunning(),
	})
}
