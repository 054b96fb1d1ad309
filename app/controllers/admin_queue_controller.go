package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/cartflow/CartFlow/app/repository"
	"github.com/cartflow/CartFlow/internal/pkg/jobqueue"
)

// HandleAdminQueueStats serves GET /admin/queues. Database counts are the
// source of truth, the Redis mirror is included so drift is visible on
// the dashboard.
func HandleAdminQueueStats(c *fiber.Ctx) error {
	repos := repository.GetRepositories()

	counts, err := repos.Queue.CountJobsByStatus()
	if err != nil {
		log.Errorf("[Admin] queue counts failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "queue_stats_failed"})
	}

	due, err := repos.Queue.DueJobCount()
	if err != nil {
		log.Errorf("[Admin] due job count failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "queue_stats_failed"})
	}

	mirror, err := repos.Queue.GetStatsMirror()
	if err != nil {
		// Redis being down must not hide the database numbers.
		log.Warnf("[Admin] stats mirror unavailable: %v", err)
		mirror = map[string]string{}
	}

	manager := jobqueue.GetManager()
	return c.JSON(fiber.Map{
		"ok":      true,
		"running": manager.IsRunning(),
		"counts":  counts,
		"due":     due,
		"mirror":  mirror,
	})
}
