package controllers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/cartflow/CartFlow/app/models"
	"github.com/cartflow/CartFlow/app/repository"
	"github.com/cartflow/CartFlow/internal/pkg/database"
	"github.com/cartflow/CartFlow/internal/pkg/jobqueue"
	"github.com/cartflow/CartFlow/internal/pkg/webhook"
)

// webhookEventView is the admin-facing shape of a stored event. Status is
// derived at read time from the most recent job referencing the event.
type webhookEventView struct {
	ID             uint       `json:"id"`
	Source         string     `json:"source"`
	EventType      string     `json:"eventType"`
	ProviderRef    string     `json:"providerRef,omitempty"`
	SignatureValid bool       `json:"signatureValid"`
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	LastError      string     `json:"lastError,omitempty"`
	ReceivedAt     time.Time  `json:"receivedAt"`
	ProcessedAt    *time.Time `json:"processedAt,omitempty"`
	LastRetryAt    *time.Time `json:"lastRetryAt,omitempty"`
}

func buildEventView(event *models.WebhookEvent, latest *models.Job) webhookEventView {
	view := webhookEventView{
		ID:             event.ID,
		Source:         event.Source,
		EventType:      event.EventType,
		ProviderRef:    event.ProviderRef,
		SignatureValid: event.SignatureValid,
		Status:         "pending",
		LastError:      event.LastError,
		ReceivedAt:     event.CreatedAt,
		ProcessedAt:    event.ProcessedAt,
		LastRetryAt:    event.LastRetryAt,
	}
	if latest != nil {
		view.Attempts = latest.Attempts
		if latest.LastError != "" {
			view.LastError = latest.LastError
		}
	}
	switch {
	case latest != nil && latest.Status == models.JobStatusFailed:
		view.Status = "failed"
	case event.Processed:
		view.Status = "processed"
	}
	return view
}

// webhookListQuery carries the list filters. Zero values mean "no filter"
// and default pagination.
type webhookListQuery struct {
	Source    string `query:"source" validate:"omitempty,oneof=razorpay delhivery"`
	EventType string `query:"event_type" validate:"omitempty,max=100"`
	Status    string `query:"status" validate:"omitempty,oneof=pending processed failed"`
	Page      int    `query:"page" validate:"omitempty,min=1"`
	Limit     int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// HandleAdminWebhookList serves GET /admin/webhooks with optional source,
// event_type and status filters plus page/limit pagination.
func HandleAdminWebhookList(c *fiber.Ctx) error {
	var query webhookListQuery
	if err := c.QueryParser(&query); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid_query"})
	}
	if err := validator.New().Struct(&query); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": err.Error()})
	}
	if query.Page == 0 {
		query.Page = 1
	}
	if query.Limit == 0 {
		query.Limit = 20
	}

	repos := repository.GetRepositories()
	filter := repository.WebhookEventFilter{
		Source:    query.Source,
		EventType: query.EventType,
		Status:    query.Status,
	}

	events, total, err := repos.WebhookEvents.List(filter, query.Page, query.Limit)
	if err != nil {
		log.Errorf("[Admin] webhook list failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "event_list_failed"})
	}

	items := make([]webhookEventView, 0, len(events))
	for i := range events {
		latest, err := repos.WebhookEvents.LatestJobForEvent(events[i].ID)
		if err != nil {
			log.Errorf("[Admin] latest job lookup for event %d failed: %v", events[i].ID, err)
		}
		items = append(items, buildEventView(&events[i], latest))
	}

	pages := (total + int64(query.Limit) - 1) / int64(query.Limit)

	return c.JSON(fiber.Map{
		"ok":    true,
		"items": items,
		"total": total,
		"page":  query.Page,
		"limit": query.Limit,
		"pages": pages,
	})
}

// HandleAdminWebhookDetail serves GET /admin/webhooks/:id including the
// raw payload and the full job history for the event.
func HandleAdminWebhookDetail(c *fiber.Ctx) error {
	repos := repository.GetRepositories()

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid_event_id"})
	}

	event, err := repos.WebhookEvents.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"ok": false, "error": "event_not_found"})
		}
		log.Errorf("[Admin] webhook detail %d failed: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "event_lookup_failed"})
	}

	jobs, err := repos.WebhookEvents.JobsForEvent(event.ID)
	if err != nil {
		log.Errorf("[Admin] job history for event %d failed: %v", event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "job_history_failed"})
	}

	var latest *models.Job
	if len(jobs) > 0 {
		latest = &jobs[0]
	}

	return c.JSON(fiber.Map{
		"ok":      true,
		"event":   buildEventView(event, latest),
		"payload": event.PayloadJSON,
		"jobs":    jobs,
	})
}

// HandleAdminWebhookRetry serves POST /admin/webhooks/:id/retry. It resets
// the processed flag and enqueues a fresh processing job, leaving the
// existing job history untouched.
func HandleAdminWebhookRetry(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid_event_id"})
	}

	svc := webhook.NewServiceFromDB(database.GetDB(), jobqueue.GetManager().GetQueue())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	job, err := svc.Retry(ctx, uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"ok": false, "error": "event_not_found"})
		}
		log.Errorf("[Admin] retry for event %d failed: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "retry_failed"})
	}

	log.Infof("[Admin] event %d requeued as job %s", id, job.ID)
	return c.JSON(fiber.Map{
		"ok":      true,
		"message": "event requeued for processing",
		"jobId":   job.ID,
	})
}
