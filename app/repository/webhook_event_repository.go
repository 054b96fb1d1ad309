package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/cartflow/CartFlow/app/models"
)

type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository.
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// latestJobStatusSubquery yields the status of the newest job referencing
// the current event row, used to filter on the derived event status.
const latestJobStatusSubquery = "(SELECT j.status FROM jobs j WHERE j.webhook_event_id = webhook_events.id ORDER BY j.created_at DESC LIMIT 1)"

func (r *webhookEventRepository) List(filter WebhookEventFilter, page, perPage int) ([]models.WebhookEvent, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	query := r.db.Model(&models.WebhookEvent{})
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	switch filter.Status {
	case "":
		// no status filter
	case "processed":
		query = query.Where("processed = ?", true)
	case "failed":
		query = query.Where(latestJobStatusSubquery+" = ?", models.JobStatusFailed)
	case "pending":
		query = query.Where("processed = ? AND COALESCE("+latestJobStatusSubquery+", ?) <> ?",
			false, models.JobStatusPending, models.JobStatusFailed)
	default:
		return nil, 0, fmt.Errorf("unknown status filter: %s", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var events []models.WebhookEvent
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&events).Error
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *webhookEventRepository) GetByID(id uint) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *webhookEventRepository) LatestJobForEvent(eventID uint) (*models.Job, error) {
	var job models.Job
	err := r.db.
		Where("webhook_event_id = ?", eventID).
		Order("created_at DESC").
		First(&job).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *webhookEventRepository) JobsForEvent(eventID uint) ([]models.Job, error) {
	var jobs []models.Job
	err := r.db.
		Where("webhook_event_id = ?", eventID).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
