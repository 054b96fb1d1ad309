package repository

import (
	"github.com/cartflow/CartFlow/app/models"
)

// WebhookEventFilter narrows the admin event listing. Empty fields match
// everything. Status accepts the derived values "pending", "processed"
// and "failed".
type WebhookEventFilter struct {
	Source    string
	EventType string
	Status    string
}

// WebhookEventRepository serves the admin inspection endpoints. Writes to
// webhook events go through internal/pkg/webhook, this interface is
// read-only on purpose.
type WebhookEventRepository interface {
	// List returns one page of events plus the total row count for the
	// given filter. Pages are 1-based.
	List(filter WebhookEventFilter, page, perPage int) ([]models.WebhookEvent, int64, error)
	// GetByID returns the event or gorm.ErrRecordNotFound.
	GetByID(id uint) (*models.WebhookEvent, error)
	// LatestJobForEvent returns the most recent job referencing the
	// event, or nil when no job references it yet.
	LatestJobForEvent(eventID uint) (*models.Job, error)
	// JobsForEvent returns every job referencing the event, newest first.
	JobsForEvent(eventID uint) ([]models.Job, error)
}

// QueueRepository exposes queue health for the admin monitor. Counts come
// from the database, the Redis mirror is the cheap dashboard copy kept by
// the dispatcher.
type QueueRepository interface {
	CountJobsByStatus() (map[models.JobStatus]int64, error)
	GetStatsMirror() (map[string]string, error)
	DueJobCount() (int64, error)
}
