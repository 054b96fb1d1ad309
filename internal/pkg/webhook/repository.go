package webhook

import (
	"context"
	"time"

	"github.com/cartflow/CartFlow/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the webhook service.
type Repository interface {
	CreateEventIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	FindProcessedBySourceRef(ctx context.Context, source, providerRef string) (*models.WebhookEvent, error)
	GetEvent(ctx context.Context, id uint) (*models.WebhookEvent, error)
	MarkProcessed(ctx context.Context, id uint, processingError string) error
	ResetForRetry(ctx context.Context, id uint) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a webhook event repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// CreateEventIfNotExists inserts the event unless one with the same
// (source, idempotency_key) already exists. The bool reports whether a new
// row was created; either way the stored row is returned.
func (r *gormRepository) CreateEventIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "source"},
			{Name: "idempotency_key"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.WithContext(ctx).
		Where("source = ? AND idempotency_key = ?", event.Source, event.IdempotencyKey).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) FindProcessedBySourceRef(ctx context.Context, source, providerRef string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("source = ? AND provider_ref = ? AND processed = ?", source, providerRef, true).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *gormRepository) GetEvent(ctx context.Context, id uint) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.WithContext(ctx).First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *gormRepository) MarkProcessed(ctx context.Context, id uint, processingError string) error {
	updates := map[string]interface{}{
		"last_error": processingError,
	}
	if processingError == "" {
		now := time.Now()
		updates["processed"] = true
		updates["processed_at"] = &now
	}
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

// ResetForRetry clears the processed flag ahead of a fresh job, keeping the
// event row itself as the single durable record of the delivery.
func (r *gormRepository) ResetForRetry(ctx context.Context, id uint) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processed":     false,
		"processed_at":  nil,
		"last_retry_at": &now,
	}).Error
}
