package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/cartflow/CartFlow/app/models"
	"github.com/cartflow/CartFlow/internal/pkg/cache"
	"github.com/cartflow/CartFlow/internal/pkg/jobqueue"
)

type queueRepository struct {
	db *gorm.DB
}

// NewQueueRepository creates a new queue repository.
func NewQueueRepository(db *gorm.DB) QueueRepository {
	return &queueRepository{db: db}
}

func (r *queueRepository) CountJobsByStatus() (map[models.JobStatus]int64, error) {
	type row struct {
		Status models.JobStatus
		Count  int64
	}
	var rows []row
	err := r.db.Model(&models.Job{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[models.JobStatus]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Count
	}
	return counts, nil
}

func (r *queueRepository) GetStatsMirror() (map[string]string, error) {
	client := cache.GetClient()
	if client == nil {
		return map[string]string{}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return client.HGetAll(ctx, jobqueue.JobStatsKey).Result()
}

func (r *queueRepository) DueJobCount() (int64, error) {
	var count int64
	err := r.db.Model(&models.Job{}).
		Where("status = ? AND next_run_at <= ?", models.JobStatusPending, time.Now()).
		Count(&count).Error
	return count, err
}
