package jobqueue

import (
	"errors"
	"time"

	"github.com/cartflow/CartFlow/app/models"
	"gorm.io/gorm"
)

// Store is the durable job queue. Workers are stateless loops over a Store
// handle and a handler registry, so multiple processes can share one queue;
// Claim is the only operation that needs mutual exclusion and it is a single
// conditional update.
type Store interface {
	Create(job *models.Job) error
	// ClaimNext atomically claims the oldest eligible pending job and flips
	// it to processing. Returns (nil, nil) when no job is eligible.
	ClaimNext(now time.Time) (*models.Job, error)
	// MarkCompleted finalizes a successful job.
	MarkCompleted(job *models.Job) error
	// MarkFailedAttempt charges one attempt and either re-queues the job with
	// a backoff gate or fails it terminally once the budget is spent. The
	// job's fields reflect the applied transition on return.
	MarkFailedAttempt(job *models.Job, errMsg string, retryAt time.Time) error
	// RequeueStale returns jobs stuck in processing beyond the threshold to
	// pending. Crash recovery; does not charge an attempt.
	RequeueStale(olderThan time.Time) (int64, error)
	GetJob(id string) (*models.Job, error)
	LatestByEventID(eventID uint) (*models.Job, error)
	ListByEventID(eventID uint) ([]models.Job, error)
	CountByStatus() (map[models.JobStatus]int64, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a job store backed by GORM.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Create(job *models.Job) error {
	return s.db.Create(job).Error
}

func (s *gormStore) ClaimNext(now time.Time) (*models.Job, error) {
	// Candidate selection and claim are separate statements; the conditional
	// update is what guarantees exclusivity, so a lost race just means
	// scanning for the next candidate.
	for i := 0; i < 3; i++ {
		var job models.Job
		err := s.db.
			Where("status = ? AND next_run_at <= ?", models.JobStatusPending, now).
			Order("created_at ASC").
			First(&job).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}

		res := s.db.Model(&models.Job{}).
			Where("id = ? AND status = ?", job.ID, models.JobStatusPending).
			Updates(map[string]interface{}{
				"status":       models.JobStatusProcessing,
				"processed_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			job.Status = models.JobStatusProcessing
			job.ProcessedAt = &now
			return &job, nil
		}
		// Another worker won the claim; try the next candidate.
	}
	return nil, nil
}

func (s *gormStore) MarkCompleted(job *models.Job) error {
	now := time.Now()
	job.Status = models.JobStatusCompleted
	job.CompletedAt = &now
	job.LastError = ""
	return s.db.Model(&models.Job{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
		"status":       models.JobStatusCompleted,
		"completed_at": &now,
		"last_error":   "",
		"updated_at":   now,
	}).Error
}

func (s *gormStore) MarkFailedAttempt(job *models.Job, errMsg string, retryAt time.Time) error {
	job.Attempts++
	job.LastError = errMsg
	if job.Attempts < job.MaxAttempts {
		job.Status = models.JobStatusPending
		job.NextRunAt = retryAt
	} else {
		job.Status = models.JobStatusFailed
	}
	return s.db.Model(&models.Job{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
		"status":      job.Status,
		"attempts":    job.Attempts,
		"last_error":  errMsg,
		"next_run_at": job.NextRunAt,
		"updated_at":  time.Now(),
	}).Error
}

func (s *gormStore) RequeueStale(olderThan time.Time) (int64, error) {
	res := s.db.Model(&models.Job{}).
		Where("status = ? AND updated_at < ?", models.JobStatusProcessing, olderThan).
		Updates(map[string]interface{}{
			"status":      models.JobStatusPending,
			"next_run_at": time.Now(),
			"last_error":  "recovered by reaper",
			"updated_at":  time.Now(),
		})
	return res.RowsAffected, res.Error
}

func (s *gormStore) GetJob(id string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *gormStore) LatestByEventID(eventID uint) (*models.Job, error) {
	var job models.Job
	err := s.db.
		Where("webhook_event_id = ?", eventID).
		Order("created_at DESC").
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *gormStore) ListByEventID(eventID uint) ([]models.Job, error) {
	var jobs []models.Job
	err := s.db.
		Where("webhook_event_id = ?", eventID).
		Order("created_at DESC").
		Find(&jobs).Error
	return jobs, err
}

func (s *gormStore) CountByStatus() (map[models.JobStatus]int64, error) {
	type row struct {
		Status models.JobStatus
		N      int64
	}
	var rows []row
	err := s.db.Model(&models.Job{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[models.JobStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}
