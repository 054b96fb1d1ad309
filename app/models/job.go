package models

import "time"

// JobStatus is the lifecycle state of a background job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// DefaultJobMaxAttempts bounds automatic retries per job.
const DefaultJobMaxAttempts = 3

// Job is a durable unit of asynchronous work. Jobs are claimed by exactly one
// dispatcher worker at a time via a conditional status flip; completed and
// failed jobs are kept as history and never mutated again.
type Job struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Type        string    `gorm:"type:varchar(50);not null;index" json:"type"`
	PayloadJSON string    `gorm:"type:longtext;not null" json:"payload_json"`
	// WebhookEventID back-references the event that spawned this job. It is a
	// plain indexed column, not a foreign key: one event spawns many jobs over
	// its lifetime (original plus admin retries) and the current status of an
	// event is computed from its most recent job at read time.
	WebhookEventID uint       `gorm:"not null;default:0;index" json:"webhook_event_id"`
	Status         JobStatus  `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Attempts       int        `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts    int        `gorm:"not null;default:3" json:"max_attempts"`
	LastError      string     `gorm:"type:text" json:"last_error"`
	// NextRunAt gates retry backoff; a pending job is only eligible for claim
	// once NextRunAt has passed.
	NextRunAt   time.Time  `gorm:"not null;index" json:"next_run_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	ProcessedAt *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CompletedAt *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
}

func (Job) TableName() string {
	return "jobs"
}

// Retryable reports whether a failing job still has retry budget left.
func (j *Job) Retryable() bool {
	return j.Attempts < j.MaxAttempts
}

// Terminal reports whether the job reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
