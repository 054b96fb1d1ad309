package jobqueue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cartflow/CartFlow/app/models"
	"github.com/google/uuid"
)

// Job types dispatched by the worker pool.
const (
	JobTypeWebhookProcess = "webhook.process"
	JobTypeEmailSend      = "email.send"
	JobTypeRefundProcess  = "refund.process"
	JobTypeShipmentCreate = "shipment.create"
	JobTypeTrackingSync   = "tracking.sync"
)

const (
	// DefaultPollInterval is how long an idle worker sleeps between claims.
	DefaultPollInterval = time.Second
	// DefaultHandlerTimeout bounds a single handler invocation; hitting it
	// counts as a failed attempt.
	DefaultHandlerTimeout = 2 * time.Minute
	// MaxRetryBackoff caps the delay before a retry becomes claimable.
	MaxRetryBackoff = 30 * time.Minute
)

// WebhookProcessPayload carries a back-reference to the triggering event, not
// a copy of it.
type WebhookProcessPayload struct {
	WebhookEventID uint   `json:"webhook_event_id"`
	Source         string `json:"source"`
	EventType      string `json:"event_type"`
}

// EmailSendPayload is the input for email.send jobs.
type EmailSendPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// RefundProcessPayload is the input for refund.process jobs.
type RefundProcessPayload struct {
	OrderID           uint   `json:"order_id"`
	ProviderPaymentID string `json:"provider_payment_id"`
	AmountPaise       int64  `json:"amount_paise"`
}

// ShipmentCreatePayload is the input for shipment.create jobs.
type ShipmentCreatePayload struct {
	OrderID uint `json:"order_id"`
}

// TrackingSyncPayload is the input for tracking.sync jobs.
type TrackingSyncPayload struct {
	ShipmentID uint   `json:"shipment_id"`
	Waybill    string `json:"waybill"`
}

// NewJob builds a pending job with a fresh id and the configured retry
// ceiling. eventID is zero for jobs not derived from a webhook event.
func NewJob(jobType string, payload interface{}, eventID uint) (*models.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", jobType, err)
	}

	maxAttempts := models.DefaultJobMaxAttempts
	if settings := models.GetAppSettings(); settings != nil {
		maxAttempts = settings.GetJobMaxAttempts()
	}

	return &models.Job{
		ID:             uuid.New().String(),
		Type:           jobType,
		PayloadJSON:    string(data),
		WebhookEventID: eventID,
		Status:         models.JobStatusPending,
		MaxAttempts:    maxAttempts,
		NextRunAt:      time.Now(),
	}, nil
}

// DecodePayload unmarshals a job's payload into the given struct.
func DecodePayload(job *models.Job, out interface{}) error {
	if err := json.Unmarshal([]byte(job.PayloadJSON), out); err != nil {
		return fmt.Errorf("failed to unmarshal payload of job %s: %w", job.ID, err)
	}
	return nil
}

// RetryBackoff returns the delay before attempt n+1 becomes claimable.
// Quadratic in the attempt count, capped.
func RetryBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := time.Duration(attempts*attempts) * time.Minute
	if d > MaxRetryBackoff {
		return MaxRetryBackoff
	}
	return d
}
