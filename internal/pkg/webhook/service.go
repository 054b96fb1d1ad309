package webhook

import (
	"context"
	"errors"
	"strings"

	"github.com/cartflow/CartFlow/app/models"
	"github.com/cartflow/CartFlow/internal/pkg/env"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Enqueuer hands ingestion-derived work to the job queue. Implemented by
// jobqueue.Queue; faked in tests.
type Enqueuer interface {
	EnqueueWebhookProcess(source, eventType string, eventID uint) (*models.Job, error)
}

// SecretFunc resolves the webhook signing secret for a provider. An empty
// secret triggers the fail-open policy.
type SecretFunc func(source string) string

// Service captures inbound webhook deliveries and converts them into
// background work.
type Service struct {
	repo    Repository
	queue   Enqueuer
	secrets SecretFunc
}

// NewService creates a webhook service from injected collaborators.
func NewService(repo Repository, queue Enqueuer, secrets SecretFunc) *Service {
	if secrets == nil {
		secrets = SecretFromEnv
	}
	return &Service{repo: repo, queue: queue, secrets: secrets}
}

// NewServiceFromDB creates a webhook service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, queue Enqueuer) *Service {
	return NewService(NewRepository(db), queue, nil)
}

// SecretFromEnv reads the per-provider signing secret from the environment.
func SecretFromEnv(source string) string {
	switch source {
	case models.WebhookSourceRazorpay:
		return env.GetEnv("RAZORPAY_WEBHOOK_SECRET", "")
	case models.WebhookSourceDelhivery:
		return env.GetEnv("DELHIVERY_WEBHOOK_SECRET", "")
	default:
		return ""
	}
}

// IngestInput is one raw inbound delivery.
type IngestInput struct {
	Source          string
	Body            []byte
	SignatureHeader string
}

// IngestResult reports what happened to a delivery. The HTTP layer turns this
// into the acknowledgement response; it attests receipt, never processing.
type IngestResult struct {
	Event          *models.WebhookEvent
	SignatureValid bool
	Duplicate      bool
}

// Ingest runs the capture pipeline for one delivery: verify signature,
// dedupe, persist the event, enqueue the processing job. Signature failures
// are recorded, not rejected; duplicates are acknowledged without new work.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (*IngestResult, error) {
	source := strings.ToLower(strings.TrimSpace(in.Source))
	if source == "" {
		return nil, errors.New("source is required")
	}

	secret := s.secrets(source)
	signatureValid := false
	if secret == "" {
		// No secret provisioned yet: accept unsigned deliveries rather than
		// block the integration. Deliberate fail-open, warn on every hit.
		log.Warnf("[Webhook] No signing secret configured for %s, accepting delivery unverified", source)
		signatureValid = true
	} else {
		signatureValid = VerifySignature(source, in.Body, in.SignatureHeader, secret)
		if !signatureValid {
			log.Warnf("[Webhook] Signature verification failed for %s delivery, storing with signature_valid=false", source)
		}
	}

	eventType := ExtractEventType(source, in.Body)
	providerRef := ExtractProviderRef(source, in.Body)

	// Re-delivery of an already-processed event: acknowledge without storing
	// or enqueuing anything.
	if providerRef != "" {
		existing, err := s.repo.FindProcessedBySourceRef(ctx, source, providerRef)
		if err == nil {
			return &IngestResult{Event: existing, SignatureValid: signatureValid, Duplicate: true}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	event := &models.WebhookEvent{
		Source:         source,
		EventType:      eventType,
		PayloadJSON:    string(in.Body),
		Signature:      strings.TrimSpace(in.SignatureHeader),
		SignatureValid: signatureValid,
		IdempotencyKey: IdempotencyKey(in.Body),
		ProviderRef:    providerRef,
	}
	created, stored, err := s.repo.CreateEventIfNotExists(ctx, event)
	if err != nil {
		return nil, err
	}
	if !created {
		return &IngestResult{Event: stored, SignatureValid: signatureValid, Duplicate: true}, nil
	}

	if _, err := s.queue.EnqueueWebhookProcess(source, eventType, stored.ID); err != nil {
		// The event row is already durable; the stranded delivery stays
		// visible to operators and can be re-enqueued via admin retry.
		log.Errorf("[Webhook] Failed to enqueue processing job for event %d: %v", stored.ID, err)
		return nil, err
	}

	log.Infof("[Webhook] Captured %s event %d (type=%s, signature_valid=%t)", source, stored.ID, eventType, signatureValid)
	return &IngestResult{Event: stored, SignatureValid: signatureValid}, nil
}

// MarkProcessed records the outcome of the derived job against the event.
func (s *Service) MarkProcessed(ctx context.Context, eventID uint, processingErr error) error {
	if eventID == 0 {
		return errors.New("event id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkProcessed(ctx, eventID, errMsg)
}

// Retry re-enqueues a fresh processing job for an event. The previous failed
// job is retained as history; the event's processed flag resets until the new
// job succeeds.
func (s *Service) Retry(ctx context.Context, eventID uint) (*models.Job, error) {
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ResetForRetry(ctx, event.ID); err != nil {
		return nil, err
	}
	job, err := s.queue.EnqueueWebhookProcess(event.Source, event.EventType, event.ID)
	if err != nil {
		return nil, err
	}
	log.Infof("[Webhook] Admin retry enqueued job %s for event %d", job.ID, event.ID)
	return job, nil
}
