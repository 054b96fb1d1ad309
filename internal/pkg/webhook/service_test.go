package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cartflow/CartFlow/app/models"
)

// fakeRepository keeps events in memory and enforces the same
// (source, idempotency_key) uniqueness as the real table.
type fakeRepository struct {
	nextID uint
	events map[uint]*models.WebhookEvent
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{nextID: 1, events: make(map[uint]*models.WebhookEvent)}
}

func (r *fakeRepository) CreateEventIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	for _, existing := range r.events {
		if existing.Source == event.Source && existing.IdempotencyKey == event.IdempotencyKey {
			return false, existing, nil
		}
	}
	event.ID = r.nextID
	event.CreatedAt = time.Now()
	r.nextID++
	r.events[event.ID] = event
	return true, event, nil
}

func (r *fakeRepository) FindProcessedBySourceRef(ctx context.Context, source, providerRef string) (*models.WebhookEvent, error) {
	for _, existing := range r.events {
		if existing.Source == source && existing.ProviderRef == providerRef && existing.Processed {
			return existing, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepository) GetEvent(ctx context.Context, id uint) (*models.WebhookEvent, error) {
	event, ok := r.events[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return event, nil
}

func (r *fakeRepository) MarkProcessed(ctx context.Context, id uint, processingError string) error {
	event, ok := r.events[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	event.LastError = processingError
	if processingError == "" {
		now := time.Now()
		event.Processed = true
		event.ProcessedAt = &now
	}
	return nil
}

func (r *fakeRepository) ResetForRetry(ctx context.Context, id uint) error {
	event, ok := r.events[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	event.Processed = false
	event.ProcessedAt = nil
	event.LastRetryAt = &now
	return nil
}

type fakeEnqueuer struct {
	jobs []*models.Job
	err  error
}

func (e *fakeEnqueuer) EnqueueWebhookProcess(source, eventType string, eventID uint) (*models.Job, error) {
	if e.err != nil {
		return nil, e.err
	}
	job := &models.Job{
		ID:             uuid.New().String(),
		Type:           "webhook.process",
		WebhookEventID: eventID,
		Status:         models.JobStatusPending,
		MaxAttempts:    models.DefaultJobMaxAttempts,
		CreatedAt:      time.Now(),
	}
	e.jobs = append(e.jobs, job)
	return job, nil
}

func staticSecret(secret string) SecretFunc {
	return func(string) string { return secret }
}

func TestIngestStoresEventAndEnqueuesJob(t *testing.T) {
	repo := newFakeRepository()
	queue := &fakeEnqueuer{}
	secret := "rzp_test_secret"
	svc := NewService(repo, queue, staticSecret(secret))

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1"}}}}`)
	result, err := svc.Ingest(context.Background(), IngestInput{
		Source:          models.WebhookSourceRazorpay,
		Body:            body,
		SignatureHeader: signHex(body, secret),
	})

	require.NoError(t, err)
	assert.True(t, result.SignatureValid)
	assert.False(t, result.Duplicate)
	assert.Equal(t, "payment.captured", result.Event.EventType)
	assert.Equal(t, "pay_1", result.Event.ProviderRef)
	assert.False(t, result.Event.Processed)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, result.Event.ID, queue.jobs[0].WebhookEventID)
}

func TestIngestDuplicateDeliveryEnqueuesNothing(t *testing.T) {
	repo := newFakeRepository()
	queue := &fakeEnqueuer{}
	secret := "rzp_test_secret"
	svc := NewService(repo, queue, staticSecret(secret))

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_dup"}}}}`)
	in := IngestInput{
		Source:          models.WebhookSourceRazorpay,
		Body:            body,
		SignatureHeader: signHex(body, secret),
	}

	first, err := svc.Ingest(context.Background(), in)
	require.NoError(t, err)
	second, err := svc.Ingest(context.Background(), in)
	require.NoError(t, err)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Event.ID, second.Event.ID)
	assert.Len(t, queue.jobs, 1)
}

func TestIngestProcessedRedeliveryAcknowledgedWithoutNewEvent(t *testing.T) {
	repo := newFakeRepository()
	queue := &fakeEnqueuer{}
	secret := "rzp_test_secret"
	svc := NewService(repo, queue, staticSecret(secret))

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_done"}}}}`)
	in := IngestInput{
		Source:          models.WebhookSourceRazorpay,
		Body:            body,
		SignatureHeader: signHex(body, secret),
	}

	first, err := svc.Ingest(context.Background(), in)
	require.NoError(t, err)
	require.NoError(t, svc.MarkProcessed(context.Background(), first.Event.ID, nil))

	// Providers re-send with different whitespace; the provider ref match
	// must still catch it.
	redelivered := []byte(`{ "event": "payment.captured", "payload": { "payment": { "entity": { "id": "pay_done" } } } }`)
	second, err := svc.Ingest(context.Background(), IngestInput{
		Source:          models.WebhookSourceRazorpay,
		Body:            redelivered,
		SignatureHeader: signHex(redelivered, secret),
	})
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Event.ID, second.Event.ID)
	assert.Len(t, queue.jobs, 1)
	assert.Len(t, repo.events, 1)
}

func TestIngestInvalidSignatureStoredNotRejected(t *testing.T) {
	repo := newFakeRepository()
	queue := &fakeEnqueuer{}
	svc := NewService(repo, queue, staticSecret("real_secret"))

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_bad"}}}}`)
	result, err := svc.Ingest(context.Background(), IngestInput{
		Source:          models.WebhookSourceRazorpay,
		Body:            body,
		SignatureHeader: signHex(body, "attacker_secret"),
	})

	require.NoError(t, err)
	assert.False(t, result.SignatureValid)
	assert.False(t, result.Event.SignatureValid)
	// Delivery is still captured and processed downstream.
	assert.Len(t, queue.jobs, 1)
}

func TestIngestFailOpenWhenNoSecretConfigured(t *testing.T) {
	repo := newFakeRepository()
	queue := &fakeEnqueuer{}
	svc := NewService(repo, queue, staticSecret(""))

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_open"}}}}`)
	result, err := svc.Ingest(context.Background(), IngestInput{
		Source: models.WebhookSourceRazorpay,
		Body:   body,
	})

	require.NoError(t, err)
	assert.True(t, result.SignatureValid)
	assert.Len(t, queue.jobs, 1)
}

func TestIngestRequiresSource(t *testing.T) {
	svc := NewService(newFakeRepository(), &fakeEnqueuer{}, staticSecret("s"))
	_, err := svc.Ingest(context.Background(), IngestInput{Body: []byte(`{}`)})
	assert.Error(t, err)
}

func TestRetryResetsEventAndEnqueuesFreshJob(t *testing.T) {
	repo := newFakeRepository()
	queue := &fakeEnqueuer{}
	secret := "rzp_test_secret"
	svc := NewService(repo, queue, staticSecret(secret))

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_retry"}}}}`)
	result, err := svc.Ingest(context.Background(), IngestInput{
		Source:          models.WebhookSourceRazorpay,
		Body:            body,
		SignatureHeader: signHex(body, secret),
	})
	require.NoError(t, err)

	// Processing failed, event stays unprocessed with the error recorded.
	require.NoError(t, svc.MarkProcessed(context.Background(), result.Event.ID, assert.AnError))
	assert.False(t, result.Event.Processed)
	assert.NotEmpty(t, result.Event.LastError)

	job, err := svc.Retry(context.Background(), result.Event.ID)
	require.NoError(t, err)
	assert.NotNil(t, job)
	assert.Len(t, queue.jobs, 2)
	assert.NotEqual(t, queue.jobs[0].ID, queue.jobs[1].ID)
	assert.NotNil(t, result.Event.LastRetryAt)
	assert.False(t, result.Event.Processed)
}

func TestRetryUnknownEvent(t *testing.T) {
	svc := NewService(newFakeRepository(), &fakeEnqueuer{}, staticSecret("s"))
	_, err := svc.Retry(context.Background(), 999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMarkProcessedSetsTimestampOnSuccess(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, &fakeEnqueuer{}, staticSecret(""))

	body := []byte(`{"event":"order.paid"}`)
	result, err := svc.Ingest(context.Background(), IngestInput{
		Source: models.WebhookSourceRazorpay,
		Body:   body,
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkProcessed(context.Background(), result.Event.ID, nil))
	stored, err := repo.GetEvent(context.Background(), result.Event.ID)
	require.NoError(t, err)
	assert.True(t, stored.Processed)
	assert.NotNil(t, stored.ProcessedAt)
}
