package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartflow/CartFlow/app/models"
)

func TestNewJob(t *testing.T) {
	job, err := NewJob(JobTypeWebhookProcess, WebhookProcessPayload{
		WebhookEventID: 42,
		Source:         models.WebhookSourceRazorpay,
		EventType:      "payment.captured",
	}, 42)

	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobTypeWebhookProcess, job.Type)
	assert.Equal(t, uint(42), job.WebhookEventID)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, 0, job.Attempts)
	assert.GreaterOrEqual(t, job.MaxAttempts, 1)
	assert.False(t, job.NextRunAt.After(time.Now()))

	var payload WebhookProcessPayload
	require.NoError(t, DecodePayload(job, &payload))
	assert.Equal(t, uint(42), payload.WebhookEventID)
	assert.Equal(t, "payment.captured", payload.EventType)
}

func TestNewJobUniqueIDs(t *testing.T) {
	a, err := NewJob(JobTypeEmailSend, EmailSendPayload{To: "x@example.com"}, 0)
	require.NoError(t, err)
	b, err := NewJob(JobTypeEmailSend, EmailSendPayload{To: "x@example.com"}, 0)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestDecodePayloadInvalidJSON(t *testing.T) {
	job := &models.Job{ID: "j1", PayloadJSON: "{{{"}
	var payload EmailSendPayload
	assert.Error(t, DecodePayload(job, &payload))
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		expected time.Duration
	}{
		{0, time.Minute},
		{1, time.Minute},
		{2, 4 * time.Minute},
		{3, 9 * time.Minute},
		{5, 25 * time.Minute},
		{6, MaxRetryBackoff},
		{100, MaxRetryBackoff},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, RetryBackoff(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestJobRetryableAndTerminal(t *testing.T) {
	job := &models.Job{Status: models.JobStatusPending, Attempts: 0, MaxAttempts: 3}
	assert.True(t, job.Retryable())
	assert.False(t, job.Terminal())

	job.Attempts = 3
	assert.False(t, job.Retryable())

	job.Status = models.JobStatusFailed
	assert.True(t, job.Terminal())

	job.Status = models.JobStatusCompleted
	assert.True(t, job.Terminal())
}
