package models

import "time"

// Webhook source providers. Each maps to its own ingestion endpoint and
// signature scheme.
const (
	WebhookSourceRazorpay  = "razorpay"
	WebhookSourceDelhivery = "delhivery"
)

// WebhookEvent stores every inbound provider delivery verbatim, with
// deduplication metadata so re-deliveries never spawn duplicate work.
type WebhookEvent struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Source         string     `gorm:"type:varchar(20);not null;index;index:ux_webhook_events_source_key,unique,priority:1" json:"source"`
	EventType      string     `gorm:"type:varchar(100);not null;default:'unknown';index" json:"event_type"`
	PayloadJSON    string     `gorm:"type:longtext;not null" json:"payload_json"`
	Signature      string     `gorm:"type:varchar(512)" json:"signature,omitempty"`
	SignatureValid bool       `gorm:"default:false;index" json:"signature_valid"`
	IdempotencyKey string     `gorm:"type:varchar(80);not null;index:ux_webhook_events_source_key,unique,priority:2" json:"idempotency_key"`
	// ProviderRef is the provider's own event-identifying field (payment id,
	// waybill). Duplicate detection of already-processed events keys on
	// (source, provider_ref).
	ProviderRef string     `gorm:"type:varchar(191);not null;default:'';index" json:"provider_ref"`
	Processed   bool       `gorm:"default:false;index" json:"processed"`
	ProcessedAt *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	LastRetryAt *time.Time `gorm:"type:timestamp;default:null" json:"last_retry_at,omitempty"`
	LastError   string     `gorm:"type:text" json:"last_error"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
