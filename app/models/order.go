package models

import "time"

// Payment states for an order.
const (
	OrderPaymentPending  = "pending"
	OrderPaymentPaid     = "paid"
	OrderPaymentRefunded = "refunded"
	OrderPaymentFailed   = "failed"
	// OrderPaymentCancelled marks orders cancelled before capture; a payment
	// landing on one triggers an automatic refund job.
	OrderPaymentCancelled = "cancelled"
)

// Order is the commerce record webhook-derived jobs act on. Only the fields
// the pipeline touches live here; the storefront CRUD owns the rest.
type Order struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	OrderNumber       string     `gorm:"type:varchar(40);not null;uniqueIndex" json:"order_number"`
	Email             string     `gorm:"type:varchar(255);not null" json:"email"`
	AmountPaise       int64      `gorm:"not null;default:0" json:"amount_paise"`
	PaymentStatus     string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"payment_status"`
	ProviderOrderID   string     `gorm:"type:varchar(191);not null;default:'';index" json:"provider_order_id"`
	ProviderPaymentID string     `gorm:"type:varchar(191);not null;default:'';index" json:"provider_payment_id"`
	PaidAt            *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	RefundedAt        *time.Time `gorm:"type:timestamp;default:null" json:"refunded_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}
