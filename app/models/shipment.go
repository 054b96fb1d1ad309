package models

import "time"

// Carrier-reported shipment states, normalized.
const (
	ShipmentStatusCreated   = "created"
	ShipmentStatusInTransit = "in_transit"
	ShipmentStatusDelivered = "delivered"
	ShipmentStatusReturned  = "returned"
)

// Shipment tracks one carrier consignment for an order.
type Shipment struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	OrderID            uint       `gorm:"not null;index" json:"order_id"`
	Waybill            string     `gorm:"type:varchar(64);not null;default:'';index" json:"waybill"`
	Status             string     `gorm:"type:varchar(20);not null;default:'created';index" json:"status"`
	LastTrackingSyncAt *time.Time `gorm:"type:timestamp;default:null" json:"last_tracking_sync_at,omitempty"`
	DeliveredAt        *time.Time `gorm:"type:timestamp;default:null" json:"delivered_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Shipment) TableName() string {
	return "shipments"
}
