package commerce

import (
	"errors"
	"strings"
	"time"

	"github.com/cartflow/CartFlow/app/models"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// ShipmentService owns shipment rows and applies carrier tracking updates.
type ShipmentService struct {
	db *gorm.DB
}

func NewShipmentService(db *gorm.DB) *ShipmentService {
	return &ShipmentService{db: db}
}

func (s *ShipmentService) GetShipment(id uint) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := s.db.First(&shipment, id).Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

// RegisterWaybill records the carrier consignment for an order. If a shipment
// with that waybill already exists this is a no-op success, so re-running a
// shipment.create job never duplicates consignments.
func (s *ShipmentService) RegisterWaybill(orderID uint, waybill string) (*models.Shipment, error) {
	waybill = strings.TrimSpace(waybill)
	if orderID == 0 || waybill == "" {
		return nil, errors.New("order id and waybill are required")
	}

	var existing models.Shipment
	err := s.db.Where("waybill = ?", waybill).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	shipment := &models.Shipment{
		OrderID: orderID,
		Waybill: waybill,
		Status:  models.ShipmentStatusCreated,
	}
	if err := s.db.Create(shipment).Error; err != nil {
		return nil, err
	}
	log.Infof("[Commerce] Shipment %d registered for order %d (waybill %s)", shipment.ID, orderID, waybill)
	return shipment, nil
}

// ApplyTrackingUpdate normalizes and stores a carrier status for a waybill.
// Unknown waybills are an error so the attempt is retried; the carrier can
// deliver tracking pushes before shipment.create has run.
func (s *ShipmentService) ApplyTrackingUpdate(waybill, carrierStatus string) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := s.db.Where("waybill = ?", waybill).First(&shipment).Error; err != nil {
		return nil, err
	}

	status := normalizeCarrierStatus(carrierStatus)
	now := time.Now()
	updates := map[string]interface{}{
		"status":                status,
		"last_tracking_sync_at": &now,
	}
	if status == models.ShipmentStatusDelivered && shipment.DeliveredAt == nil {
		updates["delivered_at"] = &now
	}
	if err := s.db.Model(&shipment).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

// ListStaleInTransit returns in-transit shipments whose tracking has not been
// refreshed since the cutoff. Feeds the periodic tracking.sync producer.
func (s *ShipmentService) ListStaleInTransit(cutoff time.Time, limit int) ([]models.Shipment, error) {
	var shipments []models.Shipment
	err := s.db.
		Where("status IN ?", []string{models.ShipmentStatusCreated, models.ShipmentStatusInTransit}).
		Where("last_tracking_sync_at IS NULL OR last_tracking_sync_at < ?", cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&shipments).Error
	return shipments, err
}

func normalizeCarrierStatus(carrierStatus string) string {
	switch strings.ToLower(strings.TrimSpace(carrierStatus)) {
	case "delivered":
		return models.ShipmentStatusDelivered
	case "rto", "returned", "rto delivered":
		return models.ShipmentStatusReturned
	case "manifested", "not picked":
		return models.ShipmentStatusCreated
	default:
		return models.ShipmentStatusInTransit
	}
}
