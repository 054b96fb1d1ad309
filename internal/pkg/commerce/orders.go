package commerce

import (
	"errors"
	"time"

	"github.com/cartflow/CartFlow/app/models"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// OrderService applies payment-derived effects to orders. Every mutation here
// is idempotent: the queue delivers at least once, so marking an order paid
// twice must be safe.
type OrderService struct {
	db *gorm.DB
}

func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

func (s *OrderService) GetOrder(id uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkOrderPaid flips an order to paid based on the gateway's order/payment
// ids. Already-paid orders are a no-op success.
func (s *OrderService) MarkOrderPaid(providerOrderID, providerPaymentID string, amountPaise int64) (*models.Order, error) {
	order, err := s.FindByProviderRef(providerOrderID, providerPaymentID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.OrderPaymentPaid {
		return order, nil
	}

	now := time.Now()
	updates := map[string]interface{}{
		"payment_status":      models.OrderPaymentPaid,
		"provider_payment_id": providerPaymentID,
		"paid_at":             &now,
	}
	if amountPaise > 0 {
		updates["amount_paise"] = amountPaise
	}
	if err := s.db.Model(order).Updates(updates).Error; err != nil {
		return nil, err
	}
	log.Infof("[Commerce] Order %s marked paid (payment %s)", order.OrderNumber, providerPaymentID)
	return order, nil
}

// MarkOrderRefunded flips an order to refunded. Idempotent like MarkOrderPaid.
func (s *OrderService) MarkOrderRefunded(providerPaymentID string) (*models.Order, error) {
	order, err := s.FindByProviderRef("", providerPaymentID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.OrderPaymentRefunded {
		return order, nil
	}

	now := time.Now()
	err = s.db.Model(order).Updates(map[string]interface{}{
		"payment_status": models.OrderPaymentRefunded,
		"refunded_at":    &now,
	}).Error
	if err != nil {
		return nil, err
	}
	log.Infof("[Commerce] Order %s marked refunded (payment %s)", order.OrderNumber, providerPaymentID)
	return order, nil
}

// FindByProviderRef resolves an order from the gateway's order or payment id,
// preferring the payment id when both are present.
func (s *OrderService) FindByProviderRef(providerOrderID, providerPaymentID string) (*models.Order, error) {
	if providerOrderID == "" && providerPaymentID == "" {
		return nil, errors.New("provider order id or payment id is required")
	}

	var order models.Order
	if providerPaymentID != "" {
		if err := s.db.Where("provider_payment_id = ?", providerPaymentID).First(&order).Error; err == nil {
			return &order, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if providerOrderID != "" {
		if err := s.db.Where("provider_order_id = ?", providerOrderID).First(&order).Error; err != nil {
			return nil, err
		}
		return &order, nil
	}
	return nil, gorm.ErrRecordNotFound
}
