package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cartflow/CartFlow/app/models"
	"github.com/cartflow/CartFlow/internal/pkg/carrier"
	"github.com/cartflow/CartFlow/internal/pkg/gateway"
	"github.com/cartflow/CartFlow/internal/pkg/webhook"
	"github.com/gofiber/fiber/v2/log"
)

// PaymentGateway is the slice of the payment provider API the refund handler
// consumes.
type PaymentGateway interface {
	CreateRefund(ctx context.Context, paymentID string, amountPaise int64, receipt string) (*gateway.RefundResult, error)
}

// Carrier is the slice of the shipping provider API the shipment handlers
// consume.
type Carrier interface {
	CreateShipment(ctx context.Context, orderNumber, email string) (*carrier.ShipmentResult, error)
	TrackWaybill(ctx context.Context, waybill string) (*carrier.TrackingResult, error)
}

// OrderStore is the slice of the order service the payment handlers consume.
// Satisfied by commerce.OrderService.
type OrderStore interface {
	GetOrder(id uint) (*models.Order, error)
	MarkOrderPaid(providerOrderID, providerPaymentID string, amountPaise int64) (*models.Order, error)
	MarkOrderRefunded(providerPaymentID string) (*models.Order, error)
	FindByProviderRef(providerOrderID, providerPaymentID string) (*models.Order, error)
}

// ShipmentStore is the slice of the shipment service the shipping handlers
// consume. Satisfied by commerce.ShipmentService.
type ShipmentStore interface {
	RegisterWaybill(orderID uint, waybill string) (*models.Shipment, error)
	ApplyTrackingUpdate(waybill, carrierStatus string) (*models.Shipment, error)
}

// Mailer sends one transactional email.
type Mailer func(to, subject, html string) error

// EnqueueFunc lets handlers fan out follow-up jobs without holding the queue.
type EnqueueFunc func(jobType string, payload interface{}, eventID uint) (*models.Job, error)

// Handlers bundles the job handlers with their collaborators. All business
// effects reached from here must be idempotent: the queue delivers at least
// once and a crash between effect and status write re-runs the job.
type Handlers struct {
	events    webhook.Repository
	orders    OrderStore
	shipments ShipmentStore
	mailer    Mailer
	gateway   PaymentGateway
	carrier   Carrier
	enqueue   EnqueueFunc
}

// NewHandlers wires the handler set. enqueue is typically Queue.EnqueueJob.
func NewHandlers(
	events webhook.Repository,
	orders OrderStore,
	shipments ShipmentStore,
	mailer Mailer,
	gw PaymentGateway,
	cr Carrier,
	enqueue EnqueueFunc,
) *Handlers {
	return &Handlers{
		events:    events,
		orders:    orders,
		shipments: shipments,
		mailer:    mailer,
		gateway:   gw,
		carrier:   cr,
		enqueue:   enqueue,
	}
}

// RegisterAll binds every handler to its job type on the queue.
func (h *Handlers) RegisterAll(q *Queue) {
	q.RegisterHandler(JobTypeWebhookProcess, h.HandleWebhookProcess)
	q.RegisterHandler(JobTypeEmailSend, h.HandleEmailSend)
	q.RegisterHandler(JobTypeRefundProcess, h.HandleRefundProcess)
	q.RegisterHandler(JobTypeShipmentCreate, h.HandleShipmentCreate)
	q.RegisterHandler(JobTypeTrackingSync, h.HandleTrackingSync)
}

// HandleWebhookProcess loads the back-referenced event and dispatches on
// (source, event type). Success flips the event's processed flag; failure
// records the error on the event and surfaces it for the retry policy.
func (h *Handlers) HandleWebhookProcess(ctx context.Context, job *models.Job) error {
	var payload WebhookProcessPayload
	if err := DecodePayload(job, &payload); err != nil {
		return err
	}

	event, err := h.events.GetEvent(ctx, payload.WebhookEventID)
	if err != nil {
		return fmt.Errorf("failed to load webhook event %d: %w", payload.WebhookEventID, err)
	}

	var procErr error
	switch event.Source {
	case models.WebhookSourceRazorpay:
		procErr = h.processRazorpayEvent(ctx, event)
	case models.WebhookSourceDelhivery:
		procErr = h.processDelhiveryEvent(ctx, event)
	default:
		log.Warnf("[JobQueue] Event %d has unknown source %q, completing as ignored", event.ID, event.Source)
	}

	if merr := h.markEventProcessed(ctx, event.ID, procErr); merr != nil {
		log.Errorf("[JobQueue] Failed to record outcome on event %d: %v", event.ID, merr)
		if procErr == nil {
			procErr = merr
		}
	}
	return procErr
}

func (h *Handlers) processRazorpayEvent(ctx context.Context, event *models.WebhookEvent) error {
	switch event.EventType {
	case "payment.captured", "order.paid":
		payment, err := parseRazorpayPayment(event.PayloadJSON)
		if err != nil {
			return err
		}

		order, err := h.orders.FindByProviderRef(payment.OrderID, payment.PaymentID)
		if err != nil {
			return fmt.Errorf("no order for payment %s: %w", payment.PaymentID, err)
		}

		// A capture landing on a cancelled order is money we must hand back.
		if order.PaymentStatus == models.OrderPaymentCancelled {
			_, err := h.enqueue(JobTypeRefundProcess, RefundProcessPayload{
				OrderID:           order.ID,
				ProviderPaymentID: payment.PaymentID,
				AmountPaise:       payment.AmountPaise,
			}, event.ID)
			return err
		}

		order, err = h.orders.MarkOrderPaid(payment.OrderID, payment.PaymentID, payment.AmountPaise)
		if err != nil {
			return err
		}
		if _, err := h.enqueue(JobTypeEmailSend, EmailSendPayload{
			To:      order.Email,
			Subject: fmt.Sprintf("Payment received for order %s", order.OrderNumber),
			HTML:    fmt.Sprintf("<p>We have received your payment for order <b>%s</b>. It is now being prepared for shipping.</p>", order.OrderNumber),
		}, event.ID); err != nil {
			return err
		}
		_, err = h.enqueue(JobTypeShipmentCreate, ShipmentCreatePayload{OrderID: order.ID}, event.ID)
		return err

	case "refund.processed", "payment.refunded":
		payment, err := parseRazorpayPayment(event.PayloadJSON)
		if err != nil {
			return err
		}
		_, err = h.orders.MarkOrderRefunded(payment.PaymentID)
		return err

	case "payment.failed":
		// Informational; the customer retries checkout. Nothing to mutate.
		return nil

	default:
		log.Infof("[JobQueue] Ignoring unhandled razorpay event type %q (event %d)", event.EventType, event.ID)
		return nil
	}
}

func (h *Handlers) processDelhiveryEvent(ctx context.Context, event *models.WebhookEvent) error {
	if !strings.HasPrefix(event.EventType, "tracking.") {
		log.Infof("[JobQueue] Ignoring unhandled delhivery event type %q (event %d)", event.EventType, event.ID)
		return nil
	}
	waybill := event.ProviderRef
	if waybill == "" {
		return fmt.Errorf("delhivery event %d carries no waybill", event.ID)
	}
	status := strings.TrimPrefix(event.EventType, "tracking.")
	_, err := h.shipments.ApplyTrackingUpdate(waybill, status)
	return err
}

// HandleEmailSend delivers one transactional email via the mail collaborator.
func (h *Handlers) HandleEmailSend(ctx context.Context, job *models.Job) error {
	var payload EmailSendPayload
	if err := DecodePayload(job, &payload); err != nil {
		return err
	}
	if strings.TrimSpace(payload.To) == "" {
		return fmt.Errorf("email job %s has no recipient", job.ID)
	}
	return h.mailer(payload.To, payload.Subject, payload.HTML)
}

// HandleRefundProcess issues the refund at the gateway and reflects it on the
// order. The receipt ties retries of the same job to one gateway refund.
func (h *Handlers) HandleRefundProcess(ctx context.Context, job *models.Job) error {
	var payload RefundProcessPayload
	if err := DecodePayload(job, &payload); err != nil {
		return err
	}

	receipt := fmt.Sprintf("refund-order-%d", payload.OrderID)
	if _, err := h.gateway.CreateRefund(ctx, payload.ProviderPaymentID, payload.AmountPaise, receipt); err != nil {
		return err
	}
	_, err := h.orders.MarkOrderRefunded(payload.ProviderPaymentID)
	return err
}

// HandleShipmentCreate books a carrier consignment for a paid order.
func (h *Handlers) HandleShipmentCreate(ctx context.Context, job *models.Job) error {
	var payload ShipmentCreatePayload
	if err := DecodePayload(job, &payload); err != nil {
		return err
	}

	order, err := h.orders.GetOrder(payload.OrderID)
	if err != nil {
		return fmt.Errorf("failed to load order %d: %w", payload.OrderID, err)
	}

	result, err := h.carrier.CreateShipment(ctx, order.OrderNumber, order.Email)
	if err != nil {
		return err
	}
	_, err = h.shipments.RegisterWaybill(order.ID, result.Waybill)
	return err
}

// HandleTrackingSync pulls the latest carrier status for a waybill.
func (h *Handlers) HandleTrackingSync(ctx context.Context, job *models.Job) error {
	var payload TrackingSyncPayload
	if err := DecodePayload(job, &payload); err != nil {
		return err
	}

	result, err := h.carrier.TrackWaybill(ctx, payload.Waybill)
	if err != nil {
		return err
	}
	_, err = h.shipments.ApplyTrackingUpdate(payload.Waybill, result.Status)
	return err
}

// markEventProcessed writes the job outcome back onto the source event: a nil
// error marks it processed, otherwise only the error text is recorded.
func (h *Handlers) markEventProcessed(ctx context.Context, eventID uint, procErr error) error {
	errMsg := ""
	if procErr != nil {
		errMsg = procErr.Error()
	}
	return h.events.MarkProcessed(ctx, eventID, errMsg)
}

type razorpayPayment struct {
	PaymentID   string
	OrderID     string
	AmountPaise int64
	Email       string
}

func parseRazorpayPayment(payloadJSON string) (*razorpayPayment, error) {
	var body struct {
		Payload struct {
			Payment struct {
				Entity struct {
					ID      string `json:"id"`
					OrderID string `json:"order_id"`
					Amount  int64  `json:"amount"`
					Email   string `json:"email"`
				} `json:"entity"`
				ID string `json:"id"`
			} `json:"payment"`
			Refund struct {
				Entity struct {
					PaymentID string `json:"payment_id"`
					Amount    int64  `json:"amount"`
				} `json:"entity"`
			} `json:"refund"`
		} `json:"payload"`
	}
	if err := json.Unmarshal([]byte(payloadJSON), &body); err != nil {
		return nil, fmt.Errorf("failed to parse razorpay payload: %w", err)
	}

	p := &razorpayPayment{
		PaymentID:   body.Payload.Payment.Entity.ID,
		OrderID:     body.Payload.Payment.Entity.OrderID,
		AmountPaise: body.Payload.Payment.Entity.Amount,
		Email:       body.Payload.Payment.Entity.Email,
	}
	if p.PaymentID == "" {
		p.PaymentID = body.Payload.Payment.ID
	}
	if p.PaymentID == "" && body.Payload.Refund.Entity.PaymentID != "" {
		p.PaymentID = body.Payload.Refund.Entity.PaymentID
		p.AmountPaise = body.Payload.Refund.Entity.Amount
	}
	if p.PaymentID == "" {
		return nil, fmt.Errorf("razorpay payload carries no payment id")
	}
	return p, nil
}
