package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/cartflow/CartFlow/app/models"
)

// IdempotencyKey derives a stable content-addressed fingerprint for a webhook
// payload. The body is decoded and re-marshaled so that key order and
// insignificant whitespace do not change the result; non-JSON bodies hash the
// raw bytes.
func IdempotencyKey(payload []byte) string {
	var decoded interface{}
	if err := json.Unmarshal(payload, &decoded); err == nil {
		if canonical, err := json.Marshal(decoded); err == nil {
			sum := sha256.Sum256(canonical)
			return hex.EncodeToString(sum[:])
		}
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// ExtractProviderRef pulls the provider's own event-identifying field out of
// a decoded payload: the payment id for razorpay, the waybill for delhivery.
// Empty when the payload does not carry one.
func ExtractProviderRef(source string, payload []byte) string {
	var body map[string]interface{}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}

	switch source {
	case models.WebhookSourceRazorpay:
		// payload.payment.entity.id, with payload.payment.id as older shape
		if pl, ok := body["payload"].(map[string]interface{}); ok {
			if payment, ok := pl["payment"].(map[string]interface{}); ok {
				if entity, ok := payment["entity"].(map[string]interface{}); ok {
					if id, ok := entity["id"].(string); ok {
						return id
					}
				}
				if id, ok := payment["id"].(string); ok {
					return id
				}
			}
		}
	case models.WebhookSourceDelhivery:
		if shipment, ok := body["Shipment"].(map[string]interface{}); ok {
			if awb, ok := shipment["AWB"].(string); ok {
				return awb
			}
		}
		if wb, ok := body["waybill"].(string); ok {
			return wb
		}
	}
	return ""
}

// ExtractEventType resolves the provider-reported event name, defaulting to
// "unknown" when the payload does not declare one.
func ExtractEventType(source string, payload []byte) string {
	var body map[string]interface{}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "unknown"
	}

	switch source {
	case models.WebhookSourceRazorpay:
		if ev, ok := body["event"].(string); ok && strings.TrimSpace(ev) != "" {
			return strings.TrimSpace(ev)
		}
	case models.WebhookSourceDelhivery:
		if shipment, ok := body["Shipment"].(map[string]interface{}); ok {
			if status, ok := shipment["Status"].(map[string]interface{}); ok {
				if st, ok := status["Status"].(string); ok && strings.TrimSpace(st) != "" {
					return "tracking." + strings.ToLower(strings.TrimSpace(st))
				}
			}
		}
	}
	return "unknown"
}
