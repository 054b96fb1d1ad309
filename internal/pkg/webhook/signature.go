package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/cartflow/CartFlow/app/models"
)

// VerifySignature checks a raw webhook body against the provider's signature
// header using the shared secret. It is pure; the fail-open policy for a
// missing secret is applied by the caller.
func VerifySignature(source string, payload []byte, signatureHeader, secret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	sec := strings.TrimSpace(secret)
	if sig == "" || sec == "" {
		return false
	}

	switch source {
	case models.WebhookSourceRazorpay:
		return verifyRazorpaySignature(payload, sig, sec)
	case models.WebhookSourceDelhivery:
		return verifyDelhiverySignature(payload, sig, sec)
	default:
		return false
	}
}

// Razorpay sends hex(HMAC-SHA256(body)) in X-Razorpay-Signature.
func verifyRazorpaySignature(payload []byte, sig, secret string) bool {
	decoded, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decoded)
}

// Delhivery sends base64(HMAC-SHA256(body)) in X-Delhivery-Signature.
func verifyDelhiverySignature(payload []byte, sig, secret string) bool {
	decoded, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decoded)
}
