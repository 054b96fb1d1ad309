package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cartflow/CartFlow/internal/pkg/env"
)

const defaultRazorpayAPIBaseURL = "https://api.razorpay.com/v1"

// RazorpayClient is a thin wrapper over the Razorpay REST API. Only the calls
// the job handlers need are implemented.
type RazorpayClient struct {
	KeyID      string
	KeySecret  string
	APIBaseURL string
	HTTPClient *http.Client
}

// RefundResult is the subset of the gateway refund entity the pipeline uses.
type RefundResult struct {
	RefundID    string `json:"id"`
	PaymentID   string `json:"payment_id"`
	AmountPaise int64  `json:"amount"`
	Status      string `json:"status"`
}

func NewRazorpayClientFromEnv() *RazorpayClient {
	return &RazorpayClient{
		KeyID:      strings.TrimSpace(env.GetEnv("RAZORPAY_KEY_ID", "")),
		KeySecret:  strings.TrimSpace(env.GetEnv("RAZORPAY_KEY_SECRET", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("RAZORPAY_API_BASE_URL", defaultRazorpayAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateRefund issues a (full or partial) refund for a captured payment.
// Razorpay treats repeated refunds beyond the captured amount as errors, so
// callers pass the receipt to make the request idempotent on their side.
func (c *RazorpayClient) CreateRefund(ctx context.Context, paymentID string, amountPaise int64, receipt string) (*RefundResult, error) {
	if strings.TrimSpace(c.KeyID) == "" || strings.TrimSpace(c.KeySecret) == "" {
		return nil, errors.New("RAZORPAY_KEY_ID / RAZORPAY_KEY_SECRET are not configured")
	}
	if strings.TrimSpace(paymentID) == "" {
		return nil, errors.New("payment id is required")
	}

	body := map[string]interface{}{"receipt": receipt}
	if amountPaise > 0 {
		body["amount"] = amountPaise
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/payments/%s/refund", c.APIBaseURL, paymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("razorpay refund request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("razorpay refund returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result RefundResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode razorpay refund response: %w", err)
	}
	return &result, nil
}
