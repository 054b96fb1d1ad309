package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cartflow/CartFlow/internal/pkg/env"
)

const defaultDelhiveryAPIBaseURL = "https://track.delhivery.com"

// DelhiveryClient wraps the Delhivery shipment and tracking APIs. Only the
// calls consumed by the job handlers are implemented.
type DelhiveryClient struct {
	Token      string
	APIBaseURL string
	HTTPClient *http.Client
}

// ShipmentResult reports the waybill assigned to a created consignment.
type ShipmentResult struct {
	Waybill string `json:"waybill"`
}

// TrackingResult is the normalized tracking status for a waybill.
type TrackingResult struct {
	Waybill string `json:"waybill"`
	Status  string `json:"status"`
}

func NewDelhiveryClientFromEnv() *DelhiveryClient {
	return &DelhiveryClient{
		Token:      strings.TrimSpace(env.GetEnv("DELHIVERY_API_TOKEN", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("DELHIVERY_API_BASE_URL", defaultDelhiveryAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateShipment registers a consignment for an order and returns the
// assigned waybill.
func (c *DelhiveryClient) CreateShipment(ctx context.Context, orderNumber, email string) (*ShipmentResult, error) {
	if strings.TrimSpace(c.Token) == "" {
		return nil, errors.New("DELHIVERY_API_TOKEN is not configured")
	}
	if strings.TrimSpace(orderNumber) == "" {
		return nil, errors.New("order number is required")
	}

	body, err := json.Marshal(map[string]interface{}{
		"shipments": []map[string]string{{"order": orderNumber, "email": email}},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/api/cmu/create.json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Packages []struct {
			Waybill string `json:"waybill"`
		} `json:"packages"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode delhivery create response: %w", err)
	}
	if len(parsed.Packages) == 0 || strings.TrimSpace(parsed.Packages[0].Waybill) == "" {
		return nil, errors.New("delhivery returned no waybill")
	}
	return &ShipmentResult{Waybill: parsed.Packages[0].Waybill}, nil
}

// TrackWaybill fetches the current carrier status for a waybill.
func (c *DelhiveryClient) TrackWaybill(ctx context.Context, waybill string) (*TrackingResult, error) {
	if strings.TrimSpace(c.Token) == "" {
		return nil, errors.New("DELHIVERY_API_TOKEN is not configured")
	}
	if strings.TrimSpace(waybill) == "" {
		return nil, errors.New("waybill is required")
	}

	endpoint := fmt.Sprintf("%s/api/v1/packages/json/?waybill=%s", c.APIBaseURL, url.QueryEscape(waybill))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.Token)

	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		ShipmentData []struct {
			Shipment struct {
				AWB    string `json:"AWB"`
				Status struct {
					Status string `json:"Status"`
				} `json:"Status"`
			} `json:"Shipment"`
		} `json:"ShipmentData"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode delhivery tracking response: %w", err)
	}
	if len(parsed.ShipmentData) == 0 {
		return nil, fmt.Errorf("no tracking data for waybill %s", waybill)
	}
	return &TrackingResult{
		Waybill: parsed.ShipmentData[0].Shipment.AWB,
		Status:  parsed.ShipmentData[0].Shipment.Status.Status,
	}, nil
}

func (c *DelhiveryClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("delhivery request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("delhivery returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}
