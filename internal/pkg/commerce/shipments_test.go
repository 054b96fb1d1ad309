package commerce

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cartflow/CartFlow/app/models"
)

func TestNormalizeCarrierStatus(t *testing.T) {
	tests := []struct {
		carrierStatus string
		expected      string
	}{
		{"Delivered", models.ShipmentStatusDelivered},
		{"delivered", models.ShipmentStatusDelivered},
		{" DELIVERED ", models.ShipmentStatusDelivered},
		{"RTO", models.ShipmentStatusReturned},
		{"Returned", models.ShipmentStatusReturned},
		{"RTO Delivered", models.ShipmentStatusReturned},
		{"Manifested", models.ShipmentStatusCreated},
		{"Not Picked", models.ShipmentStatusCreated},
		{"In Transit", models.ShipmentStatusInTransit},
		{"Dispatched", models.ShipmentStatusInTransit},
		{"", models.ShipmentStatusInTransit},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizeCarrierStatus(tt.carrierStatus), "status %q", tt.carrierStatus)
	}
}
