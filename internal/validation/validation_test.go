package validation

import (
	"testing"

	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStruct_BillingInfo(t *testing.T) {
	tests := []struct {
		name       string
		info       domain.BillingInfo
		wantFields []string
	}{
		{
			name: "valid",
			info: domain.BillingInfo{Phone: "+15551234567", Address: "1 Main St", Communication: domain.CommunicationEmail},
		},
		{
			name:       "missing required fields",
			info:       domain.BillingInfo{},
			wantFields: []string{"phone", "address", "communication"},
		},
		{
			name:       "unknown channel",
			info:       domain.BillingInfo{Phone: "+15551234567", Address: "1 Main St", Communication: "Fax"},
			wantFields: []string{"communication"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct("checkout.details", tt.info)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			fields := domain.GetValidationFields(err)
			require.NotNil(t, fields)
			assert.Len(t, fields, len(tt.wantFields))
			for _, f := range tt.wantFields {
				assert.Contains(t, fields, f)
			}
		})
	}
}

func TestStruct_OrderSubmissionNestedPaths(t *testing.T) {
	sub := domain.OrderSubmission{
		UserID:        "u-1",
		Total:         decimal.NewFromInt(10),
		PaymentMethod: domain.PaymentMethodPayPal,
		PaymentStatus: domain.PaymentStatusPendingConfirmation,
		Status:        domain.OrderStatusProcessing,
		Billing:       domain.BillingInfo{Phone: "+15551234567", Address: "1 Main St", Communication: domain.CommunicationWhatsApp},
		CartItems:     []domain.OrderItem{{Quantity: 0, ServiceID: "plus", Plan: domain.PlanOneTime}},
		Customer:      domain.Customer{Email: "not-an-email"},
	}

	fields := domain.GetValidationFields(Struct("orders.create", sub))
	require.NotNil(t, fields)
	assert.Equal(t, "must be at least 1", fields["cartItems[0].quantity"])
	assert.Equal(t, "must be a valid email address", fields["customer.email"])
}
