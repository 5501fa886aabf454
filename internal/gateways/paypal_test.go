// internal/gateways/paypal_test.go
package gateways

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storelink/pos-backend/internal/models"
	"github.com/storelink/pos-backend/internal/reconcile"
)

func TestMapPayPalOrderApproved(t *testing.T) {
	body := []byte(`{
		"id": "WH-1",
		"event_type": "CHECKOUT.ORDER.APPROVED",
		"create_time": "2026-08-30T12:00:00Z",
		"resource": {
			"id": "5O190127TN364715T",
			"status": "APPROVED",
			"purchase_units": [{"reference_id": "default", "custom_id": "ref-pos-42"}]
		}
	}`)

	ev, err := mapPayPalEvent(body)
	require.NoError(t, err)

	assert.Equal(t, models.GatewayPayPal, ev.Gateway)
	assert.Equal(t, reconcile.EventAuthorized, ev.Kind)
	assert.Equal(t, "WH-1", ev.EventID)
	assert.Equal(t, "5O190127TN364715T", ev.OrderID)
	assert.Equal(t, "ref-pos-42", ev.ReferenceID)
}

func TestMapPayPalCaptureCompleted(t *testing.T) {
	body := []byte(`{
		"id": "WH-2",
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"create_time": "2026-08-30T12:05:00Z",
		"resource": {
			"id": "3C679366HH908993F",
			"status": "COMPLETED",
			"custom_id": "ref-pos-42",
			"amount": {"currency_code": "USD", "value": "49.99"},
			"seller_receivable_breakdown": {"paypal_fee": {"currency_code": "USD", "value": "1.75"}},
			"supplementary_data": {"related_ids": {"order_id": "5O190127TN364715T"}}
		}
	}`)

	ev, err := mapPayPalEvent(body)
	require.NoError(t, err)

	assert.Equal(t, reconcile.EventCaptured, ev.Kind)
	assert.Equal(t, "3C679366HH908993F", ev.CaptureID)
	assert.Equal(t, "5O190127TN364715T", ev.OrderID)
	assert.Equal(t, "ref-pos-42", ev.ReferenceID)
	assert.InDelta(t, 49.99, ev.Amount, 0.0001)
	assert.Equal(t, "USD", ev.Currency)
	assert.InDelta(t, 1.75, ev.Fee, 0.0001)
}

func TestMapPayPalCaptureDenied(t *testing.T) {
	body := []byte(`{
		"id": "WH-3",
		"event_type": "PAYMENT.CAPTURE.DENIED",
		"create_time": "2026-08-30T12:06:00Z",
		"resource": {
			"id": "7NW873794T343360M",
			"status": "DECLINED",
			"custom_id": "ref-pos-42",
			"amount": {"currency_code": "USD", "value": "49.99"}
		}
	}`)

	ev, err := mapPayPalEvent(body)
	require.NoError(t, err)

	assert.Equal(t, reconcile.EventFailed, ev.Kind)
	assert.Equal(t, "7NW873794T343360M", ev.CaptureID)
	assert.Contains(t, ev.Reason, "DECLINED")
}

func TestMapPayPalRefundResolvesCaptureFromLink(t *testing.T) {
	body := []byte(`{
		"id": "WH-4",
		"event_type": "PAYMENT.CAPTURE.REFUNDED",
		"create_time": "2026-08-30T13:00:00Z",
		"resource": {
			"id": "1JU08902781691411",
			"status": "COMPLETED",
			"custom_id": "ref-pos-42",
			"amount": {"currency_code": "USD", "value": "10.00"},
			"links": [
				{"href": "https://api.paypal.com/v2/payments/refunds/1JU08902781691411", "rel": "self"},
				{"href": "https://api.paypal.com/v2/payments/captures/3C679366HH908993F", "rel": "up"}
			]
		}
	}`)

	ev, err := mapPayPalEvent(body)
	require.NoError(t, err)

	assert.Equal(t, reconcile.EventRefunded, ev.Kind)
	assert.Equal(t, "1JU08902781691411", ev.RefundID)
	assert.Equal(t, "3C679366HH908993F", ev.CaptureID)
	assert.InDelta(t, 10.00, ev.Amount, 0.0001)
}

func TestMapPayPalUnknownEventIgnored(t *testing.T) {
	body := []byte(`{
		"id": "WH-5",
		"event_type": "BILLING.SUBSCRIPTION.CREATED",
		"create_time": "2026-08-30T14:00:00Z",
		"resource": {"id": "I-BW452GLLEP1G"}
	}`)

	ev, err := mapPayPalEvent(body)
	require.NoError(t, err)

	assert.Equal(t, reconcile.EventIgnored, ev.Kind)
	assert.Equal(t, "WH-5", ev.EventID)
}

func TestMapPayPalMalformedBody(t *testing.T) {
	_, err := mapPayPalEvent([]byte(`{"id": `))
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	assert.InDelta(t, 49.99, parseAmount("49.99"), 0.0001)
	assert.Zero(t, parseAmount("not-a-number"))
}
