// internal/gateways/stripe_test.go
package gateways

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v74"

	"github.com/storelink/pos-backend/internal/models"
	"github.com/storelink/pos-backend/internal/reconcile"
)

func stripeEvent(t *testing.T, eventType, resource string) stripe.Event {
	t.Helper()
	return stripe.Event{
		ID:      "evt_test_1",
		Type:    eventType,
		Created: 1756700000,
		Data:    &stripe.EventData{Raw: json.RawMessage(resource)},
	}
}

func TestMapStripeEventCaptured(t *testing.T) {
	evt := stripeEvent(t, "payment_intent.succeeded", `{
		"id": "pi_123",
		"amount": 5000,
		"currency": "usd",
		"metadata": {"transaction_id": "a3c7e9e2-0000-4000-8000-000000000001"},
		"latest_charge": {"id": "ch_987"}
	}`)

	ev, err := mapStripeEvent(evt)
	require.NoError(t, err)

	assert.Equal(t, models.GatewayStripe, ev.Gateway)
	assert.Equal(t, reconcile.EventCaptured, ev.Kind)
	assert.Equal(t, "evt_test_1", ev.EventID)
	assert.Equal(t, "pi_123", ev.OrderID)
	assert.Equal(t, "ch_987", ev.CaptureID)
	assert.Equal(t, "a3c7e9e2-0000-4000-8000-000000000001", ev.TransactionID)
	assert.InDelta(t, 50.00, ev.Amount, 0.0001)
	assert.Equal(t, "usd", ev.Currency)
}

func TestMapStripeEventAuthorized(t *testing.T) {
	evt := stripeEvent(t, "payment_intent.amount_capturable_updated", `{
		"id": "pi_456",
		"amount": 1250,
		"currency": "usd"
	}`)

	ev, err := mapStripeEvent(evt)
	require.NoError(t, err)

	assert.Equal(t, reconcile.EventAuthorized, ev.Kind)
	assert.Equal(t, "pi_456", ev.OrderID)
	assert.InDelta(t, 12.50, ev.Amount, 0.0001)
}

func TestMapStripeEventFailedCarriesReason(t *testing.T) {
	evt := stripeEvent(t, "payment_intent.payment_failed", `{
		"id": "pi_789",
		"amount": 2000,
		"currency": "usd",
		"last_payment_error": {"message": "Your card was declined."}
	}`)

	ev, err := mapStripeEvent(evt)
	require.NoError(t, err)

	assert.Equal(t, reconcile.EventFailed, ev.Kind)
	assert.Equal(t, "Your card was declined.", ev.Reason)
}

func TestMapStripeEventRefundUsesLatestRefundDelta(t *testing.T) {
	evt := stripeEvent(t, "charge.refunded", `{
		"id": "ch_555",
		"currency": "usd",
		"amount_refunded": 10000,
		"payment_intent": {"id": "pi_555"},
		"refunds": {"data": [{"id": "re_2", "amount": 3000}, {"id": "re_1", "amount": 7000}]}
	}`)

	ev, err := mapStripeEvent(evt)
	require.NoError(t, err)

	assert.Equal(t, reconcile.EventRefunded, ev.Kind)
	assert.Equal(t, "ch_555", ev.CaptureID)
	assert.Equal(t, "pi_555", ev.OrderID)
	assert.Equal(t, "re_2", ev.RefundID)
	// The newest refund's amount is the delta, not the cumulative total.
	assert.InDelta(t, 30.00, ev.Amount, 0.0001)
}

func TestMapStripeEventUnknownTypeIgnored(t *testing.T) {
	evt := stripeEvent(t, "customer.created", `{"id": "cus_1"}`)

	ev, err := mapStripeEvent(evt)
	require.NoError(t, err)

	assert.Equal(t, reconcile.EventIgnored, ev.Kind)
}

func TestCentsRoundTrip(t *testing.T) {
	assert.Equal(t, int64(1999), toCents(19.99))
	assert.Equal(t, int64(100), toCents(1.0))
	assert.InDelta(t, 19.99, fromCents(1999), 0.0001)
}
