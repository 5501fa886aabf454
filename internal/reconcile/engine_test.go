// internal/reconcile/engine_test.go
package reconcile

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storelink/pos-backend/internal/models"
)

func newTestEngine() (*Engine, *memStore) {
	store := newMemStore()
	return NewEngine(store), store
}

func pendingRequest(gateway models.PaymentGateway, amount float64) CreateRequest {
	return CreateRequest{
		StoreID:       uuid.New(),
		Gateway:       gateway,
		PaymentMethod: "card",
		Amount:        amount,
		Currency:      "USD",
	}
}

func TestCreatePending(t *testing.T) {
	engine, store := newTestEngine()
	ctx := context.Background()

	txn, err := engine.CreatePending(ctx, pendingRequest(models.GatewayStripe, 50))
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusPending, txn.Status)
	assert.NotEqual(t, uuid.Nil, txn.ID)
	assert.Equal(t, txn.ID.String(), txn.ReferenceID)
	assert.Equal(t, models.TransactionTypePayment, txn.TransactionType)
	assert.Nil(t, txn.ProcessedAt)

	// The record exists before any gateway call could have happened.
	stored, err := store.FindByID(ctx, txn.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.TransactionStatusPending, stored.Status)
}

func TestCreatePendingRejectsInvalidInput(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	cases := []struct {
		name string
		req  CreateRequest
	}{
		{"zero amount", CreateRequest{StoreID: uuid.New(), Gateway: models.GatewayStripe, Amount: 0}},
		{"negative amount", CreateRequest{StoreID: uuid.New(), Gateway: models.GatewayStripe, Amount: -5}},
		{"unknown gateway", CreateRequest{StoreID: uuid.New(), Gateway: "venmo", Amount: 10}},
		{"bad currency", CreateRequest{StoreID: uuid.New(), Gateway: models.GatewayStripe, Amount: 10, Currency: "DOLLARS"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.CreatePending(ctx, tc.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestCreateCashCompletesImmediately(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	req := pendingRequest(models.GatewayCash, 25)
	req.PaymentMethod = "cash"
	txn, err := engine.CreatePending(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)
	assert.NotNil(t, txn.ProcessedAt)
	assert.InDelta(t, 25, txn.NetAmount, amountEpsilon)
}

func TestCaptureEndToEnd(t *testing.T) {
	engine, store := newTestEngine()
	ctx := context.Background()

	txn, err := engine.CreatePending(ctx, pendingRequest(models.GatewayStripe, 50))
	require.NoError(t, err)

	txn, err = engine.ApplyTransition(ctx, txn, models.TransactionStatusProcessing, Event{
		Gateway: models.GatewayStripe,
		Kind:    EventAuthorized,
		OrderID: "pi_123",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusProcessing, txn.Status)
	assert.Equal(t, "pi_123", txn.GatewayOrderID)

	txn, err = engine.ApplyTransition(ctx, txn, models.TransactionStatusCompleted, Event{
		Gateway:   models.GatewayStripe,
		Kind:      EventCaptured,
		CaptureID: "ch_456",
		Fee:       1.75,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, "ch_456", txn.GatewayCaptureID)
	assert.InDelta(t, 48.25, txn.NetAmount, amountEpsilon)
	require.NotNil(t, txn.ProcessedAt)

	// The same capture webhook delivered again changes nothing.
	again, err := engine.ApplyTransition(ctx, txn, models.TransactionStatusCompleted, Event{
		Gateway:   models.GatewayStripe,
		Kind:      EventCaptured,
		EventID:   "evt_1",
		CaptureID: "ch_456",
		Fee:       1.75,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, again.Status)
	assert.InDelta(t, 48.25, again.NetAmount, amountEpsilon)
	assert.Equal(t, 1, store.count(models.TransactionTypePayment))
	assert.Equal(t, 0, store.count(models.TransactionTypeRefund))
}

func TestOutOfOrderCaptureOnPending(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	txn, err := engine.CreatePending(ctx, pendingRequest(models.GatewayBraintree, 30))
	require.NoError(t, err)

	// Capture webhook arrives before the authorization was ever observed.
	txn, err = engine.ApplyTransition(ctx, txn, models.TransactionStatusCompleted, Event{
		Gateway:   models.GatewayBraintree,
		Kind:      EventCaptured,
		CaptureID: "bt_1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)
}

func TestStaleAuthorizationIgnoredAfterCompletion(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	txn, err := engine.CreatePending(ctx, pendingRequest(models.GatewayStripe, 10))
	require.NoError(t, err)
	txn, err = engine.ApplyTransition(ctx, txn, models.TransactionStatusCompleted, Event{
		Kind: EventCaptured, Gateway: models.GatewayStripe, CaptureID: "ch_1",
	})
	require.NoError(t, err)

	// The authorization webhook shows up late; the status never moves back.
	txn, err = engine.ApplyTransition(ctx, txn, models.TransactionStatusProcessing, Event{
		Kind: EventAuthorized, Gateway: models.GatewayStripe, EventID: "evt_late",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)
}

func TestIllegalTransitionRecordedNotForced(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	txn, err := engine.CreatePending(ctx, pendingRequest(models.GatewayPayPal, 20))
	require.NoError(t, err)
	txn, err = engine.Cancel(ctx, txn, "customer abandoned checkout")
	require.NoError(t, err)
	require.Equal(t, models.TransactionStatusCancelled, txn.Status)

	notesBefore := len(txn.Notes)
	txn, err = engine.ApplyTransition(ctx, txn, models.TransactionStatusCompleted, Event{
		Gateway:   models.GatewayPayPal,
		Kind:      EventCaptured,
		EventID:   "WH-1",
		CaptureID: "CAP-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCancelled, txn.Status)
	assert.Greater(t, len(txn.Notes), notesBefore, "evidence must be recorded, never silently dropped")
}

func TestCancelSemantics(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	txn, err := engine.CreatePending(ctx, pendingRequest(models.GatewayStripe, 15))
	require.NoError(t, err)

	txn, err = engine.Cancel(ctx, txn, "")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCancelled, txn.Status)

	// Repeat cancel is idempotent.
	txn, err = engine.Cancel(ctx, txn, "")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCancelled, txn.Status)

	// Cancelling a completed transaction is a hard error, distinct from not
	// found.
	done, err := engine.CreatePending(ctx, pendingRequest(models.GatewayCash, 5))
	require.NoError(t, err)
	_, err = engine.Cancel(ctx, done, "too late")
	assert.ErrorIs(t, err, ErrTerminalState)
}

func TestRefundLedgerIntegrity(t *testing.T) {
	engine, store := newTestEngine()
	ctx := context.Background()
	saleID := uuid.New()

	req := pendingRequest(models.GatewayStripe, 100)
	req.SaleID = &saleID
	txn, err := engine.CreatePending(ctx, req)
	require.NoError(t, err)
	txn, err = engine.ApplyTransition(ctx, txn, models.TransactionStatusCompleted, Event{
		Kind: EventCaptured, Gateway: models.GatewayStripe, CaptureID: "ch_100",
	})
	require.NoError(t, err)

	txn, err = engine.ApplyTransition(ctx, txn, models.TransactionStatusRefunded, Event{
		Kind:     EventRefunded,
		Gateway:  models.GatewayStripe,
		EventID:  "evt_r1",
		RefundID: "re_1",
		Amount:   30,
	})
	require.NoError(t, err)

	// Original amount untouched, status partial, exactly one refund record.
	assert.InDelta(t, 100, txn.Amount, amountEpsilon)
	assert.Equal(t, models.TransactionStatusPartiallyRefunded, txn.Status)
	assert.InDelta(t, 30, txn.RefundedAmount, amountEpsilon)
	require.Equal(t, 1, store.count(models.TransactionTypeRefund))

	refund, err := store.FindRefundForCapture(ctx, "ch_100", "re_1")
	require.NoError(t, err)
	require.NotNil(t, refund)
	assert.InDelta(t, 30, refund.Amount, amountEpsilon)
	require.NotNil(t, refund.SaleID)
	assert.Equal(t, saleID, *refund.SaleID)
	require.NotNil(t, refund.ParentTransactionID)
	assert.Equal(t, txn.ID, *refund.ParentTransactionID)

	// Refunding the remainder closes the ledger.
	txn, err = engine.ApplyTransition(ctx, txn, models.TransactionStatusRefunded, Event{
		Kind:     EventRefunded,
		Gateway:  models.GatewayStripe,
		EventID:  "evt_r2",
		RefundID: "re_2",
		Amount:   70,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusRefunded, txn.Status)
	assert.InDelta(t, 100, txn.RefundedAmount, amountEpsilon)
	assert.InDelta(t, 100, txn.Amount, amountEpsilon)
	assert.Equal(t, 2, store.count(models.TransactionTypeRefund))
}

func TestDuplicateRefundWebhookCreatesNoSecondRefund(t *testing.T) {
	engine, store := newTestEngine()
	ctx := context.Background()

	txn, err := engine.CreatePending(ctx, pendingRequest(models.GatewayPayPal, 40))
	require.NoError(t, err)
	txn, err = engine.ApplyTransition(ctx, txn, models.TransactionStatusCompleted, Event{
		Kind: EventCaptured, Gateway: models.GatewayPayPal, CaptureID: "CAP-9",
	})
	require.NoError(t, err)

	refundEvent := Event{
		Kind:     EventRefunded,
		Gateway:  models.GatewayPayPal,
		EventID:  "WH-R",
		RefundID: "REF-9",
		Amount:   40,
	}

	txn, err = engine.ApplyTransition(ctx, txn, models.TransactionStatusRefunded, refundEvent)
	require.NoError(t, err)
	first := txn.Status

	txn, err = engine.ApplyTransition(ctx, txn, models.TransactionStatusRefunded, refundEvent)
	require.NoError(t, err)

	assert.Equal(t, first, txn.Status)
	assert.Equal(t, models.TransactionStatusRefunded, txn.Status)
	assert.Equal(t, 1, store.count(models.TransactionTypeRefund))
	assert.InDelta(t, 40, txn.RefundedAmount, amountEpsilon)
}

func TestCorrelationPrecedence(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	byOrder, err := engine.CreatePending(ctx, pendingRequest(models.GatewayStripe, 10))
	require.NoError(t, err)
	byOrder.GatewayOrderID = "ord_shared"
	require.NoError(t, engine.store.Save(ctx, byOrder))

	byCapture, err := engine.CreatePending(ctx, pendingRequest(models.GatewayStripe, 20))
	require.NoError(t, err)
	byCapture.GatewayCaptureID = "ch_specific"
	require.NoError(t, engine.store.Save(ctx, byCapture))

	// Adversarial event carrying both identifiers: the capture id wins
	// because it identifies exactly one settlement attempt.
	matched, err := engine.Correlate(ctx, Event{
		Gateway:   models.GatewayStripe,
		CaptureID: "ch_specific",
		OrderID:   "ord_shared",
	})
	require.NoError(t, err)
	assert.Equal(t, byCapture.ID, matched.ID)
}

func TestCorrelationByInternalReference(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	txn, err := engine.CreatePending(ctx, pendingRequest(models.GatewayBraintree, 12))
	require.NoError(t, err)

	matched, err := engine.Correlate(ctx, Event{ReferenceID: txn.ReferenceID})
	require.NoError(t, err)
	assert.Equal(t, txn.ID, matched.ID)

	matched, err = engine.Correlate(ctx, Event{TransactionID: txn.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, txn.ID, matched.ID)
}

func TestCorrelationMiss(t *testing.T) {
	engine, _ := newTestEngine()

	_, err := engine.Correlate(context.Background(), Event{
		Gateway:   models.GatewayStripe,
		CaptureID: "ch_ghost",
		OrderID:   "ord_ghost",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAbandonedCheckoutScenario(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	txn, err := engine.CreatePending(ctx, pendingRequest(models.GatewayPayPal, 20))
	require.NoError(t, err)
	txn.GatewayOrderID = "ORDER-77"
	require.NoError(t, engine.store.Save(ctx, txn))

	// Customer abandons checkout; the cancel webhook lands.
	cancelled, err := engine.Correlate(ctx, Event{Gateway: models.GatewayPayPal, OrderID: "ORDER-77"})
	require.NoError(t, err)
	cancelled, err = engine.ApplyTransition(ctx, cancelled, models.TransactionStatusCancelled, Event{
		Kind: EventCancelled, Gateway: models.GatewayPayPal, EventID: "WH-C", OrderID: "ORDER-77",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCancelled, cancelled.Status)

	// A later capture webhook for the same order id no longer correlates to
	// the cancelled record.
	_, err = engine.Correlate(ctx, Event{
		Gateway:   models.GatewayPayPal,
		OrderID:   "ORDER-77",
		CaptureID: "CAP-NEW",
	})
	assert.ErrorIs(t, err, ErrNotFound)

	// Unless a different transaction has since claimed that order id.
	second, err := engine.CreatePending(ctx, pendingRequest(models.GatewayPayPal, 20))
	require.NoError(t, err)
	second.GatewayOrderID = "ORDER-77"
	require.NoError(t, engine.store.Save(ctx, second))

	matched, err := engine.Correlate(ctx, Event{
		Gateway:   models.GatewayPayPal,
		OrderID:   "ORDER-77",
		CaptureID: "CAP-NEW",
	})
	require.NoError(t, err)
	assert.Equal(t, second.ID, matched.ID)
}

func TestNetAmountRecomputationWins(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	txn, err := engine.CreatePending(ctx, pendingRequest(models.GatewayStripe, 50))
	require.NoError(t, err)

	// Simulate a stored net amount that disagrees with amount - fee.
	txn.NetAmount = 10
	require.NoError(t, engine.store.Save(ctx, txn))

	txn, err = engine.ApplyTransition(ctx, txn, models.TransactionStatusCompleted, Event{
		Kind: EventCaptured, Gateway: models.GatewayStripe, CaptureID: "ch_x", Fee: 1.75,
	})
	require.NoError(t, err)
	assert.InDelta(t, 48.25, txn.NetAmount, amountEpsilon)
}

func TestRefundOnNonCompletedIsRecordedNoOp(t *testing.T) {
	engine, store := newTestEngine()
	ctx := context.Background()

	txn, err := engine.CreatePending(ctx, pendingRequest(models.GatewayStripe, 60))
	require.NoError(t, err)

	txn, err = engine.ApplyTransition(ctx, txn, models.TransactionStatusRefunded, Event{
		Kind: EventRefunded, Gateway: models.GatewayStripe, EventID: "evt_bad", Amount: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, txn.Status)
	assert.Equal(t, 0, store.count(models.TransactionTypeRefund))
	assert.NotEmpty(t, txn.Notes)
}

func TestMarkFailedAppendsReason(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	txn, err := engine.CreatePending(ctx, pendingRequest(models.GatewayStripe, 9))
	require.NoError(t, err)

	txn, err = engine.MarkFailed(ctx, txn, "card_declined: insufficient funds")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, txn.Status)

	found := false
	for _, note := range txn.Notes {
		if note.Message == "card_declined: insufficient funds" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRedeliveryStormDoesNotGrowNotes(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	txn, err := engine.CreatePending(ctx, pendingRequest(models.GatewayStripe, 25))
	require.NoError(t, err)
	txn, err = engine.ApplyTransition(ctx, txn, models.TransactionStatusCompleted, Event{
		Kind: EventCaptured, Gateway: models.GatewayStripe, CaptureID: "ch_1",
	})
	require.NoError(t, err)

	duplicate := Event{
		Kind:      EventCaptured,
		Gateway:   models.GatewayStripe,
		EventID:   "evt_storm",
		CaptureID: "ch_1",
	}
	txn, err = engine.ApplyTransition(ctx, txn, models.TransactionStatusCompleted, duplicate)
	require.NoError(t, err)
	noted := len(txn.Notes)

	// The same delivery retried over and over is recorded once.
	for i := 0; i < 10; i++ {
		txn, err = engine.ApplyTransition(ctx, txn, models.TransactionStatusCompleted, duplicate)
		require.NoError(t, err)
	}
	assert.Equal(t, noted, len(txn.Notes))

	// A different event id is new evidence and still lands.
	txn, err = engine.ApplyTransition(ctx, txn, models.TransactionStatusCompleted, Event{
		Kind: EventCaptured, Gateway: models.GatewayStripe, EventID: "evt_other", CaptureID: "ch_1",
	})
	require.NoError(t, err)
	assert.Equal(t, noted+1, len(txn.Notes))
}
