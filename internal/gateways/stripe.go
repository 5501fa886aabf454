// internal/gateways/stripe.go
package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/refund"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/storelink/pos-backend/internal/config"
	"github.com/storelink/pos-backend/internal/models"
	"github.com/storelink/pos-backend/internal/reconcile"
)

type StripeClient struct {
	webhookSecret string
}

func NewStripeClient(cfg config.StripeConfig) *StripeClient {
	stripe.Key = cfg.SecretKey
	stripe.SetHTTPClient(&http.Client{Timeout: callTimeout})

	return &StripeClient{
		webhookSecret: cfg.WebhookSecret,
	}
}

func (c *StripeClient) Name() models.PaymentGateway {
	return models.GatewayStripe
}

func (c *StripeClient) CreateOrder(ctx context.Context, txn *models.Transaction) (*OrderResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toCents(txn.Amount)),
		Currency:      stripe.String(txn.Currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.Context = ctx
	params.AddMetadata("transaction_id", txn.ID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create intent: %w", err)
	}

	return &OrderResult{
		OrderID:      pi.ID,
		ClientSecret: pi.ClientSecret,
	}, nil
}

func (c *StripeClient) Capture(ctx context.Context, txn *models.Transaction) (*reconcile.Event, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.AddExpand("latest_charge.balance_transaction")

	pi, err := paymentintent.Capture(txn.GatewayOrderID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe capture: %w", err)
	}

	ev := &reconcile.Event{
		Gateway:       models.GatewayStripe,
		Kind:          reconcile.EventCaptured,
		OrderID:       pi.ID,
		TransactionID: pi.Metadata["transaction_id"],
		Amount:        fromCents(pi.Amount),
		Currency:      string(pi.Currency),
		OccurredAt:    time.Now().UTC(),
	}
	if pi.LatestCharge != nil {
		ev.CaptureID = pi.LatestCharge.ID
		if pi.LatestCharge.BalanceTransaction != nil {
			ev.Fee = fromCents(pi.LatestCharge.BalanceTransaction.Fee)
		}
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		ev.Kind = reconcile.EventFailed
		ev.Reason = fmt.Sprintf("capture ended in status %s", pi.Status)
	}
	return ev, nil
}

func (c *StripeClient) Refund(ctx context.Context, txn *models.Transaction, amount float64, reason string) (*reconcile.Event, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(txn.GatewayOrderID),
		Amount:        stripe.Int64(toCents(amount)),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx

	r, err := refund.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe refund: %w", err)
	}

	return &reconcile.Event{
		Gateway:    models.GatewayStripe,
		Kind:       reconcile.EventRefunded,
		OrderID:    txn.GatewayOrderID,
		CaptureID:  txn.GatewayCaptureID,
		RefundID:   r.ID,
		Amount:     fromCents(r.Amount),
		Currency:   string(r.Currency),
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}, nil
}

func (c *StripeClient) Cancel(ctx context.Context, txn *models.Transaction) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := paymentintent.Cancel(txn.GatewayOrderID, params); err != nil {
		return fmt.Errorf("stripe cancel intent: %w", err)
	}
	return nil
}

// VerifyWebhook checks the Stripe-Signature header against the raw request
// bytes. Verification happens before any JSON parsing.
func (c *StripeClient) VerifyWebhook(_ context.Context, req *http.Request, rawBody []byte) (*reconcile.Event, error) {
	evt, err := webhook.ConstructEvent(rawBody, req.Header.Get("Stripe-Signature"), c.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return mapStripeEvent(evt)
}

func mapStripeEvent(evt stripe.Event) (*reconcile.Event, error) {
	out := &reconcile.Event{
		Gateway:    models.GatewayStripe,
		Kind:       reconcile.EventIgnored,
		EventID:    evt.ID,
		OccurredAt: time.Unix(evt.Created, 0).UTC(),
	}
	var raw models.JSONB
	if err := json.Unmarshal(evt.Data.Raw, &raw); err == nil {
		out.Raw = raw
	}

	switch evt.Type {
	case "payment_intent.processing", "payment_intent.amount_capturable_updated",
		"payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("parse stripe payment intent: %w", err)
		}
		out.OrderID = pi.ID
		out.TransactionID = pi.Metadata["transaction_id"]
		out.Amount = fromCents(pi.Amount)
		out.Currency = string(pi.Currency)
		if pi.LatestCharge != nil {
			out.CaptureID = pi.LatestCharge.ID
		}

		switch evt.Type {
		case "payment_intent.processing", "payment_intent.amount_capturable_updated":
			out.Kind = reconcile.EventAuthorized
		case "payment_intent.succeeded":
			out.Kind = reconcile.EventCaptured
		case "payment_intent.payment_failed":
			out.Kind = reconcile.EventFailed
			if pi.LastPaymentError != nil {
				out.Reason = pi.LastPaymentError.Msg
			}
		case "payment_intent.canceled":
			out.Kind = reconcile.EventCancelled
			out.Reason = string(pi.CancellationReason)
		}

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(evt.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("parse stripe charge: %w", err)
		}
		out.Kind = reconcile.EventRefunded
		out.CaptureID = ch.ID
		if ch.PaymentIntent != nil {
			out.OrderID = ch.PaymentIntent.ID
		}
		out.Currency = string(ch.Currency)
		out.Amount = fromCents(ch.AmountRefunded)
		if ch.Refunds != nil && len(ch.Refunds.Data) > 0 {
			// Most recent refund first; its amount is the delta for this
			// delivery, amount_refunded is cumulative.
			latest := ch.Refunds.Data[0]
			out.RefundID = latest.ID
			out.Amount = fromCents(latest.Amount)
		}
	}

	return out, nil
}

func toCents(amount float64) int64 {
	return int64(amount*100 + 0.5)
}

func fromCents(cents int64) float64 {
	return float64(cents) / 100
}
