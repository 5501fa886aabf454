// internal/gateways/braintree.go
package gateways

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	braintree "github.com/braintree-go/braintree-go"

	"github.com/storelink/pos-backend/internal/config"
	"github.com/storelink/pos-backend/internal/models"
	"github.com/storelink/pos-backend/internal/reconcile"
)

type BraintreeClient struct {
	bt *braintree.Braintree
}

func NewBraintreeClient(cfg config.BraintreeConfig) *BraintreeClient {
	env := braintree.Sandbox
	if cfg.Environment == "production" {
		env = braintree.Production
	}

	bt := braintree.NewWithHttpClient(
		env,
		cfg.MerchantID,
		cfg.PublicKey,
		cfg.PrivateKey,
		&http.Client{Timeout: callTimeout},
	)

	return &BraintreeClient{bt: bt}
}

func (c *BraintreeClient) Name() models.PaymentGateway {
	return models.GatewayBraintree
}

// CreateOrder authorizes a sale without settling it. Braintree has no
// separate order object; the authorized transaction id plays that role.
func (c *BraintreeClient) CreateOrder(ctx context.Context, txn *models.Transaction) (*OrderResult, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	nonce, _ := txn.Metadata["payment_method_nonce"].(string)
	bt, err := c.bt.Transaction().Create(ctx, &braintree.TransactionRequest{
		Type:               "sale",
		Amount:             toDecimal(txn.Amount),
		OrderId:            txn.ID.String(),
		PaymentMethodNonce: nonce,
		Options: &braintree.TransactionOptions{
			SubmitForSettlement: false,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("braintree authorize: %w", err)
	}

	return &OrderResult{OrderID: bt.Id}, nil
}

func (c *BraintreeClient) Capture(ctx context.Context, txn *models.Transaction) (*reconcile.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	bt, err := c.bt.Transaction().SubmitForSettlement(ctx, txn.GatewayOrderID)
	if err != nil {
		return nil, fmt.Errorf("braintree submit for settlement: %w", err)
	}

	return &reconcile.Event{
		Gateway:       models.GatewayBraintree,
		Kind:          reconcile.EventCaptured,
		OrderID:       txn.GatewayOrderID,
		CaptureID:     bt.Id,
		TransactionID: txn.ID.String(),
		Amount:        decimalToFloat(bt.Amount),
		Currency:      txn.Currency,
		OccurredAt:    time.Now().UTC(),
	}, nil
}

func (c *BraintreeClient) Refund(ctx context.Context, txn *models.Transaction, amount float64, reason string) (*reconcile.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	bt, err := c.bt.Transaction().Refund(ctx, txn.GatewayCaptureID, toDecimal(amount))
	if err != nil {
		return nil, fmt.Errorf("braintree refund: %w", err)
	}

	return &reconcile.Event{
		Gateway:    models.GatewayBraintree,
		Kind:       reconcile.EventRefunded,
		OrderID:    txn.GatewayOrderID,
		CaptureID:  txn.GatewayCaptureID,
		RefundID:   bt.Id,
		Amount:     amount,
		Currency:   txn.Currency,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}, nil
}

func (c *BraintreeClient) Cancel(ctx context.Context, txn *models.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if _, err := c.bt.Transaction().Void(ctx, txn.GatewayOrderID); err != nil {
		return fmt.Errorf("braintree void: %w", err)
	}
	return nil
}

// VerifyWebhook parses Braintree's form-encoded webhook. The SDK verifies the
// bt_signature challenge against the payload bytes.
func (c *BraintreeClient) VerifyWebhook(_ context.Context, _ *http.Request, rawBody []byte) (*reconcile.Event, error) {
	form, err := url.ParseQuery(string(rawBody))
	if err != nil {
		return nil, fmt.Errorf("parse braintree webhook form: %w", err)
	}

	notification, err := c.bt.WebhookNotification().Parse(form.Get("bt_signature"), form.Get("bt_payload"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	return mapBraintreeNotification(notification), nil
}

func mapBraintreeNotification(n *braintree.WebhookNotification) *reconcile.Event {
	out := &reconcile.Event{
		Gateway:    models.GatewayBraintree,
		Kind:       reconcile.EventIgnored,
		OccurredAt: n.Timestamp,
	}

	bt := n.Subject.Transaction
	if bt == nil {
		return out
	}

	out.EventID = fmt.Sprintf("%s:%s", n.Kind, bt.Id)
	out.CaptureID = bt.Id
	out.OrderID = bt.OrderId
	out.ReferenceID = bt.OrderId
	out.Amount = decimalToFloat(bt.Amount)

	switch n.Kind {
	case braintree.TransactionSettledWebhook:
		out.Kind = reconcile.EventCaptured
	case braintree.TransactionSettlementDeclinedWebhook:
		out.Kind = reconcile.EventFailed
		out.Reason = "settlement declined"
	}

	return out
}

func toDecimal(amount float64) *braintree.Decimal {
	return braintree.NewDecimal(toCents(amount), 2)
}

func decimalToFloat(d *braintree.Decimal) float64 {
	if d == nil {
		return 0
	}
	scale := 1.0
	for i := 0; i < d.Scale; i++ {
		scale *= 10
	}
	return float64(d.Unscaled) / scale
}
