// internal/gateways/paypal.go
package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"

	"github.com/storelink/pos-backend/internal/config"
	"github.com/storelink/pos-backend/internal/models"
	"github.com/storelink/pos-backend/internal/reconcile"
)

type PayPalClient struct {
	client    *paypal.Client
	webhookID string
}

func NewPayPalClient(cfg config.PayPalConfig) (*PayPalClient, error) {
	client, err := paypal.NewClient(cfg.ClientID, cfg.ClientSecret, cfg.APIBase)
	if err != nil {
		return nil, fmt.Errorf("paypal client: %w", err)
	}
	client.Client = &http.Client{Timeout: callTimeout}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if _, err := client.GetAccessToken(ctx); err != nil {
		// Tokens refresh on demand; startup without credentials is fine in
		// development.
		logrus.WithError(err).Warn("PayPal access token not available at startup")
	}

	return &PayPalClient{
		client:    client,
		webhookID: cfg.WebhookID,
	}, nil
}

func (c *PayPalClient) Name() models.PaymentGateway {
	return models.GatewayPayPal
}

func (c *PayPalClient) CreateOrder(ctx context.Context, txn *models.Transaction) (*OrderResult, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	units := []paypal.PurchaseUnitRequest{{
		ReferenceID: txn.ID.String(),
		CustomID:    txn.ID.String(),
		Amount: &paypal.PurchaseUnitAmount{
			Currency: txn.Currency,
			Value:    formatAmount(txn.Amount),
		},
	}}

	order, err := c.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("paypal create order: %w", err)
	}

	result := &OrderResult{OrderID: order.ID}
	for _, link := range order.Links {
		if link.Rel == "approve" {
			result.ApprovalURL = link.Href
		}
	}
	return result, nil
}

func (c *PayPalClient) Capture(ctx context.Context, txn *models.Transaction) (*reconcile.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := c.client.CaptureOrder(ctx, txn.GatewayOrderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return nil, fmt.Errorf("paypal capture order: %w", err)
	}

	ev := &reconcile.Event{
		Gateway:       models.GatewayPayPal,
		Kind:          reconcile.EventCaptured,
		OrderID:       resp.ID,
		TransactionID: txn.ID.String(),
		Currency:      txn.Currency,
		Amount:        txn.Amount,
		OccurredAt:    time.Now().UTC(),
	}
	for _, unit := range resp.PurchaseUnits {
		if unit.Payments == nil {
			continue
		}
		for _, capture := range unit.Payments.Captures {
			ev.CaptureID = capture.ID
			if capture.Amount != nil {
				ev.Amount = parseAmount(capture.Amount.Value)
				ev.Currency = capture.Amount.Currency
			}
		}
	}
	if resp.Status != "" && !strings.EqualFold(resp.Status, "COMPLETED") {
		ev.Kind = reconcile.EventFailed
		ev.Reason = fmt.Sprintf("capture ended in status %s", resp.Status)
	}
	return ev, nil
}

func (c *PayPalClient) Refund(ctx context.Context, txn *models.Transaction, amount float64, reason string) (*reconcile.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := c.client.RefundCapture(ctx, txn.GatewayCaptureID, paypal.RefundCaptureRequest{
		Amount: &paypal.Money{
			Currency: txn.Currency,
			Value:    formatAmount(amount),
		},
		NoteToPayer: reason,
	})
	if err != nil {
		return nil, fmt.Errorf("paypal refund capture: %w", err)
	}

	return &reconcile.Event{
		Gateway:    models.GatewayPayPal,
		Kind:       reconcile.EventRefunded,
		OrderID:    txn.GatewayOrderID,
		CaptureID:  txn.GatewayCaptureID,
		RefundID:   resp.ID,
		Amount:     amount,
		Currency:   txn.Currency,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// Cancel is a local no-op: PayPal orders that are never captured expire on
// their own, there is no void call in the orders API.
func (c *PayPalClient) Cancel(_ context.Context, _ *models.Transaction) error {
	return nil
}

func (c *PayPalClient) VerifyWebhook(ctx context.Context, req *http.Request, rawBody []byte) (*reconcile.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	// The SDK reads the request body during verification; restore it to the
	// exact bytes that were sent.
	req.Body = io.NopCloser(bytes.NewReader(rawBody))
	verify, err := c.client.VerifyWebhookSignature(ctx, req, c.webhookID)
	if err != nil {
		return nil, fmt.Errorf("paypal verify webhook: %w", err)
	}
	if verify.VerificationStatus != "SUCCESS" {
		return nil, ErrSignatureInvalid
	}

	return mapPayPalEvent(rawBody)
}

type paypalWebhookPayload struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	CreateTime time.Time       `json:"create_time"`
	Resource   json.RawMessage `json:"resource"`
}

type paypalMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalCaptureResource struct {
	ID       string       `json:"id"`
	Status   string       `json:"status"`
	CustomID string       `json:"custom_id"`
	Amount   *paypalMoney `json:"amount"`

	SellerReceivableBreakdown *struct {
		PayPalFee *paypalMoney `json:"paypal_fee"`
	} `json:"seller_receivable_breakdown"`

	SupplementaryData *struct {
		RelatedIDs *struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`

	Links []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

type paypalOrderResource struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		ReferenceID string `json:"reference_id"`
		CustomID    string `json:"custom_id"`
	} `json:"purchase_units"`
}

func mapPayPalEvent(rawBody []byte) (*reconcile.Event, error) {
	var payload paypalWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("parse paypal webhook: %w", err)
	}

	out := &reconcile.Event{
		Gateway:    models.GatewayPayPal,
		Kind:       reconcile.EventIgnored,
		EventID:    payload.ID,
		OccurredAt: payload.CreateTime,
	}
	var raw models.JSONB
	if err := json.Unmarshal(rawBody, &raw); err == nil {
		out.Raw = raw
	}

	switch payload.EventType {
	case "CHECKOUT.ORDER.APPROVED":
		var res paypalOrderResource
		if err := json.Unmarshal(payload.Resource, &res); err != nil {
			return nil, fmt.Errorf("parse paypal order resource: %w", err)
		}
		out.Kind = reconcile.EventAuthorized
		out.OrderID = res.ID
		for _, unit := range res.PurchaseUnits {
			if unit.CustomID != "" {
				out.ReferenceID = unit.CustomID
			} else if unit.ReferenceID != "" {
				out.ReferenceID = unit.ReferenceID
			}
		}

	case "CHECKOUT.ORDER.VOIDED":
		var res paypalOrderResource
		if err := json.Unmarshal(payload.Resource, &res); err != nil {
			return nil, fmt.Errorf("parse paypal order resource: %w", err)
		}
		out.Kind = reconcile.EventCancelled
		out.OrderID = res.ID
		out.Reason = "order voided"

	case "PAYMENT.CAPTURE.COMPLETED", "PAYMENT.CAPTURE.DENIED":
		var res paypalCaptureResource
		if err := json.Unmarshal(payload.Resource, &res); err != nil {
			return nil, fmt.Errorf("parse paypal capture resource: %w", err)
		}
		out.CaptureID = res.ID
		out.ReferenceID = res.CustomID
		if res.SupplementaryData != nil && res.SupplementaryData.RelatedIDs != nil {
			out.OrderID = res.SupplementaryData.RelatedIDs.OrderID
		}
		if res.Amount != nil {
			out.Amount = parseAmount(res.Amount.Value)
			out.Currency = res.Amount.CurrencyCode
		}
		if payload.EventType == "PAYMENT.CAPTURE.COMPLETED" {
			out.Kind = reconcile.EventCaptured
			if res.SellerReceivableBreakdown != nil && res.SellerReceivableBreakdown.PayPalFee != nil {
				out.Fee = parseAmount(res.SellerReceivableBreakdown.PayPalFee.Value)
			}
		} else {
			out.Kind = reconcile.EventFailed
			out.Reason = fmt.Sprintf("capture denied, status %s", res.Status)
		}

	case "PAYMENT.CAPTURE.REFUNDED":
		var res paypalCaptureResource
		if err := json.Unmarshal(payload.Resource, &res); err != nil {
			return nil, fmt.Errorf("parse paypal refund resource: %w", err)
		}
		out.Kind = reconcile.EventRefunded
		out.RefundID = res.ID
		out.ReferenceID = res.CustomID
		if res.Amount != nil {
			out.Amount = parseAmount(res.Amount.Value)
			out.Currency = res.Amount.CurrencyCode
		}
		// The capture the refund belongs to is linked with rel "up".
		for _, link := range res.Links {
			if link.Rel == "up" {
				parts := strings.Split(strings.TrimRight(link.Href, "/"), "/")
				out.CaptureID = parts[len(parts)-1]
			}
		}
	}

	return out, nil
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

func parseAmount(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}
