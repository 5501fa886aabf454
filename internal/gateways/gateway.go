// internal/gateways/gateway.go
package gateways

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/storelink/pos-backend/internal/models"
	"github.com/storelink/pos-backend/internal/reconcile"
)

// ErrSignatureInvalid is returned when a webhook payload fails verification
// against the exact bytes the gateway sent. Handlers answer with a retryable
// rejection, distinct from "event understood but ignored".
var ErrSignatureInvalid = errors.New("webhook signature verification failed")

// callTimeout bounds every outbound gateway call. No engine operation may
// block indefinitely on a provider.
const callTimeout = 15 * time.Second

// OrderResult is what a gateway hands back when an order/intent is created.
type OrderResult struct {
	OrderID      string `json:"order_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	ApprovalURL  string `json:"approval_url,omitempty"`
}

// Client is the narrow surface the transaction service consumes per gateway.
// Implementations translate provider payloads into neutral reconcile.Events;
// provider quirks stay behind this interface.
type Client interface {
	Name() models.PaymentGateway

	// CreateOrder registers the payment with the gateway. The transaction
	// already exists locally in pending before this is called.
	CreateOrder(ctx context.Context, txn *models.Transaction) (*OrderResult, error)

	// Capture finalizes the authorized payment and reports the settlement as
	// a captured event.
	Capture(ctx context.Context, txn *models.Transaction) (*reconcile.Event, error)

	// Refund returns funds for a captured payment and reports it as a
	// refunded event.
	Refund(ctx context.Context, txn *models.Transaction, amount float64, reason string) (*reconcile.Event, error)

	// Cancel voids an order that has not captured funds.
	Cancel(ctx context.Context, txn *models.Transaction) error

	// VerifyWebhook checks the signature against the raw body and parses the
	// payload into a neutral event. Events the system does not act on come
	// back with Kind EventIgnored, not an error.
	VerifyWebhook(ctx context.Context, req *http.Request, rawBody []byte) (*reconcile.Event, error)
}

// Registry maps gateway names to clients. Cash has no client; cash payments
// never leave the engine.
type Registry map[models.PaymentGateway]Client

func (r Registry) Get(gateway models.PaymentGateway) (Client, bool) {
	c, ok := r[gateway]
	return c, ok
}
