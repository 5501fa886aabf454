// internal/reconcile/event.go
package reconcile

import (
	"time"

	"github.com/storelink/pos-backend/internal/models"
)

// EventKind is the gateway-neutral classification of an inbound signal. The
// per-gateway adapters map provider event types onto these kinds so provider
// quirks never reach the state machine.
type EventKind string

const (
	EventAuthorized EventKind = "authorized"
	EventCaptured   EventKind = "captured"
	EventFailed     EventKind = "failed"
	EventCancelled  EventKind = "cancelled"
	EventRefunded   EventKind = "refunded"
	EventIgnored    EventKind = "ignored"
)

// Event is a verified, parsed gateway signal: either an inbound webhook or a
// locally initiated capture/cancel/refund call. It carries zero or more
// correlation identifiers of varying specificity.
type Event struct {
	Gateway models.PaymentGateway
	Kind    EventKind

	// Provider event id, used for duplicate-delivery observation.
	EventID string

	// Correlation identifiers, most to least specific.
	CaptureID     string
	TransactionID string // internal id echoed back by the gateway
	ReferenceID   string
	OrderID       string

	// Refund identifiers, set on EventRefunded.
	RefundID string

	Amount   float64
	Fee      float64
	Currency string
	Reason   string

	// Raw provider payload, kept verbatim for audit.
	Raw models.JSONB

	OccurredAt time.Time
}

// TargetStatus maps the event kind to the status it asks the transaction to
// move to. The second return is false for kinds that carry no transition.
func (e Event) TargetStatus() (models.TransactionStatus, bool) {
	switch e.Kind {
	case EventAuthorized:
		return models.TransactionStatusProcessing, true
	case EventCaptured:
		return models.TransactionStatusCompleted, true
	case EventFailed:
		return models.TransactionStatusFailed, true
	case EventCancelled:
		return models.TransactionStatusCancelled, true
	case EventRefunded:
		return models.TransactionStatusRefunded, true
	}
	return "", false
}
