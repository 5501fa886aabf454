// internal/reconcile/engine.go
package reconcile

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/storelink/pos-backend/internal/models"
)

// amountEpsilon is the currency-rounding tolerance for net-amount checks.
const amountEpsilon = 0.01

// Engine owns the lifecycle of a transaction record from creation through
// terminal state. It is idempotent under retried webhooks and safe under
// concurrent updates to the same transaction: every transition re-reads the
// record first and aborts (without erroring) if the status already moved to
// the target or past it.
type Engine struct {
	store Store
	log   *logrus.Entry
}

func NewEngine(store Store) *Engine {
	return &Engine{
		store: store,
		log:   logrus.WithField("component", "reconcile"),
	}
}

type CreateRequest struct {
	StoreID       uuid.UUID
	Type          models.TransactionType
	Gateway       models.PaymentGateway
	PaymentMethod string
	Amount        float64
	Currency      string
	Fee           float64
	SaleID        *uuid.UUID
	Customer      models.ContactSnapshot
	Metadata      models.JSONB
}

// CreatePending persists a transaction before any gateway is contacted. The
// identifier is generated up front so a correlation key exists even if the
// follow-up gateway call never happens. Cash payments have no gateway leg and
// are created directly completed.
func (e *Engine) CreatePending(ctx context.Context, req CreateRequest) (*models.Transaction, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if !req.Gateway.Valid() {
		return nil, fmt.Errorf("%w: unknown gateway %q", ErrInvalidInput, req.Gateway)
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "USD"
	}
	if len(currency) != 3 {
		return nil, fmt.Errorf("%w: invalid currency %q", ErrInvalidInput, req.Currency)
	}

	txnType := req.Type
	if txnType == "" {
		if req.SaleID != nil {
			txnType = models.TransactionTypeSale
		} else {
			txnType = models.TransactionTypePayment
		}
	}

	id := uuid.New()
	txn := &models.Transaction{
		BaseModel:       models.BaseModel{ID: id},
		StoreID:         req.StoreID,
		TransactionType: txnType,
		Status:          models.TransactionStatusPending,
		Gateway:         req.Gateway,
		PaymentMethod:   req.PaymentMethod,
		Amount:          req.Amount,
		Currency:        currency,
		FeeAmount:       req.Fee,
		SaleID:          req.SaleID,
		Customer:        req.Customer,
		Metadata:        req.Metadata,
		ReferenceID:     id.String(),
	}

	if req.Gateway == models.GatewayCash {
		now := time.Now().UTC()
		txn.Status = models.TransactionStatusCompleted
		txn.ProcessedAt = &now
		txn.NetAmount = round2(txn.Amount - txn.FeeAmount)
		txn.AppendNote("engine", "cash payment recorded as completed")
	} else {
		txn.AppendNote("engine", fmt.Sprintf("created pending for %s", req.Gateway))
	}

	if err := e.store.Create(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// Correlate matches an inbound event to a local transaction, trying
// identifiers in decreasing specificity: capture id first (assigned latest,
// uniquely identifies one settlement attempt), then the internal id echoed
// back by the gateway, then order id (assigned earliest, shared by a sequence
// of related events).
func (e *Engine) Correlate(ctx context.Context, ev Event) (*models.Transaction, error) {
	if ev.CaptureID != "" {
		txn, err := e.store.FindByGatewayRef(ctx, RefCapture, ev.CaptureID)
		if err != nil {
			return nil, err
		}
		if txn != nil {
			return txn, nil
		}
	}

	if ev.TransactionID != "" {
		if id, err := uuid.Parse(ev.TransactionID); err == nil {
			txn, err := e.store.FindByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if txn != nil {
				return txn, nil
			}
		}
	}

	if ev.ReferenceID != "" {
		txn, err := e.store.FindByGatewayRef(ctx, RefReference, ev.ReferenceID)
		if err != nil {
			return nil, err
		}
		if txn != nil {
			return txn, nil
		}
	}

	if ev.OrderID != "" {
		txn, err := e.store.FindByGatewayRef(ctx, RefOrder, ev.OrderID)
		if err != nil {
			return nil, err
		}
		if txn != nil {
			return txn, nil
		}
	}

	e.log.WithFields(logrus.Fields{
		"gateway":    ev.Gateway,
		"event_id":   ev.EventID,
		"order_id":   ev.OrderID,
		"capture_id": ev.CaptureID,
	}).Warn("Correlation miss: no local transaction for inbound event")

	return nil, ErrNotFound
}

// ApplyTransition moves a transaction toward the target status if the state
// machine allows it. Illegal or stale requests are recorded in the notes log
// and return the unchanged transaction; they are never forced and never
// surface as errors.
func (e *Engine) ApplyTransition(ctx context.Context, txn *models.Transaction, target models.TransactionStatus, ev Event) (*models.Transaction, error) {
	// Re-read immediately before applying: another event may have raced us.
	current, err := e.store.FindByID(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}

	if target == models.TransactionStatusRefunded || target == models.TransactionStatusPartiallyRefunded {
		return e.applyRefund(ctx, current, ev)
	}

	if current.Status == target {
		e.log.WithFields(logrus.Fields{
			"transaction_id": current.ID,
			"status":         current.Status,
			"event_id":       ev.EventID,
		}).Info("Duplicate delivery: transaction already in target status")
		// A retry storm must not grow the notes log without bound; the same
		// delivery is recorded once.
		if lastNoteMentions(current, ev.EventID) {
			return current, nil
		}
		current.AppendNote(noteSource(ev), fmt.Sprintf("duplicate %s event %s ignored", ev.Kind, ev.EventID))
		if err := e.store.Save(ctx, current); err != nil {
			return nil, err
		}
		return current, nil
	}

	if rank, ok := statusRank[target]; ok {
		if cur, ok := statusRank[current.Status]; ok && cur > rank {
			if lastNoteMentions(current, ev.EventID) {
				return current, nil
			}
			current.AppendNote(noteSource(ev), fmt.Sprintf("stale %s event %s ignored, status already %s", ev.Kind, ev.EventID, current.Status))
			if err := e.store.Save(ctx, current); err != nil {
				return nil, err
			}
			return current, nil
		}
	}

	if !canReach(current.Status, target) {
		current.AppendNote(noteSource(ev), fmt.Sprintf("illegal transition %s -> %s requested by %s event %s", current.Status, target, ev.Gateway, ev.EventID))
		if err := e.store.Save(ctx, current); err != nil {
			return nil, err
		}
		return current, nil
	}

	switch target {
	case models.TransactionStatusProcessing:
		current.Status = models.TransactionStatusProcessing
		if current.GatewayOrderID == "" && ev.OrderID != "" {
			current.GatewayOrderID = ev.OrderID
		}
		current.AppendNote(noteSource(ev), "authorized, awaiting capture")

	case models.TransactionStatusCompleted:
		e.markCompleted(current, ev)

	case models.TransactionStatusFailed:
		current.Status = models.TransactionStatusFailed
		reason := ev.Reason
		if reason == "" {
			reason = "gateway reported failure"
		}
		current.AppendNote(noteSource(ev), reason)

	case models.TransactionStatusCancelled:
		current.Status = models.TransactionStatusCancelled
		reason := ev.Reason
		if reason == "" {
			reason = "cancelled by gateway"
		}
		current.AppendNote(noteSource(ev), reason)
	}

	if err := e.store.Save(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

// Cancel is the merchant-initiated cancellation. Unlike webhook-driven
// transitions it errors on terminal transactions, except the idempotent
// repeat-cancel of an already cancelled one.
func (e *Engine) Cancel(ctx context.Context, txn *models.Transaction, reason string) (*models.Transaction, error) {
	current, err := e.store.FindByID(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}

	if current.Status == models.TransactionStatusCancelled {
		return current, nil
	}

	switch current.Status {
	case models.TransactionStatusPending, models.TransactionStatusProcessing:
		current.Status = models.TransactionStatusCancelled
		if reason == "" {
			reason = "cancelled by merchant"
		}
		current.AppendNote("api", reason)
		if err := e.store.Save(ctx, current); err != nil {
			return nil, err
		}
		return current, nil
	}

	return nil, fmt.Errorf("%w: cannot cancel %s transaction", ErrTerminalState, current.Status)
}

// MarkFailed records a gateway-call failure during the synchronous capture
// path. The engine never lets the SDK error escape; the transaction lands in
// failed with the detail appended to notes.
func (e *Engine) MarkFailed(ctx context.Context, txn *models.Transaction, reason string) (*models.Transaction, error) {
	return e.ApplyTransition(ctx, txn, models.TransactionStatusFailed, Event{
		Gateway: txn.Gateway,
		Kind:    EventFailed,
		Reason:  reason,
	})
}

func (e *Engine) markCompleted(txn *models.Transaction, ev Event) {
	now := time.Now().UTC()
	if !ev.OccurredAt.IsZero() {
		now = ev.OccurredAt.UTC()
	}

	txn.Status = models.TransactionStatusCompleted
	txn.ProcessedAt = &now
	if ev.CaptureID != "" {
		txn.GatewayCaptureID = ev.CaptureID
	}
	if txn.GatewayOrderID == "" && ev.OrderID != "" {
		txn.GatewayOrderID = ev.OrderID
	}
	if ev.Fee > 0 {
		txn.FeeAmount = ev.Fee
	}

	// Recompute net from amount and fee. The recomputed value always wins; a
	// stored value off by more than the rounding epsilon is logged, never
	// silently trusted.
	want := round2(txn.Amount - txn.FeeAmount)
	if txn.NetAmount != 0 && math.Abs(txn.NetAmount-want) > amountEpsilon {
		e.log.WithFields(logrus.Fields{
			"transaction_id": txn.ID,
			"stored_net":     txn.NetAmount,
			"recomputed_net": want,
		}).Warn("Net amount discrepancy, recomputed value wins")
		txn.AppendNote("engine", fmt.Sprintf("net amount corrected from %.2f to %.2f", txn.NetAmount, want))
	}
	txn.NetAmount = want

	txn.AppendNote(noteSource(ev), fmt.Sprintf("captured %s %.2f, fee %.2f", txn.Currency, txn.Amount, txn.FeeAmount))
}

// applyRefund creates a refund-type transaction and moves the original to
// refunded or partially refunded. The original amount is never mutated:
// refund history is additive, so the ledger is reconstructable from the
// transaction log alone.
func (e *Engine) applyRefund(ctx context.Context, current *models.Transaction, ev Event) (*models.Transaction, error) {
	if current.Status != models.TransactionStatusCompleted &&
		current.Status != models.TransactionStatusPartiallyRefunded {
		current.AppendNote(noteSource(ev), fmt.Sprintf("refund event %s on %s transaction recorded, not applied", ev.EventID, current.Status))
		if err := e.store.Save(ctx, current); err != nil {
			return nil, err
		}
		return current, nil
	}

	captureID := ev.CaptureID
	if captureID == "" {
		captureID = current.GatewayCaptureID
	}

	// Duplicate webhook delivery must not create a second refund record.
	existing, err := e.store.FindRefundForCapture(ctx, captureID, ev.RefundID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		e.log.WithFields(logrus.Fields{
			"transaction_id": current.ID,
			"refund_id":      ev.RefundID,
			"capture_id":     captureID,
		}).Info("Duplicate refund event, refund transaction already exists")
		return current, nil
	}

	remaining := round2(current.Amount - current.RefundedAmount)
	amount := ev.Amount
	if amount <= 0 || amount > remaining {
		amount = remaining
	}

	now := time.Now().UTC()
	refund := &models.Transaction{
		BaseModel:           models.BaseModel{ID: uuid.New()},
		StoreID:             current.StoreID,
		TransactionType:     models.TransactionTypeRefund,
		Status:              models.TransactionStatusCompleted,
		Gateway:             current.Gateway,
		PaymentMethod:       current.PaymentMethod,
		Amount:              amount,
		Currency:            current.Currency,
		NetAmount:           amount,
		GatewayOrderID:      current.GatewayOrderID,
		GatewayCaptureID:    captureID,
		GatewayRefundID:     ev.RefundID,
		SaleID:              current.SaleID,
		ParentTransactionID: &current.ID,
		Customer:            current.Customer,
		ProcessedAt:         &now,
	}
	reason := ev.Reason
	if reason == "" {
		reason = fmt.Sprintf("refund of %s %.2f", current.Currency, amount)
	}
	refund.AppendNote(noteSource(ev), reason)

	if err := e.store.Create(ctx, refund); err != nil {
		return nil, err
	}

	current.RefundedAmount = round2(current.RefundedAmount + amount)
	if current.RefundedAmount >= current.Amount-amountEpsilon {
		current.Status = models.TransactionStatusRefunded
	} else {
		current.Status = models.TransactionStatusPartiallyRefunded
	}
	current.AppendNote(noteSource(ev), fmt.Sprintf("refunded %.2f of %.2f", current.RefundedAmount, current.Amount))

	if err := e.store.Save(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

// lastNoteMentions reports whether the newest note already records the given
// event id, so an identical redelivery does not append again.
func lastNoteMentions(txn *models.Transaction, eventID string) bool {
	if eventID == "" || len(txn.Notes) == 0 {
		return false
	}
	return strings.Contains(txn.Notes[len(txn.Notes)-1].Message, eventID)
}

func noteSource(ev Event) string {
	if ev.EventID != "" {
		return "webhook:" + string(ev.Gateway)
	}
	if ev.Gateway != "" {
		return string(ev.Gateway)
	}
	return "engine"
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
