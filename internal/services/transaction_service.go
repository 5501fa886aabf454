// internal/services/transaction_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/storelink/pos-backend/internal/config"
	"github.com/storelink/pos-backend/internal/gateways"
	"github.com/storelink/pos-backend/internal/models"
	"github.com/storelink/pos-backend/internal/reconcile"
	"github.com/storelink/pos-backend/internal/utils"
)

// TransactionService drives the payment lifecycle. All state decisions live
// in the reconcile engine; this layer adds gateway calls, store scoping, and
// the bookkeeping that hangs off a status change (sale status, receipts).
type TransactionService struct {
	db            *gorm.DB
	cfg           *config.Config
	store         reconcile.Store
	engine        *reconcile.Engine
	registry      gateways.Registry
	notifications *NotificationService
}

type CreatePaymentRequest struct {
	SaleID        *string                `json:"sale_id,omitempty" validate:"omitempty,uuid4"`
	CustomerID    *string                `json:"customer_id,omitempty" validate:"omitempty,uuid4"`
	Gateway       models.PaymentGateway  `json:"gateway" validate:"required"`
	PaymentMethod string                 `json:"payment_method,omitempty" validate:"omitempty,max=50"`
	Amount        float64                `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Currency      string                 `json:"currency,omitempty" validate:"omitempty,currency"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

type RefundRequest struct {
	Amount float64 `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Reason string  `json:"reason,omitempty" validate:"omitempty,max=255"`
}

type PaymentResponse struct {
	Transaction *models.Transaction   `json:"transaction"`
	Order       *gateways.OrderResult `json:"order,omitempty"`
}

func NewTransactionService(db *gorm.DB, cfg *config.Config, registry gateways.Registry, notifications *NotificationService) *TransactionService {
	store := reconcile.NewGormStore(db)
	return &TransactionService{
		db:            db,
		cfg:           cfg,
		store:         store,
		engine:        reconcile.NewEngine(store),
		registry:      registry,
		notifications: notifications,
	}
}

// Engine exposes the reconcile engine for callers that feed it events
// directly, such as the webhook handler tests.
func (s *TransactionService) Engine() *reconcile.Engine {
	return s.engine
}

// CreatePayment records the transaction locally first, then registers the
// order with the gateway. A gateway failure after the local insert leaves a
// pending transaction behind on purpose: the money trail starts before the
// first network call.
func (s *TransactionService) CreatePayment(ctx context.Context, storeID uuid.UUID, req *CreatePaymentRequest) (*PaymentResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	createReq := reconcile.CreateRequest{
		StoreID:       storeID,
		Gateway:       req.Gateway,
		PaymentMethod: req.PaymentMethod,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Metadata:      models.JSONB(req.Metadata),
	}

	var sale *models.Sale
	if req.SaleID != nil {
		saleID, err := uuid.Parse(*req.SaleID)
		if err != nil {
			return nil, errors.New("invalid sale ID")
		}
		sale = &models.Sale{}
		if err := s.db.Where("store_id = ?", storeID).Preload("Items").First(sale, "id = ?", saleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.New("sale not found")
			}
			return nil, fmt.Errorf("database error: %w", err)
		}
		if sale.Status != models.SaleStatusOpen {
			return nil, fmt.Errorf("sale is %s, expected open", sale.Status)
		}
		createReq.SaleID = &sale.ID
		createReq.Customer = sale.Customer
		if createReq.Amount == 0 {
			createReq.Amount = sale.Total
		}
		if createReq.Currency == "" {
			createReq.Currency = sale.Currency
		}
	}

	if req.CustomerID != nil && createReq.Customer.Name == "" {
		customerID, err := uuid.Parse(*req.CustomerID)
		if err != nil {
			return nil, errors.New("invalid customer ID")
		}
		var customer models.Customer
		if err := s.db.Where("store_id = ?", storeID).First(&customer, "id = ?", customerID).Error; err == nil {
			createReq.Customer = customer.Snapshot()
		}
	}

	txn, err := s.engine.CreatePending(ctx, createReq)
	if err != nil {
		return nil, err
	}

	// Cash completes immediately; nothing to register with a gateway.
	if req.Gateway == models.GatewayCash {
		s.afterStatusChange(txn)
		return &PaymentResponse{Transaction: txn}, nil
	}

	client, ok := s.registry.Get(req.Gateway)
	if !ok {
		return nil, fmt.Errorf("gateway %s is not configured", req.Gateway)
	}

	order, err := client.CreateOrder(ctx, txn)
	if err != nil {
		txn.AppendNote("pos", fmt.Sprintf("gateway order creation failed: %v", err))
		s.db.Save(txn)
		return nil, fmt.Errorf("gateway error: %w", err)
	}

	txn.GatewayOrderID = order.OrderID
	txn.AppendNote("pos", fmt.Sprintf("gateway order %s created", order.OrderID))
	if err := s.db.Save(txn).Error; err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	return &PaymentResponse{Transaction: txn, Order: order}, nil
}

// Capture asks the gateway to settle an authorized payment, then feeds the
// resulting event through the same transition path webhooks use. If the
// webhook for this capture arrives later it lands as a duplicate no-op.
func (s *TransactionService) Capture(ctx context.Context, storeID, txnID uuid.UUID) (*models.Transaction, error) {
	txn, err := s.get(ctx, storeID, txnID)
	if err != nil {
		return nil, err
	}

	client, ok := s.registry.Get(txn.Gateway)
	if !ok {
		return nil, fmt.Errorf("gateway %s is not configured", txn.Gateway)
	}

	ev, err := client.Capture(ctx, txn)
	if err != nil {
		// The SDK error never leaves the transaction in limbo: the record
		// moves to failed with the detail on the notes log.
		if _, markErr := s.engine.MarkFailed(ctx, txn, fmt.Sprintf("gateway capture failed: %v", err)); markErr != nil {
			logrus.WithError(markErr).WithField("transaction_id", txn.ID).
				Error("Failed to record capture failure")
		}
		return nil, fmt.Errorf("gateway error: %w", err)
	}

	return s.applyEvent(ctx, txn, *ev)
}

// Cancel voids a payment that has not captured funds. An authorized payment
// could still settle, so the gateway void must succeed before the ledger says
// cancelled; a pending order that never authorized is cancelled locally first
// and the void is best effort since it will expire on their side regardless.
func (s *TransactionService) Cancel(ctx context.Context, storeID, txnID uuid.UUID, reason string) (*models.Transaction, error) {
	txn, err := s.get(ctx, storeID, txnID)
	if err != nil {
		return nil, err
	}

	client, hasClient := s.registry.Get(txn.Gateway)

	if txn.Status == models.TransactionStatusProcessing && txn.GatewayOrderID != "" {
		if !hasClient {
			return nil, fmt.Errorf("gateway %s is not configured", txn.Gateway)
		}
		if err := client.Cancel(ctx, txn); err != nil {
			txn.AppendNote("pos", fmt.Sprintf("gateway void failed: %v", err))
			if saveErr := s.store.Save(ctx, txn); saveErr != nil {
				logrus.WithError(saveErr).WithField("transaction_id", txn.ID).
					Error("Failed to record void failure")
			}
			return nil, fmt.Errorf("gateway error: %w", err)
		}
	}

	cancelled, err := s.engine.Cancel(ctx, txn, reason)
	if err != nil {
		return nil, err
	}

	if txn.Status == models.TransactionStatusPending && txn.Gateway != models.GatewayCash &&
		txn.GatewayOrderID != "" && hasClient {
		if err := client.Cancel(ctx, cancelled); err != nil {
			logrus.WithError(err).WithField("transaction_id", txn.ID).
				Warn("Gateway void failed after local cancellation")
		}
	}

	return cancelled, nil
}

// Refund issues a gateway refund and records it. Zero amount means refund
// everything still refundable.
func (s *TransactionService) Refund(ctx context.Context, storeID, txnID uuid.UUID, req *RefundRequest) (*models.Transaction, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	txn, err := s.get(ctx, storeID, txnID)
	if err != nil {
		return nil, err
	}

	amount := req.Amount
	if amount == 0 {
		amount = txn.Amount - txn.RefundedAmount
	}
	if amount <= 0 {
		return nil, errors.New("nothing left to refund")
	}

	// Cash refunds have no gateway leg; synthesize the event locally.
	if txn.Gateway == models.GatewayCash {
		ev := reconcile.Event{
			Gateway:       models.GatewayCash,
			Kind:          reconcile.EventRefunded,
			TransactionID: txn.ID.String(),
			RefundID:      fmt.Sprintf("cash-refund-%s", uuid.New().String()[:8]),
			Amount:        amount,
			Currency:      txn.Currency,
			Reason:        req.Reason,
			OccurredAt:    time.Now().UTC(),
		}
		return s.applyEvent(ctx, txn, ev)
	}

	client, ok := s.registry.Get(txn.Gateway)
	if !ok {
		return nil, fmt.Errorf("gateway %s is not configured", txn.Gateway)
	}

	ev, err := client.Refund(ctx, txn, amount, req.Reason)
	if err != nil {
		return nil, fmt.Errorf("gateway error: %w", err)
	}

	return s.applyEvent(ctx, txn, *ev)
}

func (s *TransactionService) Get(storeID, txnID uuid.UUID) (*models.Transaction, error) {
	return s.get(context.Background(), storeID, txnID)
}

func (s *TransactionService) List(storeID uuid.UUID, params utils.PaginationParams) (*utils.PaginationResult, error) {
	query := s.db.Model(&models.Transaction{}).Where("store_id = ?", storeID)

	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Gateway != "" {
		query = query.Where("gateway = ?", params.Gateway)
	}
	if params.Type != "" {
		query = query.Where("transaction_type = ?", params.Type)
	}
	if params.DateFrom != "" {
		query = query.Where("created_at >= ?", params.DateFrom)
	}
	if params.DateTo != "" {
		query = query.Where("created_at <= ?", params.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	var txns []models.Transaction
	query = utils.ApplySort(query, params, []string{"created_at", "amount", "status"})
	query = utils.ApplyPagination(query, params)
	if err := query.Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	result := utils.CreatePaginationResult(txns, total, params)
	return &result, nil
}

// HandleWebhook is the single entry point for inbound gateway notifications.
// The raw body is verified first, every verified delivery is persisted, and
// only then does the event reach the engine. Processing outcomes, including
// ignored and uncorrelated events, end up on the stored record.
func (s *TransactionService) HandleWebhook(ctx context.Context, provider models.PaymentGateway, req *http.Request, rawBody []byte) (*models.WebhookEvent, error) {
	client, ok := s.registry.Get(provider)
	if !ok {
		return nil, fmt.Errorf("gateway %s is not configured", provider)
	}

	ev, err := client.VerifyWebhook(ctx, req, rawBody)
	if err != nil {
		return nil, err
	}

	record := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: ev.EventID,
		EventType:       string(ev.Kind),
		Payload:         ev.Raw,
	}

	// A replayed delivery already has a stored record. The engine would treat
	// the transition as a duplicate anyway; skipping here saves the round trip.
	var existing models.WebhookEvent
	err = s.db.Where("provider = ? AND provider_event_id = ?", provider, ev.EventID).First(&existing).Error
	if err == nil && existing.ProcessedAt != nil {
		logrus.WithFields(logrus.Fields{
			"provider": provider,
			"event_id": ev.EventID,
		}).Info("Duplicate webhook delivery, already processed")
		return &existing, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := s.db.Create(record).Error; err != nil {
			return nil, fmt.Errorf("failed to record webhook event: %w", err)
		}
	} else if err == nil {
		record = &existing
	} else {
		return nil, fmt.Errorf("database error: %w", err)
	}

	s.processEvent(ctx, record, *ev)

	now := time.Now().UTC()
	record.ProcessedAt = &now
	if err := s.db.Save(record).Error; err != nil {
		return nil, fmt.Errorf("failed to update webhook event: %w", err)
	}

	return record, nil
}

// processEvent correlates and applies a verified event. Misses and ignored
// kinds are recorded, never errors: the delivery was understood, the system
// chose to do nothing.
func (s *TransactionService) processEvent(ctx context.Context, record *models.WebhookEvent, ev reconcile.Event) {
	if ev.Kind == reconcile.EventIgnored {
		record.ProcessingError = ""
		return
	}

	txn, err := s.engine.Correlate(ctx, ev)
	if err != nil {
		if errors.Is(err, reconcile.ErrNotFound) {
			record.ProcessingError = "no matching transaction"
			return
		}
		record.ProcessingError = err.Error()
		return
	}

	record.TransactionID = &txn.ID

	updated, err := s.applyEvent(ctx, txn, ev)
	if err != nil {
		record.ProcessingError = err.Error()
		return
	}
	record.TransactionID = &updated.ID
}

// applyEvent pushes one event through the engine and runs the side effects
// of whatever state the transaction lands in.
func (s *TransactionService) applyEvent(ctx context.Context, txn *models.Transaction, ev reconcile.Event) (*models.Transaction, error) {
	target, ok := ev.TargetStatus()
	if !ok {
		return txn, nil
	}

	updated, err := s.engine.ApplyTransition(ctx, txn, target, ev)
	if err != nil {
		return nil, err
	}

	s.afterStatusChange(updated)
	return updated, nil
}

// afterStatusChange keeps the sale in step with its payment and sends
// customer notifications. Everything here is an effect of state the engine
// already committed.
func (s *TransactionService) afterStatusChange(txn *models.Transaction) {
	switch txn.Status {
	case models.TransactionStatusCompleted:
		if txn.TransactionType == models.TransactionTypeRefund {
			// Refund child: notify against the original.
			if txn.ParentTransactionID != nil {
				var original models.Transaction
				if err := s.db.First(&original, "id = ?", *txn.ParentTransactionID).Error; err == nil {
					go s.notifications.SendRefundNotice(&original, txn)
				}
			}
			return
		}
		if txn.SaleID != nil {
			var sale models.Sale
			if err := s.db.Preload("Items").First(&sale, "id = ?", *txn.SaleID).Error; err == nil {
				if sale.Status == models.SaleStatusOpen {
					s.db.Model(&sale).Update("status", models.SaleStatusPaid)
					sale.Status = models.SaleStatusPaid
				}
				go s.notifications.SendReceipt(&sale, txn)
			}
		}
	case models.TransactionStatusRefunded:
		if txn.SaleID != nil {
			s.db.Model(&models.Sale{}).
				Where("id = ? AND status = ?", *txn.SaleID, models.SaleStatusPaid).
				Update("status", models.SaleStatusRefunded)
		}
	}
}

// get loads a transaction through the engine's store. Merchant scoping is a
// hard boundary: a transaction belonging to another store does not exist as
// far as the caller is concerned.
func (s *TransactionService) get(ctx context.Context, storeID, txnID uuid.UUID) (*models.Transaction, error) {
	txn, err := s.store.FindByID(ctx, txnID)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if txn == nil || txn.StoreID != storeID {
		return nil, reconcile.ErrNotFound
	}
	return txn, nil
}
