// internal/services/transaction_service_test.go
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storelink/pos-backend/internal/gateways"
	"github.com/storelink/pos-backend/internal/models"
	"github.com/storelink/pos-backend/internal/reconcile"
)

// memTxnStore backs the engine in tests that never touch a database. Reads
// return copies so the re-read-before-apply path is exercised for real.
type memTxnStore struct {
	mu   sync.Mutex
	txns map[uuid.UUID]*models.Transaction
}

func newMemTxnStore() *memTxnStore {
	return &memTxnStore{txns: make(map[uuid.UUID]*models.Transaction)}
}

func copyTxn(t *models.Transaction) *models.Transaction {
	c := *t
	c.Notes = append(models.NoteLog(nil), t.Notes...)
	return &c
}

func (s *memTxnStore) FindByID(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.txns[id]; ok {
		return copyTxn(t), nil
	}
	return nil, nil
}

func (s *memTxnStore) FindByGatewayRef(_ context.Context, kind reconcile.RefKind, value string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txns {
		if kind == reconcile.RefOrder && t.GatewayOrderID == value {
			return copyTxn(t), nil
		}
		if kind == reconcile.RefCapture && t.GatewayCaptureID == value {
			return copyTxn(t), nil
		}
		if kind == reconcile.RefReference && t.ReferenceID == value {
			return copyTxn(t), nil
		}
	}
	return nil, nil
}

func (s *memTxnStore) FindRefundForCapture(_ context.Context, captureID, refundID string) (*models.Transaction, error) {
	return nil, nil
}

func (s *memTxnStore) Create(_ context.Context, txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txns[txn.ID] = copyTxn(txn)
	return nil
}

func (s *memTxnStore) Save(_ context.Context, txn *models.Transaction) error {
	return s.Create(context.Background(), txn)
}

// stubGatewayClient fakes one provider; errors are configured per call.
type stubGatewayClient struct {
	name         models.PaymentGateway
	captureErr   error
	captureEvent *reconcile.Event
	cancelErr    error

	cancelCalls    int
	statusOnCancel models.TransactionStatus
}

func (c *stubGatewayClient) Name() models.PaymentGateway { return c.name }

func (c *stubGatewayClient) CreateOrder(context.Context, *models.Transaction) (*gateways.OrderResult, error) {
	return &gateways.OrderResult{OrderID: "order_stub"}, nil
}

func (c *stubGatewayClient) Capture(_ context.Context, txn *models.Transaction) (*reconcile.Event, error) {
	if c.captureErr != nil {
		return nil, c.captureErr
	}
	return c.captureEvent, nil
}

func (c *stubGatewayClient) Refund(context.Context, *models.Transaction, float64, string) (*reconcile.Event, error) {
	return nil, errors.New("not implemented")
}

func (c *stubGatewayClient) Cancel(_ context.Context, txn *models.Transaction) error {
	c.cancelCalls++
	c.statusOnCancel = txn.Status
	return c.cancelErr
}

func (c *stubGatewayClient) VerifyWebhook(context.Context, *http.Request, []byte) (*reconcile.Event, error) {
	return nil, errors.New("not implemented")
}

func newTestTransactionService(store reconcile.Store, registry gateways.Registry) *TransactionService {
	return &TransactionService{
		store:    store,
		engine:   reconcile.NewEngine(store),
		registry: registry,
	}
}

func seedTransaction(t *testing.T, store *memTxnStore, storeID uuid.UUID, status models.TransactionStatus, orderID string) *models.Transaction {
	t.Helper()
	txn := &models.Transaction{
		BaseModel:       models.BaseModel{ID: uuid.New()},
		StoreID:         storeID,
		TransactionType: models.TransactionTypePayment,
		Status:          status,
		Gateway:         models.GatewayStripe,
		Amount:          50,
		Currency:        "USD",
		GatewayOrderID:  orderID,
	}
	txn.ReferenceID = txn.ID.String()
	require.NoError(t, store.Create(context.Background(), txn))
	return txn
}

func lastNote(txn *models.Transaction) string {
	if len(txn.Notes) == 0 {
		return ""
	}
	return txn.Notes[len(txn.Notes)-1].Message
}

func TestCaptureGatewayErrorLandsFailed(t *testing.T) {
	store := newMemTxnStore()
	storeID := uuid.New()
	txn := seedTransaction(t, store, storeID, models.TransactionStatusPending, "pi_1")

	client := &stubGatewayClient{
		name:       models.GatewayStripe,
		captureErr: errors.New("connection reset by peer"),
	}
	svc := newTestTransactionService(store, gateways.Registry{models.GatewayStripe: client})

	_, err := svc.Capture(context.Background(), storeID, txn.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway error")

	// The record is never left in limbo: the failure is committed with the
	// detail on the notes log.
	stored, err := store.FindByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.TransactionStatusFailed, stored.Status)
	assert.True(t, strings.Contains(lastNote(stored), "connection reset by peer"))
}

func TestCaptureSuccessCompletes(t *testing.T) {
	store := newMemTxnStore()
	storeID := uuid.New()
	txn := seedTransaction(t, store, storeID, models.TransactionStatusProcessing, "pi_2")

	client := &stubGatewayClient{
		name: models.GatewayStripe,
		captureEvent: &reconcile.Event{
			Gateway:   models.GatewayStripe,
			Kind:      reconcile.EventCaptured,
			OrderID:   "pi_2",
			CaptureID: "ch_9",
			Fee:       1.75,
		},
	}
	svc := newTestTransactionService(store, gateways.Registry{models.GatewayStripe: client})

	updated, err := svc.Capture(context.Background(), storeID, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, updated.Status)
	assert.Equal(t, "ch_9", updated.GatewayCaptureID)
}

func TestCancelAuthorizedVoidsGatewayFirst(t *testing.T) {
	store := newMemTxnStore()
	storeID := uuid.New()
	txn := seedTransaction(t, store, storeID, models.TransactionStatusProcessing, "pi_3")

	client := &stubGatewayClient{name: models.GatewayStripe}
	svc := newTestTransactionService(store, gateways.Registry{models.GatewayStripe: client})

	cancelled, err := svc.Cancel(context.Background(), storeID, txn.ID, "customer walked out")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCancelled, cancelled.Status)
	assert.Equal(t, 1, client.cancelCalls)
	// The void was confirmed before the local record moved.
	assert.Equal(t, models.TransactionStatusProcessing, client.statusOnCancel)
}

func TestCancelVoidFailureKeepsProcessing(t *testing.T) {
	store := newMemTxnStore()
	storeID := uuid.New()
	txn := seedTransaction(t, store, storeID, models.TransactionStatusProcessing, "pi_4")

	client := &stubGatewayClient{
		name:      models.GatewayStripe,
		cancelErr: errors.New("void declined: already captured"),
	}
	svc := newTestTransactionService(store, gateways.Registry{models.GatewayStripe: client})

	_, err := svc.Cancel(context.Background(), storeID, txn.ID, "")
	require.Error(t, err)

	// Funds may have moved; the ledger must not say cancelled.
	stored, err := store.FindByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.TransactionStatusProcessing, stored.Status)
	assert.True(t, strings.Contains(lastNote(stored), "gateway void failed"))

	// A capture webhook arriving later can still complete the payment.
	_, err = svc.Engine().ApplyTransition(context.Background(), stored, models.TransactionStatusCompleted, reconcile.Event{
		Gateway: models.GatewayStripe, Kind: reconcile.EventCaptured, CaptureID: "ch_late",
	})
	require.NoError(t, err)
	stored, _ = store.FindByID(context.Background(), txn.ID)
	assert.Equal(t, models.TransactionStatusCompleted, stored.Status)
}

func TestCancelPendingStaysLocalFirst(t *testing.T) {
	store := newMemTxnStore()
	storeID := uuid.New()
	txn := seedTransaction(t, store, storeID, models.TransactionStatusPending, "pi_5")

	// Void failures on a never-authorized order do not block cancellation.
	client := &stubGatewayClient{
		name:      models.GatewayStripe,
		cancelErr: errors.New("order not found"),
	}
	svc := newTestTransactionService(store, gateways.Registry{models.GatewayStripe: client})

	cancelled, err := svc.Cancel(context.Background(), storeID, txn.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCancelled, cancelled.Status)
	assert.Equal(t, 1, client.cancelCalls)
}

func TestGetScopedToStore(t *testing.T) {
	store := newMemTxnStore()
	txn := seedTransaction(t, store, uuid.New(), models.TransactionStatusPending, "")

	svc := newTestTransactionService(store, gateways.Registry{})

	_, err := svc.Get(uuid.New(), txn.ID)
	assert.ErrorIs(t, err, reconcile.ErrNotFound)

	got, err := svc.Get(txn.StoreID, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)
}
