// internal/reconcile/memstore_test.go
package reconcile

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storelink/pos-backend/internal/models"
)

// memStore is an in-memory Store used by the engine tests. Reads and writes
// deep-copy the record so tests exercise the same re-read-before-apply
// behavior the persisted store provides.
type memStore struct {
	mu   sync.Mutex
	txns map[uuid.UUID]*models.Transaction
}

func newMemStore() *memStore {
	return &memStore{txns: make(map[uuid.UUID]*models.Transaction)}
}

func cloneTxn(t *models.Transaction) *models.Transaction {
	c := *t
	c.Notes = append(models.NoteLog(nil), t.Notes...)
	if t.Metadata != nil {
		c.Metadata = make(models.JSONB, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func (s *memStore) all() []*models.Transaction {
	out := make([]*models.Transaction, 0, len(s.txns))
	for _, t := range s.txns {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *memStore) FindByID(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.txns[id]; ok {
		return cloneTxn(t), nil
	}
	return nil, nil
}

func (s *memStore) FindByGatewayRef(_ context.Context, kind RefKind, value string) (*models.Transaction, error) {
	if value == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.all() {
		if t.TransactionType == models.TransactionTypeRefund {
			continue
		}
		switch kind {
		case RefCapture:
			if t.GatewayCaptureID == value {
				return cloneTxn(t), nil
			}
		case RefReference:
			if t.ReferenceID == value {
				return cloneTxn(t), nil
			}
		case RefOrder:
			// Order ids are shared across a sequence of events; cancelled and
			// failed transactions no longer claim them.
			if t.GatewayOrderID == value &&
				t.Status != models.TransactionStatusCancelled &&
				t.Status != models.TransactionStatusFailed {
				return cloneTxn(t), nil
			}
		}
	}
	return nil, nil
}

func (s *memStore) FindRefundForCapture(_ context.Context, captureID, refundID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.txns {
		if t.TransactionType != models.TransactionTypeRefund {
			continue
		}
		if refundID != "" && t.GatewayRefundID == refundID {
			return cloneTxn(t), nil
		}
		if refundID == "" && captureID != "" && t.GatewayCaptureID == captureID {
			return cloneTxn(t), nil
		}
	}
	return nil, nil
}

func (s *memStore) Create(_ context.Context, txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	s.txns[txn.ID] = cloneTxn(txn)
	return nil
}

func (s *memStore) Save(_ context.Context, txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txns[txn.ID] = cloneTxn(txn)
	return nil
}

func (s *memStore) count(txnType models.TransactionType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.txns {
		if t.TransactionType == txnType {
			n++
		}
	}
	return n
}
