// internal/reconcile/store.go
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storelink/pos-backend/internal/models"
)

// RefKind selects which alternate key a lookup uses.
type RefKind string

const (
	RefCapture   RefKind = "capture"
	RefOrder     RefKind = "order"
	RefReference RefKind = "reference"
)

// Store is the persistence port the engine works against. Implementations
// must provide read-your-writes consistency for a single transaction record;
// no multi-document transactions are required.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	// FindByGatewayRef returns (nil, nil) when no record matches, so callers
	// can fall through to a less specific key.
	FindByGatewayRef(ctx context.Context, kind RefKind, value string) (*models.Transaction, error)
	// FindRefundForCapture returns an existing refund-type transaction for the
	// given gateway refund or capture id, or (nil, nil).
	FindRefundForCapture(ctx context.Context, captureID, refundID string) (*models.Transaction, error)
	Create(ctx context.Context, txn *models.Transaction) error
	Save(ctx context.Context, txn *models.Transaction) error
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a gorm connection as the engine's persistence port.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := s.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return &txn, nil
}

func (s *gormStore) FindByGatewayRef(ctx context.Context, kind RefKind, value string) (*models.Transaction, error) {
	if value == "" {
		return nil, nil
	}

	var column string
	switch kind {
	case RefCapture:
		column = "gateway_capture_id"
	case RefOrder:
		column = "gateway_order_id"
	case RefReference:
		column = "reference_id"
	default:
		return nil, fmt.Errorf("unknown gateway ref kind: %s", kind)
	}

	query := s.db.WithContext(ctx).
		Where(column+" = ? AND transaction_type <> ?", value, models.TransactionTypeRefund)
	if kind == RefOrder {
		// An order id is shared by a sequence of related events; once a
		// transaction is cancelled or failed it no longer claims the id, so a
		// later capture for the same order correlates to its replacement.
		query = query.Where("status NOT IN ?", []models.TransactionStatus{
			models.TransactionStatusCancelled,
			models.TransactionStatusFailed,
		})
	}

	var txn models.Transaction
	err := query.Order("created_at ASC").First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find transaction by %s: %w", kind, err)
	}
	return &txn, nil
}

func (s *gormStore) FindRefundForCapture(ctx context.Context, captureID, refundID string) (*models.Transaction, error) {
	query := s.db.WithContext(ctx).Where("transaction_type = ?", models.TransactionTypeRefund)
	switch {
	case refundID != "":
		query = query.Where("gateway_refund_id = ?", refundID)
	case captureID != "":
		query = query.Where("gateway_capture_id = ?", captureID)
	default:
		return nil, nil
	}

	var txn models.Transaction
	if err := query.First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find refund transaction: %w", err)
	}
	return &txn, nil
}

func (s *gormStore) Create(ctx context.Context, txn *models.Transaction) error {
	if err := s.db.WithContext(ctx).Create(txn).Error; err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (s *gormStore) Save(ctx context.Context, txn *models.Transaction) error {
	if err := s.db.WithContext(ctx).Save(txn).Error; err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	return nil
}
