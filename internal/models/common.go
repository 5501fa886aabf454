// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleManager UserRole = "manager"
	UserRoleCashier UserRole = "cashier"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

type PaymentGateway string

const (
	GatewayStripe    PaymentGateway = "stripe"
	GatewayPayPal    PaymentGateway = "paypal"
	GatewayBraintree PaymentGateway = "braintree"
	GatewayCash      PaymentGateway = "cash"
)

func (g PaymentGateway) Valid() bool {
	switch g {
	case GatewayStripe, GatewayPayPal, GatewayBraintree, GatewayCash:
		return true
	}
	return false
}

type TransactionType string

const (
	TransactionTypeSale    TransactionType = "sale"
	TransactionTypePayment TransactionType = "payment"
	TransactionTypeRefund  TransactionType = "refund"
)

type TransactionStatus string

const (
	TransactionStatusPending           TransactionStatus = "pending"
	TransactionStatusProcessing        TransactionStatus = "processing"
	TransactionStatusCompleted         TransactionStatus = "completed"
	TransactionStatusFailed            TransactionStatus = "failed"
	TransactionStatusCancelled         TransactionStatus = "cancelled"
	TransactionStatusPartiallyRefunded TransactionStatus = "partially_refunded"
	TransactionStatusRefunded          TransactionStatus = "refunded"
)

type SaleStatus string

const (
	SaleStatusOpen     SaleStatus = "open"
	SaleStatusPaid     SaleStatus = "paid"
	SaleStatusRefunded SaleStatus = "refunded"
	SaleStatusVoided   SaleStatus = "voided"
)

type ProductStatus string

const (
	ProductStatusActive     ProductStatus = "active"
	ProductStatusOutOfStock ProductStatus = "out_of_stock"
	ProductStatusArchived   ProductStatus = "archived"
)

type RepairStatus string

const (
	RepairStatusReceived      RepairStatus = "received"
	RepairStatusDiagnosing    RepairStatus = "diagnosing"
	RepairStatusAwaitingParts RepairStatus = "awaiting_parts"
	RepairStatusInProgress    RepairStatus = "in_progress"
	RepairStatusReady         RepairStatus = "ready"
	RepairStatusPickedUp      RepairStatus = "picked_up"
	RepairStatusCancelled     RepairStatus = "cancelled"
)
