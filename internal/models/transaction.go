// internal/models/transaction.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Note is a single entry in a transaction's append-only notes log.
type Note struct {
	At      time.Time `json:"at"`
	Source  string    `json:"source"`
	Message string    `json:"message"`
}

// NoteLog is stored as a JSONB array. Entries are only ever appended.
type NoteLog []Note

func (n NoteLog) Value() (driver.Value, error) {
	if n == nil {
		return nil, nil
	}
	return json.Marshal(n)
}

func (n *NoteLog) Scan(value interface{}) error {
	if value == nil {
		*n = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, n)
}

// ContactSnapshot is a denormalized copy of the customer's contact info at the
// time of the transaction. The customer record may change later without
// invalidating the historical record.
type ContactSnapshot struct {
	Name  string `json:"name" gorm:"size:255"`
	Email string `json:"email" gorm:"size:255"`
	Phone string `json:"phone" gorm:"size:50"`
}

type Transaction struct {
	BaseModel
	StoreID         uuid.UUID         `json:"store_id" gorm:"type:uuid;not null;index"`
	TransactionType TransactionType   `json:"transaction_type" gorm:"type:varchar(20);not null;index"`
	Status          TransactionStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	Gateway         PaymentGateway    `json:"gateway" gorm:"type:varchar(20);not null;index"`
	PaymentMethod   string            `json:"payment_method" gorm:"size:50"`

	Amount    float64 `json:"amount" gorm:"type:decimal(10,2);not null"`
	Currency  string  `json:"currency" gorm:"size:3;not null;default:'USD'"`
	FeeAmount float64 `json:"fee_amount" gorm:"type:decimal(10,2);default:0"`
	NetAmount float64 `json:"net_amount" gorm:"type:decimal(10,2);default:0"`

	// Gateway identifiers are alternate keys, never the primary identity: the
	// order id is assigned at creation, the capture id only at settlement, and
	// a transaction may exist before either is known.
	GatewayOrderID   string `json:"gateway_order_id" gorm:"size:255;index"`
	GatewayCaptureID string `json:"gateway_capture_id" gorm:"size:255;index"`
	GatewayRefundID  string `json:"gateway_refund_id" gorm:"size:255;index"`
	ReferenceID      string `json:"reference_id" gorm:"size:255;index"`

	SaleID               *uuid.UUID      `json:"sale_id" gorm:"type:uuid;index"`
	ParentTransactionID  *uuid.UUID      `json:"parent_transaction_id" gorm:"type:uuid;index"`
	Customer             ContactSnapshot `json:"customer" gorm:"embedded;embeddedPrefix:customer_"`
	RefundedAmount       float64         `json:"refunded_amount" gorm:"type:decimal(10,2);default:0"`

	Metadata    JSONB      `json:"metadata" gorm:"type:jsonb"`
	Notes       NoteLog    `json:"notes" gorm:"type:jsonb"`
	ProcessedAt *time.Time `json:"processed_at"`

	// Relationships
	Sale *Sale `json:"sale,omitempty" gorm:"foreignKey:SaleID"`
}

// AppendNote adds an entry to the notes log. The log is additive; existing
// entries are never rewritten.
func (t *Transaction) AppendNote(source, message string) {
	t.Notes = append(t.Notes, Note{
		At:      time.Now().UTC(),
		Source:  source,
		Message: message,
	})
}

// IsTerminal reports whether the primary payment flow can no longer move this
// transaction. Refund bookkeeping and notes/metadata appends stay legal.
func (t *Transaction) IsTerminal() bool {
	switch t.Status {
	case TransactionStatusCompleted, TransactionStatusFailed,
		TransactionStatusCancelled, TransactionStatusRefunded:
		return true
	}
	return false
}

// WebhookEvent records every verified inbound gateway event for audit and
// duplicate-delivery observation. Provider + ProviderEventID is unique.
type WebhookEvent struct {
	BaseModel
	Provider        PaymentGateway `json:"provider" gorm:"type:varchar(20);not null;index:ux_webhook_events_provider_event,unique,priority:1"`
	ProviderEventID string         `json:"provider_event_id" gorm:"size:255;not null;index:ux_webhook_events_provider_event,unique,priority:2"`
	EventType       string         `json:"event_type" gorm:"size:100;index"`
	Payload         JSONB          `json:"payload" gorm:"type:jsonb"`
	TransactionID   *uuid.UUID     `json:"transaction_id" gorm:"type:uuid;index"`
	ProcessedAt     *time.Time     `json:"processed_at"`
	ProcessingError string         `json:"processing_error,omitempty" gorm:"type:text"`
}
