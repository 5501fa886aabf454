// internal/models/sale.go
package models

import (
	"github.com/google/uuid"
)

type Sale struct {
	BaseModel
	StoreID    uuid.UUID       `json:"store_id" gorm:"type:uuid;not null;index"`
	CashierID  uuid.UUID       `json:"cashier_id" gorm:"type:uuid;not null;index"`
	CustomerID *uuid.UUID      `json:"customer_id" gorm:"type:uuid;index"`
	Customer   ContactSnapshot `json:"customer" gorm:"embedded;embeddedPrefix:customer_"`
	Status     SaleStatus      `json:"status" gorm:"type:varchar(20);default:'open';index"`

	Subtotal  float64 `json:"subtotal" gorm:"type:decimal(10,2);not null"`
	TaxAmount float64 `json:"tax_amount" gorm:"type:decimal(10,2);default:0"`
	Discount  float64 `json:"discount" gorm:"type:decimal(10,2);default:0"`
	Total     float64 `json:"total" gorm:"type:decimal(10,2);not null"`
	Currency  string  `json:"currency" gorm:"size:3;not null;default:'USD'"`

	// Relationships
	Items        []SaleItem    `json:"items,omitempty" gorm:"foreignKey:SaleID"`
	Transactions []Transaction `json:"transactions,omitempty" gorm:"foreignKey:SaleID"`
}

// SaleItem snapshots product name and unit price at purchase time so later
// catalog edits never change recorded sales.
type SaleItem struct {
	BaseModel
	SaleID      uuid.UUID `json:"sale_id" gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index"`
	ProductName string    `json:"product_name" gorm:"size:255;not null"`
	SKU         string    `json:"sku" gorm:"size:100"`
	UnitPrice   float64   `json:"unit_price" gorm:"type:decimal(10,2);not null"`
	Quantity    int       `json:"quantity" gorm:"not null"`
	LineTotal   float64   `json:"line_total" gorm:"type:decimal(10,2);not null"`
}
