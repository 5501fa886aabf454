// internal/models/product.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Product struct {
	BaseModel
	StoreID     uuid.UUID      `json:"store_id" gorm:"type:uuid;not null;index;index:ux_products_store_sku,unique,priority:1"`
	SKU         string         `json:"sku" gorm:"size:100;not null;index:ux_products_store_sku,unique,priority:2"`
	Name        string         `json:"name" gorm:"size:255;not null"`
	Description string         `json:"description" gorm:"type:text"`
	Category    string         `json:"category" gorm:"size:100;index"`
	Price       float64        `json:"price" gorm:"type:decimal(10,2);not null"`
	Cost        float64        `json:"cost" gorm:"type:decimal(10,2);default:0"`
	Quantity    int            `json:"quantity" gorm:"default:0"`
	Status      ProductStatus  `json:"status" gorm:"type:varchar(20);default:'active';index"`
	Images      pq.StringArray `json:"images" gorm:"type:text[]"`
	Tags        pq.StringArray `json:"tags" gorm:"type:text[]"`
	Attributes  JSONB          `json:"attributes" gorm:"type:jsonb"`
	SalesCount  int64          `json:"sales_count" gorm:"default:0"`
}
