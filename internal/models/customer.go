// internal/models/customer.go
package models

import (
	"github.com/google/uuid"
)

type Customer struct {
	BaseModel
	StoreID   uuid.UUID `json:"store_id" gorm:"type:uuid;not null;index"`
	FirstName string    `json:"first_name" gorm:"size:100;not null"`
	LastName  string    `json:"last_name" gorm:"size:100"`
	Email     string    `json:"email" gorm:"size:255;index"`
	Phone     string    `json:"phone" gorm:"size:50;index"`
	Address   string    `json:"address" gorm:"type:text"`
	Notes     string    `json:"notes" gorm:"type:text"`

	// Relationships
	Sales   []Sale         `json:"sales,omitempty" gorm:"foreignKey:CustomerID"`
	Repairs []RepairTicket `json:"repairs,omitempty" gorm:"foreignKey:CustomerID"`
}

func (c *Customer) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Snapshot returns the denormalized contact copy embedded into transactions
// and sales at the time they are created.
func (c *Customer) Snapshot() ContactSnapshot {
	return ContactSnapshot{
		Name:  c.FullName(),
		Email: c.Email,
		Phone: c.Phone,
	}
}
