// internal/models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	StoreID      uuid.UUID  `json:"store_id" gorm:"type:uuid;not null;index"`
	Username     string     `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Email        string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string     `json:"-" gorm:"size:255;not null"`
	Role         UserRole   `json:"role" gorm:"type:varchar(20);not null;default:'cashier'"`
	Status       UserStatus `json:"status" gorm:"type:varchar(20);default:'active'"`
	LastLoginAt  *time.Time `json:"last_login_at"`

	// Relationships
	Store Store `json:"store,omitempty" gorm:"foreignKey:StoreID"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

// Store is the merchant account. Every transaction, sale, product, customer
// and repair ticket is scoped to exactly one store.
type Store struct {
	BaseModel
	Name     string `json:"name" gorm:"size:255;not null"`
	Email    string `json:"email" gorm:"size:255"`
	Phone    string `json:"phone" gorm:"size:50"`
	Address  string `json:"address" gorm:"type:text"`
	Currency string `json:"currency" gorm:"size:3;default:'USD'"`
	Settings JSONB  `json:"settings" gorm:"type:jsonb"`
}
