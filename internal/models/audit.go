// internal/models/audit.go
package models

import "github.com/google/uuid"

// AuditLog records mutating API requests for back-office review.
type AuditLog struct {
	BaseModel
	UserID       *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	StoreID      *uuid.UUID `json:"store_id" gorm:"type:uuid;index"`
	Action       string     `json:"action" gorm:"not null"`
	ResourceType string     `json:"resource_type" gorm:"index"`
	ResourceID   *uuid.UUID `json:"resource_id" gorm:"type:uuid"`
	IPAddress    string     `json:"ip_address"`
	UserAgent    string     `json:"user_agent"`
	NewValues    JSONB      `json:"new_values" gorm:"type:jsonb"`
}
