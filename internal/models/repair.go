// internal/models/repair.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type RepairTicket struct {
	BaseModel
	StoreID      uuid.UUID    `json:"store_id" gorm:"type:uuid;not null;index"`
	CustomerID   uuid.UUID    `json:"customer_id" gorm:"type:uuid;not null;index"`
	TicketNumber string       `json:"ticket_number" gorm:"size:20;uniqueIndex;not null"`
	DeviceType   string       `json:"device_type" gorm:"size:100;not null"`
	DeviceModel  string       `json:"device_model" gorm:"size:100"`
	SerialNumber string       `json:"serial_number" gorm:"size:100"`
	Issue        string       `json:"issue" gorm:"type:text;not null"`
	Diagnosis    string       `json:"diagnosis" gorm:"type:text"`
	Status       RepairStatus `json:"status" gorm:"type:varchar(20);default:'received';index"`
	Quote        float64      `json:"quote" gorm:"type:decimal(10,2);default:0"`
	Notes        NoteLog      `json:"notes" gorm:"type:jsonb"`
	PromisedAt   *time.Time   `json:"promised_at"`
	CompletedAt  *time.Time   `json:"completed_at"`

	// Relationships
	Customer Customer `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
}

// repairTransitions lists the legal status moves for a ticket. Cancellation is
// allowed from any non-final status.
var repairTransitions = map[RepairStatus][]RepairStatus{
	RepairStatusReceived:      {RepairStatusDiagnosing, RepairStatusCancelled},
	RepairStatusDiagnosing:    {RepairStatusAwaitingParts, RepairStatusInProgress, RepairStatusCancelled},
	RepairStatusAwaitingParts: {RepairStatusInProgress, RepairStatusCancelled},
	RepairStatusInProgress:    {RepairStatusReady, RepairStatusCancelled},
	RepairStatusReady:         {RepairStatusPickedUp, RepairStatusCancelled},
}

func (r *RepairTicket) AppendNote(source, message string) {
	r.Notes = append(r.Notes, Note{
		At:      time.Now().UTC(),
		Source:  source,
		Message: message,
	})
}

func (r *RepairTicket) CanTransitionTo(target RepairStatus) bool {
	for _, next := range repairTransitions[r.Status] {
		if next == target {
			return true
		}
	}
	return false
}
