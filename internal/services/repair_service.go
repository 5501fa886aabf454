// internal/services/repair_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storelink/pos-backend/internal/config"
	"github.com/storelink/pos-backend/internal/models"
	"github.com/storelink/pos-backend/internal/utils"
)

type RepairService struct {
	db            *gorm.DB
	cfg           *config.Config
	notifications *NotificationService
}

type CreateRepairRequest struct {
	CustomerID   string     `json:"customer_id" validate:"required,uuid4"`
	DeviceType   string     `json:"device_type" validate:"required,max=100"`
	DeviceModel  string     `json:"device_model,omitempty" validate:"omitempty,max=100"`
	SerialNumber string     `json:"serial_number,omitempty" validate:"omitempty,max=100"`
	Issue        string     `json:"issue" validate:"required"`
	Quote        float64    `json:"quote,omitempty" validate:"omitempty,gte=0"`
	PromisedAt   *time.Time `json:"promised_at,omitempty"`
}

type UpdateRepairRequest struct {
	Diagnosis  *string              `json:"diagnosis,omitempty"`
	Status     *models.RepairStatus `json:"status,omitempty"`
	Quote      *float64             `json:"quote,omitempty" validate:"omitempty,gte=0"`
	Note       string               `json:"note,omitempty"`
	PromisedAt *time.Time           `json:"promised_at,omitempty"`
}

func NewRepairService(db *gorm.DB, cfg *config.Config, notifications *NotificationService) *RepairService {
	return &RepairService{
		db:            db,
		cfg:           cfg,
		notifications: notifications,
	}
}

func (s *RepairService) Create(storeID uuid.UUID, req *CreateRepairRequest) (*models.RepairTicket, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return nil, errors.New("invalid customer ID")
	}

	var customer models.Customer
	if err := s.db.Where("store_id = ?", storeID).First(&customer, "id = ?", customerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("customer not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	ticketNumber, err := utils.GenerateTicketNumber()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ticket number: %w", err)
	}

	ticket := &models.RepairTicket{
		StoreID:      storeID,
		CustomerID:   customer.ID,
		TicketNumber: ticketNumber,
		DeviceType:   req.DeviceType,
		DeviceModel:  req.DeviceModel,
		SerialNumber: req.SerialNumber,
		Issue:        req.Issue,
		Status:       models.RepairStatusReceived,
		Quote:        req.Quote,
		PromisedAt:   req.PromisedAt,
	}

	if err := s.db.Create(ticket).Error; err != nil {
		return nil, fmt.Errorf("failed to create repair ticket: %w", err)
	}

	return ticket, nil
}

func (s *RepairService) Get(storeID, ticketID uuid.UUID) (*models.RepairTicket, error) {
	var ticket models.RepairTicket
	err := s.db.Where("store_id = ?", storeID).
		Preload("Customer").
		First(&ticket, "id = ?", ticketID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("repair ticket not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &ticket, nil
}

func (s *RepairService) List(storeID uuid.UUID, params utils.PaginationParams) (*utils.PaginationResult, error) {
	query := s.db.Model(&models.RepairTicket{}).Where("store_id = ?", storeID)

	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Search != "" {
		search := "%" + params.Search + "%"
		query = query.Where("ticket_number LIKE ? OR device_type ILIKE ? OR device_model ILIKE ?", search, search, search)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count repair tickets: %w", err)
	}

	var tickets []models.RepairTicket
	query = utils.ApplySort(query, params, []string{"created_at", "status", "promised_at"})
	query = utils.ApplyPagination(query, params)
	if err := query.Preload("Customer").Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to list repair tickets: %w", err)
	}

	result := utils.CreatePaginationResult(tickets, total, params)
	return &result, nil
}

func (s *RepairService) Update(storeID, ticketID uuid.UUID, req *UpdateRepairRequest) (*models.RepairTicket, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	ticket, err := s.Get(storeID, ticketID)
	if err != nil {
		return nil, err
	}

	if req.Status != nil && *req.Status != ticket.Status {
		if !ticket.CanTransitionTo(*req.Status) {
			return nil, fmt.Errorf("repair ticket cannot move from %s to %s", ticket.Status, *req.Status)
		}
		ticket.Status = *req.Status
		ticket.AppendNote("pos", fmt.Sprintf("status changed to %s", *req.Status))

		if *req.Status == models.RepairStatusReady {
			now := time.Now()
			ticket.CompletedAt = &now
			// Tell the customer their device is ready
			if s.notifications != nil && ticket.Customer.Email != "" {
				go s.notifications.SendRepairReady(ticket)
			}
		}
	}
	if req.Diagnosis != nil {
		ticket.Diagnosis = *req.Diagnosis
	}
	if req.Quote != nil {
		ticket.Quote = *req.Quote
	}
	if req.PromisedAt != nil {
		ticket.PromisedAt = req.PromisedAt
	}
	if req.Note != "" {
		ticket.AppendNote("pos", req.Note)
	}

	if err := s.db.Save(ticket).Error; err != nil {
		return nil, fmt.Errorf("failed to update repair ticket: %w", err)
	}

	return ticket, nil
}
