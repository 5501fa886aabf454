// internal/services/customer_service.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storelink/pos-backend/internal/config"
	"github.com/storelink/pos-backend/internal/models"
	"github.com/storelink/pos-backend/internal/utils"
)

type CustomerService struct {
	db  *gorm.DB
	cfg *config.Config
}

type CreateCustomerRequest struct {
	FirstName string `json:"first_name" validate:"required,min=1,max=100"`
	LastName  string `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	Phone     string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Address   string `json:"address,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type UpdateCustomerRequest struct {
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Address   *string `json:"address,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

func NewCustomerService(db *gorm.DB, cfg *config.Config) *CustomerService {
	return &CustomerService{
		db:  db,
		cfg: cfg,
	}
}

func (s *CustomerService) Create(storeID uuid.UUID, req *CreateCustomerRequest) (*models.Customer, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	customer := &models.Customer{
		StoreID:   storeID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     strings.ToLower(req.Email),
		Phone:     req.Phone,
		Address:   req.Address,
		Notes:     req.Notes,
	}

	if err := s.db.Create(customer).Error; err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	return customer, nil
}

func (s *CustomerService) Get(storeID, customerID uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := s.db.Where("store_id = ?", storeID).First(&customer, "id = ?", customerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("customer not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &customer, nil
}

func (s *CustomerService) List(storeID uuid.UUID, params utils.PaginationParams) (*utils.PaginationResult, error) {
	query := s.db.Model(&models.Customer{}).Where("store_id = ?", storeID)

	if params.Search != "" {
		search := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?",
			search, search, search, search,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count customers: %w", err)
	}

	var customers []models.Customer
	query = utils.ApplySort(query, params, []string{"created_at", "first_name", "last_name", "email"})
	query = utils.ApplyPagination(query, params)
	if err := query.Find(&customers).Error; err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	result := utils.CreatePaginationResult(customers, total, params)
	return &result, nil
}

func (s *CustomerService) Update(storeID, customerID uuid.UUID, req *UpdateCustomerRequest) (*models.Customer, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	customer, err := s.Get(storeID, customerID)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		customer.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		customer.LastName = *req.LastName
	}
	if req.Email != nil {
		customer.Email = strings.ToLower(*req.Email)
	}
	if req.Phone != nil {
		customer.Phone = *req.Phone
	}
	if req.Address != nil {
		customer.Address = *req.Address
	}
	if req.Notes != nil {
		customer.Notes = *req.Notes
	}

	if err := s.db.Save(customer).Error; err != nil {
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}

	return customer, nil
}

func (s *CustomerService) Delete(storeID, customerID uuid.UUID) error {
	customer, err := s.Get(storeID, customerID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(customer).Error; err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	return nil
}

// History returns the customer's sales with items and payment transactions.
func (s *CustomerService) History(storeID, customerID uuid.UUID, params utils.PaginationParams) (*utils.PaginationResult, error) {
	if _, err := s.Get(storeID, customerID); err != nil {
		return nil, err
	}

	query := s.db.Model(&models.Sale{}).
		Where("store_id = ? AND customer_id = ?", storeID, customerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count sales: %w", err)
	}

	var sales []models.Sale
	query = utils.ApplySort(query, params, []string{"created_at", "total"})
	query = utils.ApplyPagination(query, params)
	if err := query.Preload("Items").Preload("Transactions").Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}

	result := utils.CreatePaginationResult(sales, total, params)
	return &result, nil
}
