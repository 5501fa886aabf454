// internal/services/sale_service.go
package services

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storelink/pos-backend/internal/config"
	"github.com/storelink/pos-backend/internal/database"
	"github.com/storelink/pos-backend/internal/models"
	"github.com/storelink/pos-backend/internal/utils"
)

type SaleService struct {
	db       *gorm.DB
	cfg      *config.Config
	products *ProductService
}

type SaleItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type CreateSaleRequest struct {
	CustomerID *string           `json:"customer_id,omitempty" validate:"omitempty,uuid4"`
	Items      []SaleItemRequest `json:"items" validate:"required,min=1,dive"`
	Discount   float64           `json:"discount,omitempty" validate:"omitempty,gte=0"`
}

func NewSaleService(db *gorm.DB, cfg *config.Config, products *ProductService) *SaleService {
	return &SaleService{
		db:       db,
		cfg:      cfg,
		products: products,
	}
}

// Create builds a sale from the cart, snapshots product names and prices,
// and decrements stock. The whole operation runs in one database transaction
// so a stock failure on any line leaves nothing behind.
func (s *SaleService) Create(storeID, cashierID uuid.UUID, req *CreateSaleRequest) (*models.Sale, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var store models.Store
	if err := s.db.First(&store, "id = ?", storeID).Error; err != nil {
		return nil, fmt.Errorf("store not found: %w", err)
	}

	taxRate := 0.0
	if v, ok := store.Settings["tax_rate"].(float64); ok {
		taxRate = v
	}

	sale := &models.Sale{
		StoreID:   storeID,
		CashierID: cashierID,
		Status:    models.SaleStatusOpen,
		Currency:  store.Currency,
		Discount:  req.Discount,
	}

	if req.CustomerID != nil {
		customerID, err := uuid.Parse(*req.CustomerID)
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
		sale.CustomerID = &customer.ID
		sale.Customer = customer.Snapshot()
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		subtotal := 0.0
		items := make([]models.SaleItem, 0, len(req.Items))

		for _, line := range req.Items {
			productID, err := uuid.Parse(line.ProductID)
			if err != nil {
				return errors.New("invalid product ID")
			}

			var product models.Product
			if err := tx.Where("store_id = ?", storeID).First(&product, "id = ?", productID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errors.New("product not found")
				}
				return fmt.Errorf("database error: %w", err)
			}
			if product.Status == models.ProductStatusArchived {
				return fmt.Errorf("product %s is no longer sold", product.SKU)
			}

			if err := s.products.AdjustStock(tx, product.ID, -line.Quantity); err != nil {
				return err
			}

			lineTotal := roundMoney(product.Price * float64(line.Quantity))
			subtotal += lineTotal
			items = append(items, models.SaleItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				SKU:         product.SKU,
				UnitPrice:   product.Price,
				Quantity:    line.Quantity,
				LineTotal:   lineTotal,
			})
		}

		sale.Subtotal = roundMoney(subtotal)
		if sale.Discount > sale.Subtotal {
			return errors.New("discount exceeds subtotal")
		}
		sale.TaxAmount = roundMoney((sale.Subtotal - sale.Discount) * taxRate)
		sale.Total = roundMoney(sale.Subtotal - sale.Discount + sale.TaxAmount)

		if err := tx.Create(sale).Error; err != nil {
			return fmt.Errorf("failed to create sale: %w", err)
		}

		for i := range items {
			items[i].SaleID = sale.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("failed to create sale items: %w", err)
		}
		sale.Items = items

		return nil
	})
	if err != nil {
		return nil, err
	}

	return sale, nil
}

func (s *SaleService) Get(storeID, saleID uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.Where("store_id = ?", storeID).
		Preload("Items").
		Preload("Transactions").
		First(&sale, "id = ?", saleID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("sale not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &sale, nil
}

func (s *SaleService) List(storeID uuid.UUID, params utils.PaginationParams) (*utils.PaginationResult, error) {
	query := s.db.Model(&models.Sale{}).Where("store_id = ?", storeID)

	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count sales: %w", err)
	}

	var sales []models.Sale
	query = utils.ApplySort(query, params, []string{"created_at", "total", "status"})
	query = utils.ApplyPagination(query, params)
	if err := query.Preload("Items").Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}

	result := utils.CreatePaginationResult(sales, total, params)
	return &result, nil
}

// Void cancels an open sale and restocks its items. Paid sales cannot be
// voided; they go through the refund flow instead.
func (s *SaleService) Void(storeID, saleID uuid.UUID) (*models.Sale, error) {
	sale, err := s.Get(storeID, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != models.SaleStatusOpen {
		return nil, errors.New("only open sales can be voided")
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		for _, item := range sale.Items {
			if err := s.products.AdjustStock(tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		return tx.Model(sale).Update("status", models.SaleStatusVoided).Error
	})
	if err != nil {
		return nil, err
	}

	sale.Status = models.SaleStatusVoided
	return sale, nil
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
