// internal/services/product_service.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storelink/pos-backend/internal/config"
	"github.com/storelink/pos-backend/internal/models"
	"github.com/storelink/pos-backend/internal/utils"
)

type ProductService struct {
	db  *gorm.DB
	cfg *config.Config
}

type CreateProductRequest struct {
	SKU         string                 `json:"sku" validate:"required,sku"`
	Name        string                 `json:"name" validate:"required,min=1,max=255"`
	Description string                 `json:"description,omitempty"`
	Category    string                 `json:"category,omitempty"`
	Price       float64                `json:"price" validate:"required,gt=0"`
	Cost        float64                `json:"cost,omitempty" validate:"omitempty,gte=0"`
	Quantity    int                    `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	Images      []string               `json:"images,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
}

type UpdateProductRequest struct {
	Name        *string                `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string                `json:"description,omitempty"`
	Category    *string                `json:"category,omitempty"`
	Price       *float64               `json:"price,omitempty" validate:"omitempty,gt=0"`
	Cost        *float64               `json:"cost,omitempty" validate:"omitempty,gte=0"`
	Quantity    *int                   `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	Status      *models.ProductStatus  `json:"status,omitempty"`
	Images      []string               `json:"images,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
}

func NewProductService(db *gorm.DB, cfg *config.Config) *ProductService {
	return &ProductService{
		db:  db,
		cfg: cfg,
	}
}

func (s *ProductService) Create(storeID uuid.UUID, req *CreateProductRequest) (*models.Product, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	sku := strings.ToUpper(strings.TrimSpace(req.SKU))

	var existing models.Product
	if err := s.db.Where("store_id = ? AND sku = ?", storeID, sku).First(&existing).Error; err == nil {
		return nil, errors.New("product with this SKU already exists")
	}

	product := &models.Product{
		StoreID:     storeID,
		SKU:         sku,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Cost:        req.Cost,
		Quantity:    req.Quantity,
		Status:      models.ProductStatusActive,
		Images:      pq.StringArray(req.Images),
		Tags:        pq.StringArray(req.Tags),
		Attributes:  models.JSONB(req.Attributes),
	}
	if product.Quantity == 0 {
		product.Status = models.ProductStatusOutOfStock
	}

	if err := s.db.Create(product).Error; err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return product, nil
}

func (s *ProductService) Get(storeID, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.Where("store_id = ?", storeID).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("product not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &product, nil
}

func (s *ProductService) List(storeID uuid.UUID, params utils.PaginationParams) (*utils.PaginationResult, error) {
	query := s.db.Model(&models.Product{}).Where("store_id = ?", storeID)

	if params.Search != "" {
		search := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", search, search)
	}
	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	var products []models.Product
	query = utils.ApplySort(query, params, []string{"created_at", "name", "price", "quantity", "sales_count"})
	query = utils.ApplyPagination(query, params)
	if err := query.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	result := utils.CreatePaginationResult(products, total, params)
	return &result, nil
}

func (s *ProductService) Update(storeID, productID uuid.UUID, req *UpdateProductRequest) (*models.Product, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	product, err := s.Get(storeID, productID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Cost != nil {
		product.Cost = *req.Cost
	}
	if req.Quantity != nil {
		product.Quantity = *req.Quantity
		if product.Status == models.ProductStatusOutOfStock && *req.Quantity > 0 {
			product.Status = models.ProductStatusActive
		}
		if *req.Quantity == 0 && product.Status == models.ProductStatusActive {
			product.Status = models.ProductStatusOutOfStock
		}
	}
	if req.Status != nil {
		product.Status = *req.Status
	}
	if req.Images != nil {
		product.Images = pq.StringArray(req.Images)
	}
	if req.Tags != nil {
		product.Tags = pq.StringArray(req.Tags)
	}
	if req.Attributes != nil {
		product.Attributes = models.JSONB(req.Attributes)
	}

	if err := s.db.Save(product).Error; err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return product, nil
}

func (s *ProductService) Delete(storeID, productID uuid.UUID) error {
	product, err := s.Get(storeID, productID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(product).Error; err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// AdjustStock applies a quantity delta inside a row lock. Negative deltas
// fail when the product does not have enough stock.
func (s *ProductService) AdjustStock(tx *gorm.DB, productID uuid.UUID, delta int) error {
	var product models.Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("product not found")
		}
		return fmt.Errorf("database error: %w", err)
	}

	newQuantity := product.Quantity + delta
	if newQuantity < 0 {
		return fmt.Errorf("insufficient stock for %s: have %d, need %d", product.SKU, product.Quantity, -delta)
	}

	updates := map[string]interface{}{"quantity": newQuantity}
	if delta < 0 {
		updates["sales_count"] = gorm.Expr("sales_count + ?", -delta)
	}
	if newQuantity == 0 && product.Status == models.ProductStatusActive {
		updates["status"] = models.ProductStatusOutOfStock
	} else if newQuantity > 0 && product.Status == models.ProductStatusOutOfStock {
		updates["status"] = models.ProductStatusActive
	}

	if err := tx.Model(&product).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to adjust stock: %w", err)
	}
	return nil
}
