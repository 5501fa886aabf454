// internal/handlers/product.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/storelink/pos-backend/internal/i18n"
	"github.com/storelink/pos-backend/internal/services"
	"github.com/storelink/pos-backend/internal/utils"
)

type ProductHandler struct {
	productService *services.ProductService
	storageService *services.StorageService
}

func NewProductHandler(productService *services.ProductService, storageService *services.StorageService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		storageService: storageService,
	}
}

// POST /products
func (h *ProductHandler) Create(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	storeID, ok := storeScope(c)
	if !ok {
		return
	}

	var req services.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	product, err := h.productService.Create(storeID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, product)
}

// GET /products
func (h *ProductHandler) List(c *gin.Context) {
	storeID, ok := storeScope(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	result, err := h.productService.List(storeID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, *result)
}

// GET /products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	storeID, ok := storeScope(c)
	if !ok {
		return
	}
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}

	product, err := h.productService.Get(storeID, productID)
	if err != nil {
		utils.NotFoundResponse(c, "product")
		return
	}

	utils.SuccessResponse(c, product)
}

// PUT /products/:id
func (h *ProductHandler) Update(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	storeID, ok := storeScope(c)
	if !ok {
		return
	}
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	product, err := h.productService.Update(storeID, productID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, product)
}

// DELETE /products/:id
func (h *ProductHandler) Delete(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	storeID, ok := storeScope(c)
	if !ok {
		return
	}
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.productService.Delete(storeID, productID); err != nil {
		utils.NotFoundResponse(c, "product")
		return
	}

	utils.SuccessResponse(c, gin.H{"message": i18n.T(lang, i18n.KeyProductDeleted)})
}

// POST /products/:id/images
func (h *ProductHandler) UploadImage(c *gin.Context) {
	storeID, ok := storeScope(c)
	if !ok {
		return
	}
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}

	product, err := h.productService.Get(storeID, productID)
	if err != nil {
		utils.NotFoundResponse(c, "product")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "file is required", nil)
		return
	}
	defer file.Close()

	result, err := h.storageService.UploadFile(file, header, h.storageService.GetDefaultUploadOptions("products"))
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	images := append(product.Images, result.URL)
	updated, err := h.productService.Update(storeID, productID, &services.UpdateProductRequest{Images: images})
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"product": updated,
		"upload":  result,
	})
}
