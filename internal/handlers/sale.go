// internal/handlers/sale.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/storelink/pos-backend/internal/i18n"
	"github.com/storelink/pos-backend/internal/services"
	"github.com/storelink/pos-backend/internal/utils"
)

type SaleHandler struct {
	saleService *services.SaleService
}

func NewSaleHandler(saleService *services.SaleService) *SaleHandler {
	return &SaleHandler{
		saleService: saleService,
	}
}

// POST /sales
func (h *SaleHandler) Create(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	storeID, ok := storeScope(c)
	if !ok {
		return
	}

	cashierIDStr, ok := utils.GetUserIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	cashierID, err := uuid.Parse(cashierIDStr)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	sale, err := h.saleService.Create(storeID, cashierID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, sale)
}

// GET /sales
func (h *SaleHandler) List(c *gin.Context) {
	storeID, ok := storeScope(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	result, err := h.saleService.List(storeID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, *result)
}

// GET /sales/:id
func (h *SaleHandler) Get(c *gin.Context) {
	storeID, ok := storeScope(c)
	if !ok {
		return
	}
	saleID, ok := pathID(c, "id")
	if !ok {
		return
	}

	sale, err := h.saleService.Get(storeID, saleID)
	if err != nil {
		utils.NotFoundResponse(c, "sale")
		return
	}

	utils.SuccessResponse(c, sale)
}

// POST /sales/:id/void
func (h *SaleHandler) Void(c *gin.Context) {
	storeID, ok := storeScope(c)
	if !ok {
		return
	}
	saleID, ok := pathID(c, "id")
	if !ok {
		return
	}

	sale, err := h.saleService.Void(storeID, saleID)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, sale)
}
