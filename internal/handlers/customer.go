// internal/handlers/customer.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/storelink/pos-backend/internal/i18n"
	"github.com/storelink/pos-backend/internal/services"
	"github.com/storelink/pos-backend/internal/utils"
)

type CustomerHandler struct {
	customerService *services.CustomerService
}

func NewCustomerHandler(customerService *services.CustomerService) *CustomerHandler {
	return &CustomerHandler{
		customerService: customerService,
	}
}

// POST /customers
func (h *CustomerHandler) Create(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	storeID, ok := storeScope(c)
	if !ok {
		return
	}

	var req services.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	customer, err := h.customerService.Create(storeID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, customer)
}

// GET /customers
func (h *CustomerHandler) List(c *gin.Context) {
	storeID, ok := storeScope(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	result, err := h.customerService.List(storeID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, *result)
}

// GET /customers/:id
func (h *CustomerHandler) Get(c *gin.Context) {
	storeID, ok := storeScope(c)
	if !ok {
		return
	}
	customerID, ok := pathID(c, "id")
	if !ok {
		return
	}

	customer, err := h.customerService.Get(storeID, customerID)
	if err != nil {
		utils.NotFoundResponse(c, "customer")
		return
	}

	utils.SuccessResponse(c, customer)
}

// PUT /customers/:id
func (h *CustomerHandler) Update(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	storeID, ok := storeScope(c)
	if !ok {
		return
	}
	customerID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	customer, err := h.customerService.Update(storeID, customerID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, customer)
}

// DELETE /customers/:id
func (h *CustomerHandler) Delete(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	storeID, ok := storeScope(c)
	if !ok {
		return
	}
	customerID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.customerService.Delete(storeID, customerID); err != nil {
		utils.NotFoundResponse(c, "customer")
		return
	}

	utils.SuccessResponse(c, gin.H{"message": i18n.T(lang, i18n.KeySuccess)})
}

// GET /customers/:id/history
func (h *CustomerHandler) History(c *gin.Context) {
	storeID, ok := storeScope(c)
	if !ok {
		return
	}
	customerID, ok := pathID(c, "id")
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	result, err := h.customerService.History(storeID, customerID, params)
	if err != nil {
		utils.NotFoundResponse(c, "customer")
		return
	}

	utils.PaginatedResponse(c, *result)
}
