// internal/handlers/repair.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/storelink/pos-backend/internal/i18n"
	"github.com/storelink/pos-backend/internal/services"
	"github.com/storelink/pos-backend/internal/utils"
)

type RepairHandler struct {
	repairService *services.RepairService
}

func NewRepairHandler(repairService *services.RepairService) *RepairHandler {
	return &RepairHandler{
		repairService: repairService,
	}
}

// POST /repairs
func (h *RepairHandler) Create(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	storeID, ok := storeScope(c)
	if !ok {
		return
	}

	var req services.CreateRepairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	ticket, err := h.repairService.Create(storeID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, ticket)
}

// GET /repairs
func (h *RepairHandler) List(c *gin.Context) {
	storeID, ok := storeScope(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	result, err := h.repairService.List(storeID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, *result)
}

// GET /repairs/:id
func (h *RepairHandler) Get(c *gin.Context) {
	storeID, ok := storeScope(c)
	if !ok {
		return
	}
	ticketID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ticket, err := h.repairService.Get(storeID, ticketID)
	if err != nil {
		utils.NotFoundResponse(c, "repair")
		return
	}

	utils.SuccessResponse(c, ticket)
}

// PUT /repairs/:id
func (h *RepairHandler) Update(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	storeID, ok := storeScope(c)
	if !ok {
		return
	}
	ticketID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateRepairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	ticket, err := h.repairService.Update(storeID, ticketID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, ticket)
}
