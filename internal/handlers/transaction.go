// internal/handlers/transaction.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/storelink/pos-backend/internal/i18n"
	"github.com/storelink/pos-backend/internal/reconcile"
	"github.com/storelink/pos-backend/internal/services"
	"github.com/storelink/pos-backend/internal/utils"
)

type TransactionHandler struct {
	transactionService *services.TransactionService
}

func NewTransactionHandler(transactionService *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

// POST /transactions
func (h *TransactionHandler) Create(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	storeID, ok := storeScope(c)
	if !ok {
		return
	}

	var req services.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	resp, err := h.transactionService.CreatePayment(c.Request.Context(), storeID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, resp)
}

// GET /transactions
func (h *TransactionHandler) List(c *gin.Context) {
	storeID, ok := storeScope(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	result, err := h.transactionService.List(storeID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, *result)
}

// GET /transactions/:id
func (h *TransactionHandler) Get(c *gin.Context) {
	storeID, ok := storeScope(c)
	if !ok {
		return
	}
	txnID, ok := pathID(c, "id")
	if !ok {
		return
	}

	txn, err := h.transactionService.Get(storeID, txnID)
	if err != nil {
		utils.NotFoundResponse(c, "payment")
		return
	}

	utils.SuccessResponse(c, txn)
}

// POST /transactions/:id/capture
func (h *TransactionHandler) Capture(c *gin.Context) {
	storeID, ok := storeScope(c)
	if !ok {
		return
	}
	txnID, ok := pathID(c, "id")
	if !ok {
		return
	}

	txn, err := h.transactionService.Capture(c.Request.Context(), storeID, txnID)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}

	utils.SuccessResponse(c, txn)
}

// POST /transactions/:id/cancel
func (h *TransactionHandler) Cancel(c *gin.Context) {
	storeID, ok := storeScope(c)
	if !ok {
		return
	}
	txnID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason,omitempty"`
	}
	// Body is optional on cancel
	_ = c.ShouldBindJSON(&req)

	txn, err := h.transactionService.Cancel(c.Request.Context(), storeID, txnID, req.Reason)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}

	utils.SuccessResponse(c, txn)
}

// POST /transactions/:id/refund
func (h *TransactionHandler) Refund(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	storeID, ok := storeScope(c)
	if !ok {
		return
	}
	txnID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req services.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	txn, err := h.transactionService.Refund(c.Request.Context(), storeID, txnID, &req)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}

	utils.SuccessResponse(c, txn)
}

func (h *TransactionHandler) writeEngineError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)

	switch {
	case errors.Is(err, reconcile.ErrNotFound):
		utils.NotFoundResponse(c, "payment")
	case errors.Is(err, reconcile.ErrTerminalState):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyPaymentAlreadyFinal))
	case errors.Is(err, reconcile.ErrInvalidInput):
		utils.BadRequestResponse(c, err.Error(), nil)
	default:
		utils.UnprocessableResponse(c, err.Error())
	}
}
