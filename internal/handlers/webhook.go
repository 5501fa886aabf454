// internal/handlers/webhook.go
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/storelink/pos-backend/internal/gateways"
	"github.com/storelink/pos-backend/internal/models"
	"github.com/storelink/pos-backend/internal/services"
	"github.com/storelink/pos-backend/internal/utils"
)

type WebhookHandler struct {
	transactionService *services.TransactionService
}

func NewWebhookHandler(transactionService *services.TransactionService) *WebhookHandler {
	return &WebhookHandler{
		transactionService: transactionService,
	}
}

// POST /webhooks/:provider
//
// The body is read raw before anything touches it: signature schemes sign the
// exact bytes sent, and a re-serialized body would fail verification. A bad
// signature gets 400 so the gateway retries; everything else gets 200 even
// when the event is ignored or matches nothing, so providers do not retry
// deliveries the system has already judged.
func (h *WebhookHandler) Receive(c *gin.Context) {
	provider := models.PaymentGateway(c.Param("provider"))
	if !provider.Valid() || provider == models.GatewayCash {
		utils.BadRequestResponse(c, "unsupported payment provider", nil)
		return
	}

	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.BadRequestResponse(c, "unable to read request body", nil)
		return
	}

	record, err := h.transactionService.HandleWebhook(c.Request.Context(), provider, c.Request, rawBody)
	if err != nil {
		if errors.Is(err, gateways.ErrSignatureInvalid) {
			logrus.WithField("provider", provider).Warn("Webhook rejected: bad signature")
			utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_SIGNATURE", "webhook signature verification failed", nil)
			return
		}
		// Internal failure: let the gateway retry later.
		logrus.WithError(err).WithField("provider", provider).Error("Webhook processing failed")
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"event_id": record.ProviderEventID,
		"received": true,
	})
}
