// internal/handlers/webhook_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storelink/pos-backend/internal/gateways"
	"github.com/storelink/pos-backend/internal/models"
	"github.com/storelink/pos-backend/internal/reconcile"
	"github.com/storelink/pos-backend/internal/services"
	"github.com/storelink/pos-backend/internal/utils"
)

// badSignatureClient rejects every webhook delivery.
type badSignatureClient struct {
	name models.PaymentGateway
}

func (c *badSignatureClient) Name() models.PaymentGateway { return c.name }

func (c *badSignatureClient) CreateOrder(context.Context, *models.Transaction) (*gateways.OrderResult, error) {
	return nil, nil
}

func (c *badSignatureClient) Capture(context.Context, *models.Transaction) (*reconcile.Event, error) {
	return nil, nil
}

func (c *badSignatureClient) Refund(context.Context, *models.Transaction, float64, string) (*reconcile.Event, error) {
	return nil, nil
}

func (c *badSignatureClient) Cancel(context.Context, *models.Transaction) error { return nil }

func (c *badSignatureClient) VerifyWebhook(context.Context, *http.Request, []byte) (*reconcile.Event, error) {
	return nil, gateways.ErrSignatureInvalid
}

func setupWebhookRouter(registry gateways.Registry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := services.NewTransactionService(nil, nil, registry, nil)
	handler := NewWebhookHandler(svc)

	r := gin.New()
	r.POST("/api/v1/webhooks/:provider", handler.Receive)
	return r
}

func postWebhook(r *gin.Engine, provider, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/v1/webhooks/"+provider, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookUnknownProvider(t *testing.T) {
	r := setupWebhookRouter(gateways.Registry{})

	w := postWebhook(r, "square", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
}

func TestWebhookCashNotAccepted(t *testing.T) {
	r := setupWebhookRouter(gateways.Registry{})

	w := postWebhook(r, "cash", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookUnconfiguredProvider(t *testing.T) {
	// Valid gateway name without a registered client. The gateway should
	// retry, so the answer is a server error rather than a rejection.
	r := setupWebhookRouter(gateways.Registry{})

	w := postWebhook(r, "stripe", `{}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhookBadSignature(t *testing.T) {
	registry := gateways.Registry{
		models.GatewayStripe: &badSignatureClient{name: models.GatewayStripe},
	}
	r := setupWebhookRouter(registry)

	w := postWebhook(r, "stripe", `{"id": "evt_1"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_SIGNATURE", resp.Error.Code)
}
