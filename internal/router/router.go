// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/storelink/pos-backend/internal/config"
	"github.com/storelink/pos-backend/internal/gateways"
	"github.com/storelink/pos-backend/internal/handlers"
	"github.com/storelink/pos-backend/internal/middleware"
	"github.com/storelink/pos-backend/internal/models"
	"github.com/storelink/pos-backend/internal/services"
	"github.com/storelink/pos-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize gateway clients. Unconfigured gateways stay out of the
	// registry so requests naming them fail fast.
	registry := gateways.Registry{}
	if cfg.Payment.Stripe.SecretKey != "" {
		registry[models.GatewayStripe] = gateways.NewStripeClient(cfg.Payment.Stripe)
	}
	if cfg.Payment.PayPal.ClientID != "" {
		paypalClient, err := gateways.NewPayPalClient(cfg.Payment.PayPal)
		if err != nil {
			logrus.WithError(err).Error("Failed to initialize PayPal client")
		} else {
			registry[models.GatewayPayPal] = paypalClient
		}
	}
	if cfg.Payment.Braintree.MerchantID != "" {
		registry[models.GatewayBraintree] = gateways.NewBraintreeClient(cfg.Payment.Braintree)
	}

	// Initialize services
	notificationService := services.NewNotificationService(db, cfg)
	storageService, _ := services.NewStorageService(cfg)
	authService := services.NewAuthService(db, cfg)
	productService := services.NewProductService(db, cfg)
	customerService := services.NewCustomerService(db, cfg)
	saleService := services.NewSaleService(db, cfg, productService)
	repairService := services.NewRepairService(db, cfg, notificationService)
	transactionService := services.NewTransactionService(db, cfg, registry, notificationService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	productHandler := handlers.NewProductHandler(productService, storageService)
	customerHandler := handlers.NewCustomerHandler(customerService)
	saleHandler := handlers.NewSaleHandler(saleService)
	repairHandler := handlers.NewRepairHandler(repairService)
	transactionHandler := handlers.NewTransactionHandler(transactionService)
	webhookHandler := handlers.NewWebhookHandler(transactionService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.CORS([]string{cfg.Frontend.BaseURL}))
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Webhook routes carry their own verification; no auth middleware.
		webhooks := v1.Group("/webhooks")
		webhooks.Use(middleware.WebhookRateLimit())
		{
			webhooks.POST("/:provider", webhookHandler.Receive)
		}

		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/register", middleware.AuthRequired(), middleware.AdminRequired(), authHandler.Register)
			auth.GET("/me", middleware.AuthRequired(), authHandler.Profile)
			auth.POST("/change-password", middleware.AuthRequired(), authHandler.ChangePassword)
		}

		// Product routes
		products := v1.Group("/products")
		products.Use(middleware.AuthRequired())
		{
			products.GET("", productHandler.List)
			products.GET("/:id", productHandler.Get)
			products.POST("", middleware.ManagerRequired(), productHandler.Create)
			products.PUT("/:id", middleware.ManagerRequired(), productHandler.Update)
			products.DELETE("/:id", middleware.ManagerRequired(), productHandler.Delete)
			products.POST("/:id/images", middleware.ManagerRequired(), productHandler.UploadImage)
		}

		// Customer routes
		customers := v1.Group("/customers")
		customers.Use(middleware.AuthRequired())
		{
			customers.GET("", customerHandler.List)
			customers.GET("/:id", customerHandler.Get)
			customers.GET("/:id/history", customerHandler.History)
			customers.POST("", customerHandler.Create)
			customers.PUT("/:id", customerHandler.Update)
			customers.DELETE("/:id", middleware.ManagerRequired(), customerHandler.Delete)
		}

		// Sale routes
		sales := v1.Group("/sales")
		sales.Use(middleware.AuthRequired())
		{
			sales.GET("", saleHandler.List)
			sales.GET("/:id", saleHandler.Get)
			sales.POST("", saleHandler.Create)
			sales.POST("/:id/void", middleware.ManagerRequired(), saleHandler.Void)
		}

		// Repair routes
		repairs := v1.Group("/repairs")
		repairs.Use(middleware.AuthRequired())
		{
			repairs.GET("", repairHandler.List)
			repairs.GET("/:id", repairHandler.Get)
			repairs.POST("", repairHandler.Create)
			repairs.PUT("/:id", repairHandler.Update)
		}

		// Payment transaction routes
		transactions := v1.Group("/transactions")
		transactions.Use(middleware.AuthRequired())
		{
			transactions.GET("", transactionHandler.List)
			transactions.GET("/:id", transactionHandler.Get)
			transactions.POST("", transactionHandler.Create)
			transactions.POST("/:id/capture", transactionHandler.Capture)
			transactions.POST("/:id/cancel", transactionHandler.Cancel)
			transactions.POST("/:id/refund", middleware.ManagerRequired(), transactionHandler.Refund)
		}
	}

	return r
}
