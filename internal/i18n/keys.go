// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess      = "success"
	KeyError        = "error"
	KeyAccessDenied = "access_denied"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthUserNotFound       = "auth.user_not_found"
	KeyAuthUserExists         = "auth.user_exists"
	KeyAuthUserSuspended      = "auth.user_suspended"
	KeyAuthLoginSuccess       = "auth.login_success"
	KeyAuthLogoutSuccess      = "auth.logout_success"
	KeyAuthRegisterSuccess    = "auth.register_success"

	// Products
	KeyProductCreated    = "product.created"
	KeyProductUpdated    = "product.updated"
	KeyProductDeleted    = "product.deleted"
	KeyProductNotFound   = "product.not_found"
	KeyProductSKUExists  = "product.sku_exists"
	KeyProductOutOfStock = "product.out_of_stock"

	// Sales
	KeySaleCreated   = "sale.created"
	KeySaleNotFound  = "sale.not_found"
	KeySaleCancelled = "sale.cancelled"
	KeySaleEmptyCart = "sale.empty_cart"

	// Customers
	KeyCustomerCreated  = "customer.created"
	KeyCustomerUpdated  = "customer.updated"
	KeyCustomerNotFound = "customer.not_found"

	// Repairs
	KeyRepairCreated           = "repair.created"
	KeyRepairUpdated           = "repair.updated"
	KeyRepairNotFound          = "repair.not_found"
	KeyRepairInvalidTransition = "repair.invalid_transition"

	// Payments
	KeyPaymentSuccess         = "payment.success"
	KeyPaymentFailed          = "payment.failed"
	KeyPaymentPending         = "payment.pending"
	KeyPaymentRefunded        = "payment.refunded"
	KeyPaymentCancelled       = "payment.cancelled"
	KeyPaymentNotFound        = "payment.not_found"
	KeyPaymentInvalidAmount   = "payment.invalid_amount"
	KeyPaymentInvalidGateway  = "payment.invalid_gateway"
	KeyPaymentAlreadyFinal    = "payment.already_final"
	KeyPaymentRefundExceeds   = "payment.refund_exceeds_remaining"
	KeyPaymentGatewayError    = "payment.gateway_error"
	KeyPaymentMethodRequired  = "payment.method_required"
	KeyPaymentWebhookRejected = "payment.webhook_rejected"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"
	KeyValidationTooShort = "validation.too_short"
	KeyValidationTooLong  = "validation.too_long"
	KeyValidationEmail    = "validation.invalid_email"
	KeyValidationPassword = "validation.invalid_password"

	// Notifications
	KeyNotificationSent   = "notification.sent"
	KeyNotificationFailed = "notification.failed"
)
