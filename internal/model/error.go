package model

import "errors"

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON         = "INVALID_JSON"
	ErrCodeMissingField        = "MISSING_FIELD"
	ErrCodeEmptyCart           = "EMPTY_CART"
	ErrCodeIncompleteAddress   = "INCOMPLETE_ADDRESS"
	ErrCodeInvalidQuantity     = "INVALID_QUANTITY"
	ErrCodeInvalidPrice        = "INVALID_PRICE"
	ErrCodeCartTooLarge        = "CART_TOO_LARGE"
	ErrCodeUnsupportedCountry  = "UNSUPPORTED_COUNTRY"
	ErrCodeUnknownMethod       = "UNKNOWN_SHIPPING_METHOD"
	ErrCodeOrderNotFound       = "ORDER_NOT_FOUND"
	ErrCodeProductNotFound     = "PRODUCT_NOT_FOUND"
	ErrCodeVariantNotFound     = "VARIANT_NOT_FOUND"
	ErrCodeInvalidStatus       = "INVALID_STATUS"
	ErrCodeInvalidTransition   = "INVALID_STATUS_TRANSITION"
	ErrCodeStatusConflict      = "STATUS_CONFLICT"
	ErrCodeAlreadyReconciled   = "ALREADY_RECONCILED"
	ErrCodePaidAfterCancel     = "PAID_AFTER_CANCEL"
	ErrCodeInvalidSignature    = "INVALID_SIGNATURE"
	ErrCodePaymentProvider     = "PAYMENT_PROVIDER_ERROR"
	ErrCodeUnauthorised        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeInternalError       = "INTERNAL_ERROR"
	ErrCodeNotificationFailure = "NOTIFICATION_FAILED"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// AsDomainError unwraps err to a *DomainError if one is in the chain.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Common domain errors
var (
	ErrEmptyCart          = NewDomainError(ErrCodeEmptyCart, "Cart must contain at least one item")
	ErrIncompleteAddress  = NewDomainError(ErrCodeIncompleteAddress, "Shipping address requires an email and address line 1")
	ErrInvalidQuantity    = NewDomainError(ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrInvalidPrice       = NewDomainError(ErrCodeInvalidPrice, "Unit price must not be negative")
	ErrCartTooLarge       = NewDomainError(ErrCodeCartTooLarge, "Cart is too large to be attached to a payment")
	ErrUnsupportedCountry = NewDomainError(ErrCodeUnsupportedCountry, "Shipping is not available for this country")
	ErrUnknownMethod      = NewDomainError(ErrCodeUnknownMethod, "Unknown shipping method")
	ErrOrderNotFound      = NewDomainError(ErrCodeOrderNotFound, "Order not found")
	ErrInvalidTransition  = NewDomainError(ErrCodeInvalidTransition, "Order cannot move to the requested status")
	ErrOrderClosed        = NewDomainError(ErrCodeInvalidTransition, "Order is closed and can no longer change status")
	ErrStatusConflict     = NewDomainError(ErrCodeStatusConflict, "Order status changed concurrently")
	ErrAlreadyReconciled  = NewDomainError(ErrCodeAlreadyReconciled, "Order payment has already been reconciled")
	ErrPaidAfterCancel    = NewDomainError(ErrCodePaidAfterCancel, "Payment received for an order that is no longer payable")
	ErrInvalidSignature   = NewDomainError(ErrCodeInvalidSignature, "Webhook signature is invalid")
)

// Inventory lookup errors
var (
	ErrProductNotFound = NewDomainError(ErrCodeProductNotFound, "Product not found")
	ErrVariantNotFound = NewDomainError(ErrCodeVariantNotFound, "Variant not found")
)
