package service

import (
	"context"
	"time"

	"atelier-checkout/internal/model"
	"atelier-checkout/internal/payment"
	"atelier-checkout/internal/shipping"

	"github.com/google/uuid"
)

// CheckoutService turns carts into pending orders and confirms their payment.
type CheckoutService interface {
	// CreateHostedSession creates a pending order with its line items and a
	// hosted payment session for it.
	CreateHostedSession(ctx context.Context, req *model.CheckoutRequest) (*model.HostedCheckoutResponse, error)

	// CreateWalletOrder creates a pending order and a wallet provider order.
	// Line items are created on capture from the stored cart snapshot.
	CreateWalletOrder(ctx context.Context, req *model.CheckoutRequest) (*model.WalletOrderResponse, error)

	// CaptureWalletOrder captures a wallet order and reconciles the local
	// order. Capturing an already paid order returns the stored result.
	CaptureWalletOrder(ctx context.Context, providerOrderID string) (*model.CaptureResponse, error)

	// HandleHostedWebhook verifies and applies a hosted provider event.
	// Duplicate deliveries are no-ops.
	HandleHostedWebhook(ctx context.Context, payload []byte, signature string) error
}

// OrderService defines operations for order administration.
type OrderService interface {
	// GetByID retrieves an order with its line items. Returns nil if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.OrderResponse, error)

	// UpdateStatus moves an order along its fulfilment lifecycle.
	UpdateStatus(ctx context.Context, id uuid.UUID, req *model.StatusUpdateRequest) (*model.OrderResponse, error)

	// ExpireStale cancels orders left unpaid past the pending TTL and returns how many.
	ExpireStale(ctx context.Context) (int, error)
}

// PaymentConfirmation describes how an order's payment was confirmed.
type PaymentConfirmation struct {
	Provider  model.PaymentProvider
	CaptureID *string
}

// ReconcileResult is the outcome of a successful reconciliation.
type ReconcileResult struct {
	Order *model.Order
	Items []model.OrderItem
	Stock model.StockReport
	// NotificationErr is set when the confirmation email failed. The payment
	// and stock changes are committed regardless.
	NotificationErr error
}

// Reconciler applies a confirmed payment to an order at most once.
type Reconciler interface {
	// Reconcile marks the order paid, ensures its line items exist and
	// decrements stock in one transaction, then sends the confirmation email.
	// Returns model.ErrAlreadyReconciled when the order was not awaiting payment.
	Reconcile(ctx context.Context, orderID uuid.UUID, conf PaymentConfirmation) (*ReconcileResult, error)
}

// ShippingQuoter prices shipping for a checkout.
type ShippingQuoter interface {
	Quote(req shipping.QuoteRequest, today time.Time) (*shipping.Quote, error)
}

// WebhookVerifier authenticates hosted provider webhooks.
type WebhookVerifier interface {
	Verify(payload []byte, header string) (*payment.WebhookEvent, error)
}
