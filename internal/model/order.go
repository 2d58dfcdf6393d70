package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentProvider identifies which provider an order was paid through.
type PaymentProvider string

const (
	PaymentProviderHosted PaymentProvider = "hosted"
	PaymentProviderWallet PaymentProvider = "wallet"
)

// Address is a postal address stored on the order as a JSON blob.
type Address struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// IsComplete reports whether the address carries the minimum needed to ship.
func (a *Address) IsComplete() bool {
	if a == nil {
		return false
	}
	return strings.TrimSpace(a.Email) != "" && strings.TrimSpace(a.Line1) != ""
}

// CartItem is one line of the client-held cart. It is stored on the order as
// part of the cart snapshot and is the source for line items.
type CartItem struct {
	ProductID string          `json:"productId"`
	VariantID *string         `json:"variantId,omitempty"`
	Name      string          `json:"name"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"imageUrl,omitempty"`
}

// LineTotal returns price × quantity.
func (c CartItem) LineTotal() decimal.Decimal {
	return c.Price.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// VariantLabel joins size and colour, e.g. "M / Black".
func (c CartItem) VariantLabel() string {
	parts := make([]string, 0, 2)
	if c.Size != "" {
		parts = append(parts, c.Size)
	}
	if c.Color != "" {
		parts = append(parts, c.Color)
	}
	return strings.Join(parts, " / ")
}

// Order represents a customer order.
type Order struct {
	ID                uuid.UUID        `json:"id" db:"id"`
	OrderNumber       string           `json:"orderNumber" db:"order_number"`
	CustomerEmail     string           `json:"customerEmail" db:"customer_email"`
	CustomerName      string           `json:"customerName" db:"customer_name"`
	AccountID         *string          `json:"accountId,omitempty" db:"account_id"`
	ShippingAddress   Address          `json:"shippingAddress" db:"shipping_address"`
	BillingAddress    Address          `json:"billingAddress" db:"billing_address"`
	CartSnapshot      []CartItem       `json:"-" db:"cart_snapshot"`
	SubtotalAmount    decimal.Decimal  `json:"subtotalAmount" db:"subtotal_amount"`
	ShippingAmount    decimal.Decimal  `json:"shippingAmount" db:"shipping_amount"`
	TaxAmount         decimal.Decimal  `json:"taxAmount" db:"tax_amount"`
	DiscountAmount    decimal.Decimal  `json:"discountAmount" db:"discount_amount"`
	TotalAmount       decimal.Decimal  `json:"totalAmount" db:"total_amount"`
	ShippingMethod    string           `json:"shippingMethod" db:"shipping_method"`
	Status            OrderStatus      `json:"status" db:"status"`
	PaymentProvider   *PaymentProvider `json:"paymentProvider,omitempty" db:"payment_provider"`
	CheckoutSessionID *string          `json:"checkoutSessionId,omitempty" db:"checkout_session_id"`
	WalletOrderID     *string          `json:"walletOrderId,omitempty" db:"wallet_order_id"`
	WalletCaptureID   *string          `json:"walletCaptureId,omitempty" db:"wallet_capture_id"`
	TrackingNumber    *string          `json:"trackingNumber,omitempty" db:"tracking_number"`
	PaidAt            *time.Time       `json:"paidAt,omitempty" db:"paid_at"`
	ShippedAt         *time.Time       `json:"shippedAt,omitempty" db:"shipped_at"`
	DeliveredAt       *time.Time       `json:"deliveredAt,omitempty" db:"delivered_at"`
	CancelledAt       *time.Time       `json:"cancelledAt,omitempty" db:"cancelled_at"`
	RefundedAt        *time.Time       `json:"refundedAt,omitempty" db:"refunded_at"`
	CreatedAt         time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time        `json:"updatedAt" db:"updated_at"`
}

// OrderItem is a denormalised snapshot of one purchased product or variant.
type OrderItem struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OrderID      uuid.UUID       `json:"-" db:"order_id"`
	ProductID    string          `json:"productId" db:"product_id"`
	VariantID    *string         `json:"variantId,omitempty" db:"variant_id"`
	ProductName  string          `json:"productName" db:"product_name"`
	VariantLabel string          `json:"variantLabel,omitempty" db:"variant_label"`
	UnitPrice    decimal.Decimal `json:"unitPrice" db:"unit_price"`
	Quantity     int             `json:"quantity" db:"quantity"`
	TotalPrice   decimal.Decimal `json:"totalPrice" db:"total_price"`
	ImageURL     string          `json:"imageUrl,omitempty" db:"image_url"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
}

// NewOrderItems builds line items for an order from its cart snapshot.
func NewOrderItems(orderID uuid.UUID, cart []CartItem, now time.Time) []OrderItem {
	items := make([]OrderItem, len(cart))
	for i, c := range cart {
		items[i] = OrderItem{
			ID:           uuid.New(),
			OrderID:      orderID,
			ProductID:    c.ProductID,
			VariantID:    c.VariantID,
			ProductName:  c.Name,
			VariantLabel: c.VariantLabel(),
			UnitPrice:    c.Price,
			Quantity:     c.Quantity,
			TotalPrice:   c.LineTotal(),
			ImageURL:     c.ImageURL,
			CreatedAt:    now,
		}
	}
	return items
}

// CheckoutRequest is the payload for starting a checkout with either provider.
type CheckoutRequest struct {
	Items           []CartItem `json:"items"`
	ShippingAddress *Address   `json:"shippingAddress"`
	BillingAddress  *Address   `json:"billingAddress,omitempty"`
	ShippingMethod  string     `json:"shippingMethod,omitempty"`
	WeightGrams     *int       `json:"weightGrams,omitempty"`
	// AccountID is set from the verified bearer token, never from the body.
	AccountID *string `json:"-"`
}

// HostedCheckoutResponse is returned after a hosted payment session is created.
type HostedCheckoutResponse struct {
	SessionID   string    `json:"sessionId"`
	RedirectURL string    `json:"redirectUrl"`
	OrderNumber string    `json:"orderNumber"`
	OrderID     uuid.UUID `json:"orderId"`
}

// WalletOrderResponse is returned after a wallet provider order is created.
type WalletOrderResponse struct {
	ProviderOrderID string    `json:"orderID"`
	OrderNumber     string    `json:"orderNumber"`
	OrderID         uuid.UUID `json:"orderId"`
}

// CaptureRequest asks for a wallet provider order to be captured.
type CaptureRequest struct {
	ProviderOrderID string `json:"providerOrderId"`
}

// CaptureResponse reports the result of a capture.
type CaptureResponse struct {
	Success     bool        `json:"success"`
	CaptureID   string      `json:"captureId"`
	OrderNumber string      `json:"orderNumber"`
	Status      OrderStatus `json:"status"`
	Message     string      `json:"message,omitempty"`
}

// StatusUpdateRequest is the admin payload for moving an order along its lifecycle.
type StatusUpdateRequest struct {
	Status         OrderStatus `json:"status"`
	TrackingNumber *string     `json:"trackingNumber,omitempty"`
}

// OrderResponse represents the response payload for an order.
type OrderResponse struct {
	Order
	Items []OrderItem `json:"items"`
}
