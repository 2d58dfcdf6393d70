package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a catalogue product.
type Product struct {
	ID            string          `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Price         decimal.Decimal `json:"price" db:"price"`
	StockQuantity int             `json:"stockQuantity" db:"stock_quantity"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}

// Variant is a size/colour variant of a product with its own stock.
type Variant struct {
	ID            string `json:"id" db:"id"`
	ProductID     string `json:"productId" db:"product_id"`
	Size          string `json:"size" db:"size"`
	Color         string `json:"color" db:"color"`
	StockQuantity int    `json:"stockQuantity" db:"stock_quantity"`
}

// StockMovement is an immutable audit record of a variant stock change.
type StockMovement struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	VariantID string     `json:"variantId" db:"variant_id"`
	OrderID   *uuid.UUID `json:"orderId,omitempty" db:"order_id"`
	Delta     int        `json:"delta" db:"delta"`
	Reason    string     `json:"reason" db:"reason"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}

// StockReport aggregates the outcome of a best-effort stock decrement.
type StockReport struct {
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Failures  []StockFailure `json:"failures,omitempty"`
}

// StockFailure describes one line item whose decrement did not apply.
type StockFailure struct {
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId,omitempty"`
	Reason    string  `json:"reason"`
}

// VariantStockResponse is a variant with its stock audit trail.
type VariantStockResponse struct {
	Variant
	Movements []StockMovement `json:"movements"`
}
