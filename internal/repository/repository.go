package repository

import (
	"context"
	"time"

	"atelier-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderRef identifies the order a stock change belongs to.
type OrderRef struct {
	ID     uuid.UUID
	Number string
}

// ProductRepository defines the interface for product and stock data access operations.
type ProductRepository interface {
	// GetByID retrieves a single product by its ID. Returns nil if it does not exist.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetVariantByID retrieves a single variant by its ID. Returns nil if it does not exist.
	GetVariantByID(ctx context.Context, id string) (*model.Variant, error)

	// DecrementStock lowers stock for every item, flooring at zero. Variant
	// decrements append a stock movement. Each item runs in its own savepoint so
	// a failure only skips that item. It performs no idempotency check.
	DecrementStock(ctx context.Context, tx pgx.Tx, order OrderRef, items []model.OrderItem) model.StockReport

	// ListMovements returns the audit trail for a variant, oldest first.
	ListMovements(ctx context.Context, variantID string) ([]model.StockMovement, error)
}

// OrderRepository defines the interface for order data access operations.
// Updates only touch the columns they name.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// NextOrderNumber allocates PREFIX-YYYY-NNNNNN from the order number sequence.
	NextOrderNumber(ctx context.Context, tx pgx.Tx, prefix string, year int) (string, error)

	// CreateOrder inserts a new order within the provided transaction.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderItems inserts multiple order items within the provided transaction.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// GetOrderItems lists the line items of an order within the provided transaction.
	GetOrderItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]model.OrderItem, error)

	// GetByID retrieves an order by its ID along with its items. Returns nil if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderItem, error)

	// GetByCheckoutSessionID retrieves an order by hosted session ID. Returns nil if not found.
	GetByCheckoutSessionID(ctx context.Context, sessionID string) (*model.Order, error)

	// GetByWalletOrderID retrieves an order by wallet provider order ID. Returns nil if not found.
	GetByWalletOrderID(ctx context.Context, walletOrderID string) (*model.Order, error)

	// AttachCheckoutSession links a hosted session to the order and moves a
	// pending order to awaiting_payment.
	AttachCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error

	// AttachWalletOrder links a wallet provider order to the order and moves a
	// pending order to awaiting_payment.
	AttachWalletOrder(ctx context.Context, id uuid.UUID, walletOrderID string) error

	// MarkPaid moves an order awaiting payment to paid. It reports false when
	// the order was not awaiting payment, in which case nothing changed, and
	// always returns the order's current status.
	MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, captureID *string, paidAt time.Time) (bool, model.OrderStatus, error)

	// UpdateStatus moves an order from one status to another, setting the
	// matching timestamp. Returns model.ErrStatusConflict if the order is no
	// longer in status from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus, trackingNumber *string, at time.Time) error

	// ExpireUnpaid cancels orders still awaiting payment that were created
	// before cutoff and returns their order numbers.
	ExpireUnpaid(ctx context.Context, cutoff, at time.Time) ([]string, error)
}
