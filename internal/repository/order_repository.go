package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atelier-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const orderColumns = `
	id, order_number, customer_email, customer_name, account_id,
	shipping_address, billing_address, cart_snapshot,
	subtotal_amount, shipping_amount, tax_amount, discount_amount, total_amount,
	shipping_method, status, payment_provider,
	checkout_session_id, wallet_order_id, wallet_capture_id, tracking_number,
	paid_at, shipped_at, delivered_at, cancelled_at, refunded_at,
	created_at, updated_at`

// statusTimestampColumns maps a target status to the column recording when it was reached.
var statusTimestampColumns = map[model.OrderStatus]string{
	model.OrderStatusPaid:      "paid_at",
	model.OrderStatusShipped:   "shipped_at",
	model.OrderStatusDelivered: "delivered_at",
	model.OrderStatusCancelled: "cancelled_at",
	model.OrderStatusRefunded:  "refunded_at",
}

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// NextOrderNumber allocates PREFIX-YYYY-NNNNNN from the order number sequence.
func (r *orderRepository) NextOrderNumber(ctx context.Context, tx pgx.Tx, prefix string, year int) (string, error) {
	var seq int64
	if err := tx.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		r.logger.Error().Err(err).Msg("failed to allocate order number")
		return "", fmt.Errorf("failed to allocate order number: %w", err)
	}
	return FormatOrderNumber(prefix, year, seq), nil
}

// FormatOrderNumber renders an order number as PREFIX-YYYY-NNNNNN.
func FormatOrderNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%06d", prefix, year, seq)
}

// CreateOrder inserts a new order within the provided transaction.
func (r *orderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	shipping, err := marshalJSONB("shipping_address", order.ShippingAddress)
	if err != nil {
		return err
	}
	billing, err := marshalJSONB("billing_address", order.BillingAddress)
	if err != nil {
		return err
	}
	snapshot, err := marshalJSONB("cart_snapshot", order.CartSnapshot)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (
			id, order_number, customer_email, customer_name, account_id,
			shipping_address, billing_address, cart_snapshot,
			subtotal_amount, shipping_amount, tax_amount, discount_amount, total_amount,
			shipping_method, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err = tx.Exec(ctx, query,
		order.ID,
		order.OrderNumber,
		order.CustomerEmail,
		order.CustomerName,
		order.AccountID,
		shipping,
		billing,
		snapshot,
		toNumeric(order.SubtotalAmount),
		toNumeric(order.ShippingAmount),
		toNumeric(order.TaxAmount),
		toNumeric(order.DiscountAmount),
		toNumeric(order.TotalAmount),
		order.ShippingMethod,
		string(order.Status),
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Msg("order created successfully")

	return nil
}

// CreateOrderItems inserts multiple order items within the provided transaction.
func (r *orderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (
			id, order_id, product_id, variant_id, product_name, variant_label,
			unit_price, quantity, total_price, image_url, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(query,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.VariantID,
			item.ProductName,
			item.VariantLabel,
			toNumeric(item.UnitPrice),
			item.Quantity,
			toNumeric(item.TotalPrice),
			item.ImageURL,
			item.CreatedAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(items); i++ {
		_, err := results.Exec()
		if err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", items[i].OrderID.String()).
				Str("product_id", items[i].ProductID).
				Msg("failed to create order item")
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	r.logger.Debug().
		Int("count", len(items)).
		Msg("order items created successfully")

	return nil
}

// GetOrderItems lists the line items of an order within the provided transaction.
func (r *orderRepository) GetOrderItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]model.OrderItem, error) {
	return r.queryItems(ctx, tx, orderID)
}

// GetByID retrieves an order by its ID along with its items.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderItem, error) {
	order, err := r.getOne(ctx, "id", id)
	if err != nil || order == nil {
		return nil, nil, err
	}

	items, err := r.queryItems(ctx, r.pool, id)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// GetByCheckoutSessionID retrieves an order by hosted session ID.
func (r *orderRepository) GetByCheckoutSessionID(ctx context.Context, sessionID string) (*model.Order, error) {
	return r.getOne(ctx, "checkout_session_id", sessionID)
}

// GetByWalletOrderID retrieves an order by wallet provider order ID.
func (r *orderRepository) GetByWalletOrderID(ctx context.Context, walletOrderID string) (*model.Order, error) {
	return r.getOne(ctx, "wallet_order_id", walletOrderID)
}

// AttachCheckoutSession links a hosted session to the order.
func (r *orderRepository) AttachCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	return r.attachProvider(ctx, id, "checkout_session_id", sessionID, model.PaymentProviderHosted)
}

// AttachWalletOrder links a wallet provider order to the order.
func (r *orderRepository) AttachWalletOrder(ctx context.Context, id uuid.UUID, walletOrderID string) error {
	return r.attachProvider(ctx, id, "wallet_order_id", walletOrderID, model.PaymentProviderWallet)
}

// attachProvider sets only the provider linkage columns and, if the order is
// still pending, its status. Address and amount columns are not part of the
// statement and keep their stored values.
func (r *orderRepository) attachProvider(ctx context.Context, id uuid.UUID, column, providerID string, provider model.PaymentProvider) error {
	query := fmt.Sprintf(`
		UPDATE orders
		SET %s = $2,
			payment_provider = $3,
			status = CASE WHEN status = $4 THEN $5 ELSE status END,
			updated_at = $6
		WHERE id = $1
	`, column)

	tag, err := r.pool.Exec(ctx, query,
		id,
		providerID,
		string(provider),
		string(model.OrderStatusPending),
		string(model.OrderStatusAwaitingPayment),
		time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", id.String()).
			Str("provider", string(provider)).
			Msg("failed to attach payment provider")
		return fmt.Errorf("failed to attach payment provider: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}

	r.logger.Debug().
		Str("order_id", id.String()).
		Str("provider", string(provider)).
		Str("provider_id", providerID).
		Msg("payment provider attached")

	return nil
}

// MarkPaid moves an order awaiting payment to paid and returns the status the
// order is in afterwards. changed is false when the order was not payable.
func (r *orderRepository) MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, captureID *string, paidAt time.Time) (bool, model.OrderStatus, error) {
	query := `
		UPDATE orders
		SET status = $2,
			paid_at = $3,
			updated_at = $3,
			wallet_capture_id = COALESCE($4, wallet_capture_id)
		WHERE id = $1 AND status = ANY($5)
		RETURNING status
	`

	var status string
	err := tx.QueryRow(ctx, query,
		id,
		string(model.OrderStatusPaid),
		paidAt,
		captureID,
		statusStrings(model.PredecessorsOf(model.OrderStatusPaid)),
	).Scan(&status)
	if err == nil {
		return true, model.OrderStatus(status), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to mark order paid")
		return false, "", fmt.Errorf("failed to mark order paid: %w", err)
	}

	if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, "", model.ErrOrderNotFound
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to read order status")
		return false, "", fmt.Errorf("failed to read order status: %w", err)
	}

	return false, model.OrderStatus(status), nil
}

// UpdateStatus moves an order from one status to another.
func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus, trackingNumber *string, at time.Time) error {
	timestamp := ""
	if column, ok := statusTimestampColumns[to]; ok {
		timestamp = fmt.Sprintf(", %s = $4", column)
	}

	query := fmt.Sprintf(`
		UPDATE orders
		SET status = $3,
			updated_at = $4,
			tracking_number = COALESCE($5, tracking_number)%s
		WHERE id = $1 AND status = $2
	`, timestamp)

	tag, err := r.pool.Exec(ctx, query, id, string(from), string(to), at, trackingNumber)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", id.String()).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("failed to update order status")
		return fmt.Errorf("failed to update order status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		r.logger.Warn().
			Str("order_id", id.String()).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("order status changed concurrently")
		return model.ErrStatusConflict
	}

	return nil
}

// ExpireUnpaid cancels orders still awaiting payment that were created before cutoff.
func (r *orderRepository) ExpireUnpaid(ctx context.Context, cutoff, at time.Time) ([]string, error) {
	query := `
		UPDATE orders
		SET status = $1, cancelled_at = $2, updated_at = $2
		WHERE status = ANY($3) AND created_at < $4
		RETURNING order_number
	`

	rows, err := r.pool.Query(ctx, query,
		string(model.OrderStatusCancelled),
		at,
		statusStrings(unpaidStatuses()),
		cutoff,
	)
	if err != nil {
		r.logger.Error().Err(err).Time("cutoff", cutoff).Msg("failed to expire unpaid orders")
		return nil, fmt.Errorf("failed to expire unpaid orders: %w", err)
	}

	numbers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		r.logger.Error().Err(err).Msg("error iterating expired orders")
		return nil, fmt.Errorf("error iterating expired orders: %w", err)
	}

	return numbers, nil
}

// unpaidStatuses returns the statuses the expiry sweep may cancel.
func unpaidStatuses() []model.OrderStatus {
	var unpaid []model.OrderStatus
	for _, s := range model.PredecessorsOf(model.OrderStatusCancelled) {
		if s.IsAwaitingPayment() {
			unpaid = append(unpaid, s)
		}
	}
	return unpaid
}

func statusStrings(statuses []model.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *orderRepository) getOne(ctx context.Context, column string, value interface{}) (*model.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s = $1`, orderColumns, column)

	order, err := scanOrder(r.pool.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("column", column).Interface("value", value).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("column", column).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	return order, nil
}

func (r *orderRepository) queryItems(ctx context.Context, q querier, orderID uuid.UUID) ([]model.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, variant_id, product_name, variant_label,
			unit_price, quantity, total_price, image_url, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at, id
	`

	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", orderID.String()).
			Msg("failed to query order items")
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	items := []model.OrderItem{}
	for rows.Next() {
		var (
			item       model.OrderItem
			unitPrice  pgtype.Numeric
			totalPrice pgtype.Numeric
		)
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.VariantID,
			&item.ProductName,
			&item.VariantLabel,
			&unitPrice,
			&item.Quantity,
			&totalPrice,
			&item.ImageURL,
			&item.CreatedAt,
		)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order item row")
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.UnitPrice = fromNumeric(unitPrice)
		item.TotalPrice = fromNumeric(totalPrice)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order item rows")
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var order model.Order
	var shipping, billing, snapshot []byte
	var subtotal, shippingAmt, tax, discount, total pgtype.Numeric
	var status string
	var provider *string

	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.CustomerEmail,
		&order.CustomerName,
		&order.AccountID,
		&shipping,
		&billing,
		&snapshot,
		&subtotal,
		&shippingAmt,
		&tax,
		&discount,
		&total,
		&order.ShippingMethod,
		&status,
		&provider,
		&order.CheckoutSessionID,
		&order.WalletOrderID,
		&order.WalletCaptureID,
		&order.TrackingNumber,
		&order.PaidAt,
		&order.ShippedAt,
		&order.DeliveredAt,
		&order.CancelledAt,
		&order.RefundedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSONB("shipping_address", shipping, &order.ShippingAddress); err != nil {
		return nil, err
	}
	if err := unmarshalJSONB("billing_address", billing, &order.BillingAddress); err != nil {
		return nil, err
	}
	if err := unmarshalJSONB("cart_snapshot", snapshot, &order.CartSnapshot); err != nil {
		return nil, err
	}

	order.SubtotalAmount = fromNumeric(subtotal)
	order.ShippingAmount = fromNumeric(shippingAmt)
	order.TaxAmount = fromNumeric(tax)
	order.DiscountAmount = fromNumeric(discount)
	order.TotalAmount = fromNumeric(total)
	order.Status = model.OrderStatus(status)
	if provider != nil {
		p := model.PaymentProvider(*provider)
		order.PaymentProvider = &p
	}

	return &order, nil
}
