package repository

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"atelier-checkout/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// errStockTargetMissing is recorded when the product or variant row no longer exists.
var errStockTargetMissing = errors.New("stock record not found")

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

// GetByID retrieves a single product by its ID.
func (r *productRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	query := `
		SELECT id, name, price, stock_quantity, created_at
		FROM products
		WHERE id = $1
	`

	var p model.Product
	var price pgtype.Numeric
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &price, &p.StockQuantity, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("product_id", id).Msg("product not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("product_id", id).Msg("failed to query product")
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	p.Price = fromNumeric(price)

	return &p, nil
}

// GetVariantByID retrieves a single variant by its ID.
func (r *productRepository) GetVariantByID(ctx context.Context, id string) (*model.Variant, error) {
	query := `
		SELECT id, product_id, size, color, stock_quantity
		FROM product_variants
		WHERE id = $1
	`

	var v model.Variant
	err := r.pool.QueryRow(ctx, query, id).Scan(&v.ID, &v.ProductID, &v.Size, &v.Color, &v.StockQuantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("variant_id", id).Msg("variant not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("variant_id", id).Msg("failed to query variant")
		return nil, fmt.Errorf("failed to query variant: %w", err)
	}

	return &v, nil
}

// DecrementStock lowers stock for every item inside tx, one savepoint per item.
// Rows are locked in lockOrder so concurrent orders cannot deadlock.
func (r *productRepository) DecrementStock(ctx context.Context, tx pgx.Tx, order OrderRef, items []model.OrderItem) model.StockReport {
	report := model.StockReport{}

	for _, item := range lockOrder(items) {
		if err := r.decrementItem(ctx, tx, order, item); err != nil {
			r.logger.Warn().
				Err(err).
				Str("order_number", order.Number).
				Str("product_id", item.ProductID).
				Msg("stock decrement skipped")
			report.Failed++
			report.Failures = append(report.Failures, model.StockFailure{
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Reason:    err.Error(),
			})
			continue
		}
		report.Succeeded++
	}

	r.logger.Info().
		Str("order_number", order.Number).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("stock decremented")

	return report
}

// lockOrder returns a copy of items sorted the way their stock rows are locked:
// variant rows first by variant id, then product rows by product id.
func lockOrder(items []model.OrderItem) []model.OrderItem {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b model.OrderItem) int {
		switch {
		case a.VariantID != nil && b.VariantID == nil:
			return -1
		case a.VariantID == nil && b.VariantID != nil:
			return 1
		case a.VariantID != nil:
			if c := cmp.Compare(*a.VariantID, *b.VariantID); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return sorted
}

func (r *productRepository) decrementItem(ctx context.Context, tx pgx.Tx, order OrderRef, item model.OrderItem) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}

	if item.VariantID != nil {
		err = r.decrementVariant(ctx, sp, order, *item.VariantID, item)
	} else {
		err = r.decrementProduct(ctx, sp, item)
	}
	if err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			r.logger.Error().Err(rbErr).Msg("failed to roll back savepoint")
		}
		return err
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

func (r *productRepository) decrementVariant(ctx context.Context, tx pgx.Tx, order OrderRef, variantID string, item model.OrderItem) error {
	var current int
	err := tx.QueryRow(ctx,
		`SELECT stock_quantity FROM product_variants WHERE id = $1 FOR UPDATE`,
		variantID,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("variant %s: %w", variantID, errStockTargetMissing)
		}
		return fmt.Errorf("failed to lock variant stock: %w", err)
	}

	next := flooredStock(current, item.Quantity)
	if _, err := tx.Exec(ctx,
		`UPDATE product_variants SET stock_quantity = $2 WHERE id = $1`,
		variantID, next,
	); err != nil {
		return fmt.Errorf("failed to update variant stock: %w", err)
	}

	orderID := order.ID
	_, err = tx.Exec(ctx, `
		INSERT INTO stock_movements (id, variant_id, order_id, delta, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		uuid.New(),
		variantID,
		&orderID,
		next-current,
		fmt.Sprintf("order %s: sold %d x %s", order.Number, item.Quantity, item.ProductName),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record stock movement: %w", err)
	}

	return nil
}

func (r *productRepository) decrementProduct(ctx context.Context, tx pgx.Tx, item model.OrderItem) error {
	var current int
	err := tx.QueryRow(ctx,
		`SELECT stock_quantity FROM products WHERE id = $1 FOR UPDATE`,
		item.ProductID,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("product %s: %w", item.ProductID, errStockTargetMissing)
		}
		return fmt.Errorf("failed to lock product stock: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE products SET stock_quantity = $2 WHERE id = $1`,
		item.ProductID, flooredStock(current, item.Quantity),
	); err != nil {
		return fmt.Errorf("failed to update product stock: %w", err)
	}

	return nil
}

// ListMovements returns the audit trail for a variant, oldest first.
func (r *productRepository) ListMovements(ctx context.Context, variantID string) ([]model.StockMovement, error) {
	query := `
		SELECT id, variant_id, order_id, delta, reason, created_at
		FROM stock_movements
		WHERE variant_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, variantID)
	if err != nil {
		r.logger.Error().Err(err).Str("variant_id", variantID).Msg("failed to query stock movements")
		return nil, fmt.Errorf("failed to query stock movements: %w", err)
	}
	defer rows.Close()

	movements := []model.StockMovement{}
	for rows.Next() {
		var m model.StockMovement
		if err := rows.Scan(&m.ID, &m.VariantID, &m.OrderID, &m.Delta, &m.Reason, &m.CreatedAt); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan stock movement row")
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating stock movement rows")
		return nil, fmt.Errorf("error iterating stock movements: %w", err)
	}

	return movements, nil
}

// flooredStock returns current minus quantity, never below zero.
func flooredStock(current, quantity int) int {
	if quantity >= current {
		return 0
	}
	return current - quantity
}
