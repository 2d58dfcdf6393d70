package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the idempotent DDL for the checkout tables.
const Schema = `
	CREATE SEQUENCE IF NOT EXISTS order_number_seq START 1;

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price NUMERIC(10,2) NOT NULL CHECK (price >= 0),
		stock_quantity INTEGER NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS product_variants (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		size TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '',
		stock_quantity INTEGER NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0)
	);

	CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		order_number TEXT NOT NULL UNIQUE,
		customer_email TEXT NOT NULL,
		customer_name TEXT NOT NULL DEFAULT '',
		account_id TEXT,
		shipping_address JSONB NOT NULL,
		billing_address JSONB NOT NULL,
		cart_snapshot JSONB NOT NULL,
		subtotal_amount NUMERIC(10,2) NOT NULL,
		shipping_amount NUMERIC(10,2) NOT NULL DEFAULT 0,
		tax_amount NUMERIC(10,2) NOT NULL DEFAULT 0,
		discount_amount NUMERIC(10,2) NOT NULL DEFAULT 0,
		total_amount NUMERIC(10,2) NOT NULL,
		shipping_method TEXT NOT NULL DEFAULT 'standard',
		status TEXT NOT NULL DEFAULT 'pending',
		payment_provider TEXT,
		checkout_session_id TEXT UNIQUE,
		wallet_order_id TEXT UNIQUE,
		wallet_capture_id TEXT,
		tracking_number TEXT,
		paid_at TIMESTAMPTZ,
		shipped_at TIMESTAMPTZ,
		delivered_at TIMESTAMPTZ,
		cancelled_at TIMESTAMPTZ,
		refunded_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT orders_single_provider CHECK (
			checkout_session_id IS NULL OR (wallet_order_id IS NULL AND wallet_capture_id IS NULL)
		)
	);
	CREATE INDEX IF NOT EXISTS idx_orders_status_created_at ON orders(status, created_at);

	CREATE TABLE IF NOT EXISTS order_items (
		id UUID PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id),
		product_id TEXT NOT NULL,
		variant_id TEXT,
		product_name TEXT NOT NULL,
		variant_label TEXT NOT NULL DEFAULT '',
		unit_price NUMERIC(10,2) NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		total_price NUMERIC(10,2) NOT NULL,
		image_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_order_items_unique_line
		ON order_items(order_id, product_id, COALESCE(variant_id, ''));

	CREATE TABLE IF NOT EXISTS stock_movements (
		id UUID PRIMARY KEY,
		variant_id TEXT NOT NULL REFERENCES product_variants(id),
		order_id UUID REFERENCES orders(id),
		delta INTEGER NOT NULL,
		reason TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_stock_movements_variant_id ON stock_movements(variant_id);
`

// Migrate applies Schema. It is safe to run on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
