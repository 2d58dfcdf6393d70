//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"atelier-checkout/internal/config"
	"atelier-checkout/internal/database"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type variant struct {
	id, size, color string
	stock           int
}

type product struct {
	id, name string
	price    float64
	stock    int
	variants []variant
}

// Applies the schema and loads a small demo catalogue for local checkouts.
func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	catalog := []product{
		{id: "P-SHIRT", name: "Linen Shirt", price: 59.90, variants: []variant{
			{"V-SHIRT-S-BLK", "S", "Black", 12},
			{"V-SHIRT-M-BLK", "M", "Black", 20},
			{"V-SHIRT-L-SND", "L", "Sand", 8},
		}},
		{id: "P-TROUSER", name: "Wide Trousers", price: 89.00, variants: []variant{
			{"V-TROUSER-38-NVY", "38", "Navy", 10},
			{"V-TROUSER-40-NVY", "40", "Navy", 6},
		}},
		{id: "P-TOTE", name: "Canvas Tote", price: 25.00, stock: 40},
	}

	batch := &pgx.Batch{}
	for _, p := range catalog {
		batch.Queue(`
			INSERT INTO products (id, name, price, stock_quantity)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, stock_quantity = EXCLUDED.stock_quantity
		`, p.id, p.name, p.price, p.stock)
		for _, v := range p.variants {
			batch.Queue(`
				INSERT INTO product_variants (id, product_id, size, color, stock_quantity)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO UPDATE SET stock_quantity = EXCLUDED.stock_quantity
			`, v.id, p.id, v.size, v.color, v.stock)
		}
	}

	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		log.Fatalf("Failed to seed catalog: %v", err)
	}

	for _, p := range catalog {
		fmt.Printf("Seeded %s (%s) with %d variants\n", p.id, p.name, len(p.variants))
	}
}
