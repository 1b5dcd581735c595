// Package main provides a CLI tool for applying the database schema and
// seeding demo data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"optipos/internal/core/id"
	"optipos/internal/infrastructure/storage/postgres"
	"optipos/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	poolCfg := postgres.DefaultPoolConfig(dbURL)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	if err := applySchema(ctx, pool, log); err != nil {
		log.Fatalw("failed to apply schema", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoData(ctx, pool, log); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

// schemaStatements is the full schema, ordered so that every statement can
// run on an empty database. All statements are idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS inventory_balances (
		product_id      UUID NOT NULL,
		store_id        UUID NOT NULL,
		quantity        NUMERIC(18,4) NOT NULL DEFAULT 0,
		stock_alert     NUMERIC(18,4) NOT NULL DEFAULT 0,
		discount_method TEXT NOT NULL DEFAULT 'percentage',
		discount_rate   NUMERIC(18,4) NOT NULL DEFAULT 0,
		is_active       BOOLEAN NOT NULL DEFAULT TRUE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (product_id, store_id),
		CONSTRAINT ck_inventory_balances_quantity CHECK (quantity >= 0)
	)`,

	`CREATE TABLE IF NOT EXISTS stock_transactions (
		id             UUID PRIMARY KEY,
		product_id     UUID NOT NULL,
		store_id       UUID NOT NULL,
		quantity       NUMERIC(18,4) NOT NULL,
		unit_cost      NUMERIC(18,4),
		movement_type  TEXT NOT NULL,
		reference_type TEXT,
		reference_id   UUID,
		created_by     TEXT NOT NULL,
		balance_after  NUMERIC(18,4) NOT NULL,
		note           TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT ck_stock_transactions_reference CHECK (
			(reference_type IS NULL) = (reference_id IS NULL)
		)
	)`,

	// One ledger entry per document reference per (product, store) pair.
	// Backstop for the in-transaction duplicate check.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_stock_transactions_reference
		ON stock_transactions (reference_type, reference_id, product_id, store_id)
		WHERE reference_type IS NOT NULL`,

	`CREATE INDEX IF NOT EXISTS ix_stock_transactions_pair_created
		ON stock_transactions (product_id, store_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS purchase_orders (
		id           UUID PRIMARY KEY,
		number       TEXT NOT NULL,
		supplier_id  UUID NOT NULL,
		store_id     UUID NOT NULL,
		status       TEXT NOT NULL DEFAULT 'pending',
		note         TEXT NOT NULL DEFAULT '',
		total_amount NUMERIC(18,4) NOT NULL DEFAULT 0,
		created_by   TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS purchase_order_lines (
		line_id    UUID PRIMARY KEY,
		order_id   UUID NOT NULL REFERENCES purchase_orders(id) ON DELETE CASCADE,
		line_no    INT NOT NULL,
		product_id UUID NOT NULL,
		quantity   NUMERIC(18,4) NOT NULL,
		unit_cost  NUMERIC(18,4) NOT NULL,
		UNIQUE (order_id, line_no)
	)`,

	`CREATE TABLE IF NOT EXISTS sales_orders (
		id          UUID PRIMARY KEY,
		number      TEXT NOT NULL,
		customer_id UUID NOT NULL,
		store_id    UUID NOT NULL,
		status      TEXT NOT NULL DEFAULT 'pending',
		note        TEXT NOT NULL DEFAULT '',
		total_amount NUMERIC(18,4) NOT NULL DEFAULT 0,
		created_by  TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS sales_order_lines (
		line_id          UUID PRIMARY KEY,
		order_id         UUID NOT NULL REFERENCES sales_orders(id) ON DELETE CASCADE,
		line_no          INT NOT NULL,
		product_id       UUID NOT NULL,
		quantity         NUMERIC(18,4) NOT NULL,
		quantity_shipped NUMERIC(18,4) NOT NULL DEFAULT 0,
		unit_price       NUMERIC(18,4) NOT NULL,
		UNIQUE (order_id, line_no)
	)`,

	`CREATE TABLE IF NOT EXISTS shipments (
		id         UUID PRIMARY KEY,
		number     TEXT NOT NULL,
		order_id   UUID NOT NULL REFERENCES sales_orders(id),
		store_id   UUID NOT NULL,
		note       TEXT NOT NULL DEFAULT '',
		shipped_at TIMESTAMPTZ,
		created_by TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS shipment_lines (
		line_id     UUID PRIMARY KEY,
		shipment_id UUID NOT NULL REFERENCES shipments(id) ON DELETE CASCADE,
		line_no     INT NOT NULL,
		product_id  UUID NOT NULL,
		quantity    NUMERIC(18,4) NOT NULL,
		UNIQUE (shipment_id, line_no)
	)`,

	`CREATE TABLE IF NOT EXISTS transfers (
		id            UUID PRIMARY KEY,
		number        TEXT NOT NULL,
		from_store_id UUID NOT NULL,
		to_store_id   UUID NOT NULL,
		note          TEXT NOT NULL DEFAULT '',
		created_by    TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS transfer_lines (
		line_id     UUID PRIMARY KEY,
		transfer_id UUID NOT NULL REFERENCES transfers(id) ON DELETE CASCADE,
		line_no     INT NOT NULL,
		product_id  UUID NOT NULL,
		quantity    NUMERIC(18,4) NOT NULL,
		UNIQUE (transfer_id, line_no)
	)`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		id                 UUID PRIMARY KEY,
		entity_type        TEXT NOT NULL,
		entity_id          UUID NOT NULL,
		action             TEXT NOT NULL,
		actor_id           TEXT NOT NULL,
		payload            JSONB,
		payload_compressed BYTEA,
		compression_algo   TEXT NOT NULL DEFAULT 'none',
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS ix_audit_log_entity
		ON audit_log (entity_type, entity_id, created_at)`,
}

func applySchema(ctx context.Context, pool *postgres.Pool, log *logger.Logger) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	log.Infow("schema applied", "statements", len(schemaStatements))
	return nil
}

func seedDemoData(ctx context.Context, pool *postgres.Pool, log *logger.Logger) error {
	log.Info("seeding demo data...")

	storeID := id.New()
	products := []struct {
		name  string
		qty   string
		alert string
	}{
		{"espresso beans 1kg", "120", "20"},
		{"oat milk 1l", "48", "12"},
		{"paper cups 12oz", "2000", "500"},
	}

	now := time.Now()
	for _, p := range products {
		productID := id.New()

		_, err := pool.Pool.Exec(ctx, `
			INSERT INTO inventory_balances (product_id, store_id, quantity, stock_alert)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (product_id, store_id) DO NOTHING
		`, productID, storeID, p.qty, p.alert)
		if err != nil {
			return fmt.Errorf("seed balance for %s: %w", p.name, err)
		}

		// Backfill the opening entry so the ledger replays to the balance.
		_, err = pool.Pool.Exec(ctx, `
			INSERT INTO stock_transactions (
				id, product_id, store_id, quantity, movement_type,
				created_by, balance_after, note, created_at
			)
			VALUES ($1, $2, $3, $4, 'RECEIPT', 'seed', $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, id.New(), productID, storeID, p.qty, "opening stock: "+p.name, now)
		if err != nil {
			return fmt.Errorf("seed opening entry for %s: %w", p.name, err)
		}

		log.Infow("seeded product stock",
			"product_id", productID,
			"name", p.name,
			"quantity", p.qty,
		)
	}

	log.Infow("demo store ready", "store_id", storeID)
	return nil
}
