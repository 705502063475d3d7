package backend

import (
	"context"
	"database/sql"
	"fmt"
)

// The DDL sticks to what MySQL, TiDB and SQLite all accept, so the same
// statements serve production and the in-memory test database.
var schema = []struct {
	name string
	ddl  string
}{
	{"categories", `CREATE TABLE IF NOT EXISTS categories (
        id VARCHAR(64) NOT NULL PRIMARY KEY,
        name VARCHAR(255) NOT NULL
    )`},
	{"stores", `CREATE TABLE IF NOT EXISTS stores (
        id VARCHAR(64) NOT NULL PRIMARY KEY,
        name VARCHAR(255) NOT NULL,
        address TEXT,
        slug VARCHAR(255)
    )`},
	{"products", `CREATE TABLE IF NOT EXISTS products (
        id VARCHAR(64) NOT NULL PRIMARY KEY,
        name VARCHAR(255) NOT NULL,
        description TEXT,
        description_markdown TEXT,
        price_whole_cents BIGINT NOT NULL DEFAULT 0,
        price_slice_cents BIGINT NOT NULL DEFAULT 0,
        sale_price_whole_cents BIGINT NULL,
        sale_price_slice_cents BIGINT NULL,
        stock_count BIGINT NOT NULL DEFAULT 0,
        image_url TEXT,
        category_id VARCHAR(64) NULL,
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    )`},
	{"product_images", `CREATE TABLE IF NOT EXISTS product_images (
        product_id VARCHAR(64) NOT NULL,
        sort_order INT NOT NULL,
        image_url TEXT NOT NULL,
        PRIMARY KEY (product_id, sort_order)
    )`},
	{"inventory", `CREATE TABLE IF NOT EXISTS inventory (
        product_id VARCHAR(64) NOT NULL,
        store_id VARCHAR(64) NOT NULL,
        PRIMARY KEY (product_id, store_id)
    )`},
	{"user_profiles", `CREATE TABLE IF NOT EXISTS user_profiles (
        id VARCHAR(64) NOT NULL PRIMARY KEY,
        name VARCHAR(255),
        email VARCHAR(255),
        address TEXT,
        whatsapp VARCHAR(64),
        points BIGINT NOT NULL DEFAULT 0,
        loyalty_ratio DOUBLE NOT NULL DEFAULT 1,
        wallet_balance_cents BIGINT NOT NULL DEFAULT 0
    )`},
	{"orders", `CREATE TABLE IF NOT EXISTS orders (
        id VARCHAR(64) NOT NULL PRIMARY KEY,
        user_id VARCHAR(64) NOT NULL,
        store_id VARCHAR(64),
        total_cents BIGINT NOT NULL,
        status VARCHAR(32) NOT NULL,
        payment_method VARCHAR(32) NOT NULL,
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    )`},
	{"order_items", `CREATE TABLE IF NOT EXISTS order_items (
        order_id VARCHAR(64) NOT NULL,
        line_no INT NOT NULL,
        product_id VARCHAR(64) NOT NULL,
        sale_type VARCHAR(16) NOT NULL,
        quantity INT NOT NULL,
        price_cents BIGINT NOT NULL,
        PRIMARY KEY (order_id, line_no)
    )`},
	{"wallet_ledger", `CREATE TABLE IF NOT EXISTS wallet_ledger (
        idempotency_key VARCHAR(128) NOT NULL PRIMARY KEY,
        user_id VARCHAR(64) NOT NULL,
        order_id VARCHAR(64),
        amount_cents BIGINT NOT NULL
    )`},
}

// ensureTables creates the tables the store needs if they don't exist.
func ensureTables(ctx context.Context, db *sql.DB) error {
	for _, t := range schema {
		if _, err := db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
	}
	return nil
}
