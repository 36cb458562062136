package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		fullname TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		roles TEXT[] NOT NULL,
		active_role TEXT NOT NULL,
		refresh_token_hash TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL,
		parent_id UUID REFERENCES categories(id),
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		specifications TEXT[] NOT NULL,
		quantity INT NOT NULL CHECK (quantity >= 0),
		price NUMERIC(12,2) NOT NULL,
		image_url TEXT NOT NULL,
		owner_id UUID NOT NULL REFERENCES users(id),
		category_id UUID NOT NULL REFERENCES categories(id),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS carts (
		id UUID PRIMARY KEY,
		product_id UUID NOT NULL REFERENCES products(id),
		owner_id UUID NOT NULL REFERENCES users(id),
		quantity INT NOT NULL CHECK (quantity > 0),
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id UUID PRIMARY KEY,
		product_id UUID NOT NULL,
		title TEXT NOT NULL,
		quantity INT NOT NULL,
		price NUMERIC(12,2) NOT NULL,
		owner_id UUID NOT NULL REFERENCES users(id),
		buyer_id UUID NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_owner ON products(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_carts_owner ON carts(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_owner ON sales(owner_id)`,
}

// EnsureSchema runs the idempotent DDL at startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		_, err := pool.Exec(ctx, stmt)

		if err != nil {
			return err
		}
	}

	return nil
}
