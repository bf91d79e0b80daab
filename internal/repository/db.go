package repository

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const schema = `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		operator TEXT,
		description TEXT NOT NULL DEFAULT '',
		amount BIGINT,
		details TEXT NOT NULL DEFAULT '',
		base_price BIGINT NOT NULL,
		selling_price BIGINT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_products_type_active ON products(type, active);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		reference_id TEXT NOT NULL UNIQUE,
		transaction_id TEXT NOT NULL DEFAULT '',
		customer_id TEXT NOT NULL,
		type TEXT NOT NULL,
		product_code TEXT NOT NULL,
		product_name TEXT NOT NULL,
		amount BIGINT NOT NULL,
		status TEXT NOT NULL,
		qr_string TEXT NOT NULL DEFAULT '',
		payment_order_id TEXT NOT NULL DEFAULT '',
		payment_code TEXT NOT NULL DEFAULT '',
		payment_url TEXT NOT NULL DEFAULT '',
		details TEXT NOT NULL DEFAULT '{}',
		expiry_time TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
`

// Open opens the store database and creates the schema if needed
func Open(driver, dsn string) (*sql.DB, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite allows a single writer; an in-memory database only exists
	// on the connection that created it
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}

// rebind rewrites ? placeholders to $n for postgres
func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
