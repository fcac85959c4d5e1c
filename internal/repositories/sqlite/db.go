// Package sqlite provides the relational persistence layer. A single
// Provider owns the database handle, runs schema migration, and exposes
// repository implementations that share transactions via context.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vendorlane/api/internal/repositories"
)

type contextKey string

const txContextKey contextKey = "github.com/vendorlane/api/internal/repositories/sqlite/tx"

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Provider wraps the SQLite handle and implements repositories.UnitOfWork.
type Provider struct {
	db *sql.DB
}

// Open connects to the SQLite database at path. The DSN enables WAL mode,
// foreign keys, and a busy timeout so concurrent writers queue instead of
// failing immediately. Use ":memory:" for tests.
func Open(path string) (*Provider, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: database path is required")
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// The driver serialises writes; a single connection avoids
	// table-lock contention between pooled connections.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Provider{db: db}, nil
}

// DB exposes the raw handle for health checks.
func (p *Provider) DB() *sql.DB { return p.db }

// Ping verifies database connectivity.
func (p *Provider) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close releases the underlying handle.
func (p *Provider) Close() error { return p.db.Close() }

// RunInTx executes fn inside a transaction. When ctx already carries a
// transaction the call joins it, so nested RunInTx invocations commit or
// roll back as one unit at the outermost scope. AfterCommit hooks registered
// during fn run once the outermost transaction has committed, with the
// transaction-free context.
func (p *Provider) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("sqlite: transaction function is required")
	}
	if _, ok := ctx.Value(txContextKey).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError("sqlite.begin_tx", err)
	}
	hookCtx, flush := repositories.CollectCommitHooks(ctx)
	if err := fn(context.WithValue(hookCtx, txContextKey, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapError("sqlite.commit_tx", err)
	}
	flush(ctx)
	return nil
}

// q returns the ambient transaction when present, otherwise the pool.
func (p *Provider) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txContextKey).(*sql.Tx); ok {
		return tx
	}
	return p.db
}

const schema = `
CREATE TABLE IF NOT EXISTS clients (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	tier       TEXT NOT NULL DEFAULT 'registered',
	is_active  INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS vendor_companies (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	email          TEXT NOT NULL DEFAULT '',
	is_active      INTEGER NOT NULL DEFAULT 1,
	is_verified    INTEGER NOT NULL DEFAULT 0,
	deactivated_by TEXT,
	deactivated_at TIMESTAMP,
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES vendor_companies(id),
	name       TEXT NOT NULL,
	sku        TEXT NOT NULL DEFAULT '',
	is_active  INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_company ON products(company_id);

CREATE TABLE IF NOT EXISTS product_prices (
	id         TEXT PRIMARY KEY,
	product_id TEXT NOT NULL REFERENCES products(id),
	tier       TEXT NOT NULL,
	amount     INTEGER NOT NULL,
	currency   TEXT NOT NULL,
	is_active  INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_prices_product_tier ON product_prices(product_id, tier);

CREATE TABLE IF NOT EXISTS carts (
	id         TEXT PRIMARY KEY,
	number     TEXT NOT NULL UNIQUE,
	client_id  TEXT NOT NULL REFERENCES clients(id),
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS cart_items (
	id             TEXT PRIMARY KEY,
	cart_id        TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
	product_id     TEXT NOT NULL,
	quantity       INTEGER NOT NULL,
	price_snapshot INTEGER NOT NULL,
	price_tier     TEXT NOT NULL,
	added_at       TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP,
	UNIQUE (cart_id, product_id)
);

CREATE TABLE IF NOT EXISTS orders (
	id            TEXT PRIMARY KEY,
	number        TEXT NOT NULL UNIQUE,
	client_id     TEXT NOT NULL REFERENCES clients(id),
	status        TEXT NOT NULL,
	contact_name  TEXT NOT NULL DEFAULT '',
	contact_email TEXT NOT NULL DEFAULT '',
	contact_phone TEXT NOT NULL DEFAULT '',
	total         INTEGER NOT NULL,
	currency      TEXT NOT NULL,
	staff_note    TEXT NOT NULL DEFAULT '',
	processed_by  TEXT,
	processed_at  TIMESTAMP,
	completed_at  TIMESTAMP,
	cancelled_at  TIMESTAMP,
	cancel_reason TEXT,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_client ON orders(client_id);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

CREATE TABLE IF NOT EXISTS order_items (
	id           TEXT PRIMARY KEY,
	order_id     TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	product_id   TEXT NOT NULL,
	company_id   TEXT NOT NULL,
	product_name TEXT NOT NULL,
	sku          TEXT NOT NULL DEFAULT '',
	quantity     INTEGER NOT NULL,
	unit_price   INTEGER NOT NULL,
	subtotal     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);

CREATE TABLE IF NOT EXISTS invoices (
	id                  TEXT PRIMARY KEY,
	number              TEXT NOT NULL UNIQUE,
	type                TEXT NOT NULL,
	client_id           TEXT NOT NULL REFERENCES clients(id),
	cart_id             TEXT,
	order_id            TEXT,
	total               INTEGER NOT NULL,
	currency            TEXT NOT NULL,
	notes               TEXT NOT NULL DEFAULT '',
	valid_until         TIMESTAMP,
	converted_to_order  INTEGER NOT NULL DEFAULT 0,
	converted_at        TIMESTAMP,
	is_cancelled        INTEGER NOT NULL DEFAULT 0,
	cancellation_reason TEXT,
	cancelled_at        TIMESTAMP,
	document_path       TEXT,
	created_at          TIMESTAMP NOT NULL,
	updated_at          TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invoices_cart ON invoices(cart_id);
CREATE INDEX IF NOT EXISTS idx_invoices_order ON invoices(order_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_order_final ON invoices(order_id) WHERE type = 'invoice';

CREATE TABLE IF NOT EXISTS notifications (
	id            TEXT PRIMARY KEY,
	client_id     TEXT NOT NULL,
	event         TEXT NOT NULL,
	channel       TEXT NOT NULL,
	status        TEXT NOT NULL,
	recipient     TEXT NOT NULL DEFAULT '',
	payload       TEXT NOT NULL DEFAULT '{}',
	retry_count   INTEGER NOT NULL DEFAULT 0,
	max_retries   INTEGER NOT NULL DEFAULT 3,
	scheduled_for TIMESTAMP,
	last_error    TEXT,
	sent_at       TIMESTAMP,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status, scheduled_for);

CREATE TABLE IF NOT EXISTS counters (
	id            TEXT PRIMARY KEY,
	current_value INTEGER NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);
`

// Migrate creates the schema when missing. Statements are idempotent.
func (p *Provider) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: migrate schema: %w", err)
	}
	return nil
}
