// Package dbtest opens throwaway sqlite databases carrying the same tables as
// the goose migrations, for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/packquote-backend/pkg/db"
)

// sqlite has no uuid, jsonb or numeric(14,2); ids and json are TEXT and
// decimals are TEXT so they round-trip without float conversion.
var schema = []string{
	`CREATE TABLE rate_tables (
		version      TEXT PRIMARY KEY,
		rates        TEXT NOT NULL,
		published_at DATETIME NOT NULL,
		created_at   DATETIME
	)`,
	`CREATE TABLE coupons (
		id                      TEXT PRIMARY KEY,
		code                    TEXT NOT NULL,
		name                    TEXT NOT NULL,
		type                    TEXT NOT NULL,
		value                   TEXT NOT NULL,
		minimum_order_amount    INTEGER NOT NULL DEFAULT 0,
		maximum_discount_amount INTEGER,
		max_uses                INTEGER,
		current_uses            INTEGER NOT NULL DEFAULT 0,
		max_uses_per_customer   INTEGER,
		is_active               BOOLEAN NOT NULL DEFAULT 1,
		valid_from              DATETIME NOT NULL,
		valid_until             DATETIME,
		created_at              DATETIME,
		updated_at              DATETIME,
		CONSTRAINT ux_coupons_code UNIQUE (code),
		CHECK (current_uses >= 0 AND (max_uses IS NULL OR current_uses <= max_uses))
	)`,
	`CREATE TABLE coupon_usage (
		id              TEXT PRIMARY KEY,
		coupon_id       TEXT NOT NULL REFERENCES coupons(id),
		customer_id     TEXT,
		quotation_id    TEXT NOT NULL,
		discount_amount INTEGER NOT NULL CHECK (discount_amount >= 0),
		original_amount INTEGER NOT NULL,
		final_amount    INTEGER NOT NULL,
		used_at         DATETIME NOT NULL
	)`,
	`CREATE TABLE quotations (
		id                 TEXT PRIMARY KEY,
		quotation_number   TEXT NOT NULL,
		customer_id        TEXT,
		guest_name         TEXT,
		guest_email        TEXT,
		guest_phone        TEXT,
		company_name       TEXT,
		status             TEXT NOT NULL DEFAULT 'draft',
		currency           TEXT NOT NULL DEFAULT 'JPY',
		subtotal_amount    INTEGER NOT NULL CHECK (subtotal_amount >= 0),
		discount_amount    INTEGER NOT NULL DEFAULT 0,
		tax_amount         INTEGER NOT NULL DEFAULT 0,
		total_amount       INTEGER NOT NULL CHECK (total_amount >= 0),
		coupon_id          TEXT,
		coupon_code        TEXT,
		rate_table_version TEXT NOT NULL,
		notes              TEXT,
		valid_until        DATETIME NOT NULL,
		pdf_url            TEXT,
		created_at         DATETIME,
		updated_at         DATETIME,
		CONSTRAINT ux_quotations_number UNIQUE (quotation_number)
	)`,
	`CREATE TABLE quotation_items (
		id            TEXT PRIMARY KEY,
		quotation_id  TEXT NOT NULL REFERENCES quotations(id) ON DELETE CASCADE,
		line_number   INTEGER NOT NULL,
		product_name  TEXT NOT NULL,
		specification TEXT NOT NULL,
		breakdown     TEXT NOT NULL,
		quantity      INTEGER NOT NULL CHECK (quantity > 0),
		unit_price    TEXT NOT NULL,
		total_price   INTEGER NOT NULL CHECK (total_price >= 0),
		created_at    DATETIME
	)`,
	`CREATE TABLE sample_requests (
		id               TEXT PRIMARY KEY,
		request_number   TEXT NOT NULL,
		customer_id      TEXT,
		contact_name     TEXT,
		contact_email    TEXT,
		contact_phone    TEXT,
		company_name     TEXT,
		shipping_address TEXT NOT NULL,
		status           TEXT NOT NULL DEFAULT 'received',
		tracking_number  TEXT,
		notes            TEXT,
		created_at       DATETIME,
		updated_at       DATETIME,
		CONSTRAINT ux_sample_requests_number UNIQUE (request_number)
	)`,
	`CREATE TABLE sample_items (
		id                TEXT PRIMARY KEY,
		sample_request_id TEXT NOT NULL REFERENCES sample_requests(id) ON DELETE CASCADE,
		product_id        TEXT NOT NULL,
		product_name      TEXT NOT NULL,
		quantity          INTEGER NOT NULL CHECK (quantity BETWEEN 1 AND 10),
		created_at        DATETIME
	)`,
	`CREATE TABLE inventory (
		id                 TEXT PRIMARY KEY,
		sku                TEXT NOT NULL,
		product_id         TEXT,
		warehouse_location TEXT NOT NULL DEFAULT 'main',
		bin_location       TEXT,
		quantity_on_hand   INTEGER NOT NULL DEFAULT 0 CHECK (quantity_on_hand >= 0),
		quantity_allocated INTEGER NOT NULL DEFAULT 0,
		reorder_point      INTEGER NOT NULL DEFAULT 0,
		created_at         DATETIME,
		updated_at         DATETIME,
		CONSTRAINT ux_inventory_sku UNIQUE (sku)
	)`,
	`CREATE TABLE inventory_transactions (
		id               TEXT PRIMARY KEY,
		inventory_id     TEXT NOT NULL REFERENCES inventory(id) ON DELETE CASCADE,
		transaction_type TEXT NOT NULL,
		quantity         INTEGER NOT NULL,
		quantity_before  INTEGER NOT NULL,
		quantity_after   INTEGER NOT NULL CHECK (quantity_after >= 0),
		reason           TEXT NOT NULL,
		reference_number TEXT,
		performed_by     TEXT,
		created_at       DATETIME
	)`,
	`CREATE TABLE outbox_events (
		id             TEXT PRIMARY KEY,
		event_type     TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		payload        TEXT NOT NULL,
		created_at     DATETIME,
		published_at   DATETIME,
		attempt_count  INTEGER NOT NULL DEFAULT 0,
		last_error     TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id             TEXT PRIMARY KEY,
		event_id       TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		payload_json   TEXT NOT NULL,
		error_reason   TEXT NOT NULL,
		error_message  TEXT,
		attempt_count  INTEGER NOT NULL DEFAULT 0,
		failed_at      DATETIME,
		created_at     DATETIME
	)`,
}

// Open returns a client over a private in-memory database named after the
// test. The pool is pinned to one connection so concurrent callers queue the
// way row locks would make them queue on Postgres.
func Open(t testing.TB) *db.Client {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db.NewFromConn(conn)
}

// Count returns the number of rows in table.
func Count(t testing.TB, client *db.Client, table string) int64 {
	t.Helper()
	var n int64
	if err := client.DB().Table(table).Count(&n).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
