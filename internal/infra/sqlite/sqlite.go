// Package sqlite is the durable record store backed by modernc.org/sqlite,
// a cgo-free driver. Records are stored as JSON documents alongside the
// indexed columns the list queries filter and order on; decimals survive
// the round trip because shopspring/decimal marshals to exact strings.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store implements every store port on top of a single SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// SQLite supports one writer; a single connection avoids SQLITE_BUSY
	// races between the pool's connections.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS properties (
    company TEXT NOT NULL,
    code    TEXT NOT NULL,
    data    TEXT NOT NULL,
    PRIMARY KEY (company, code)
);
CREATE TABLE IF NOT EXISTS fee_structures (
    id             TEXT PRIMARY KEY,
    company        TEXT NOT NULL,
    status         TEXT NOT NULL,
    effective_from TEXT NOT NULL,
    effective_to   TEXT,
    data           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fee_structures_company ON fee_structures (company, status);
CREATE TABLE IF NOT EXISTS property_accounts (
    id            TEXT PRIMARY KEY,
    company       TEXT NOT NULL,
    property_code TEXT NOT NULL,
    status        TEXT NOT NULL,
    data          TEXT NOT NULL,
    UNIQUE (company, property_code)
);
CREATE TABLE IF NOT EXISTS resident_accounts (
    id         TEXT PRIMARY KEY,
    account_id TEXT NOT NULL,
    data       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_resident_accounts_account ON resident_accounts (account_id);
CREATE TABLE IF NOT EXISTS billing_cycles (
    id         TEXT PRIMARY KEY,
    company    TEXT NOT NULL,
    status     TEXT NOT NULL,
    start_date TEXT NOT NULL,
    end_date   TEXT NOT NULL,
    data       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_billing_cycles_company ON billing_cycles (company, status);
CREATE TABLE IF NOT EXISTS invoices (
    id         TEXT PRIMARY KEY,
    cycle_id   TEXT NOT NULL,
    account_id TEXT NOT NULL,
    status     TEXT NOT NULL,
    due_date   TEXT NOT NULL,
    data       TEXT NOT NULL,
    UNIQUE (cycle_id, account_id)
);
CREATE INDEX IF NOT EXISTS idx_invoices_account ON invoices (account_id, status);
CREATE TABLE IF NOT EXISTS payments (
    id         TEXT PRIMARY KEY,
    account_id TEXT NOT NULL,
    data       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_payments_account ON payments (account_id);
CREATE TABLE IF NOT EXISTS credit_balances (
    id          TEXT PRIMARY KEY,
    account_id  TEXT NOT NULL,
    company     TEXT NOT NULL,
    status      TEXT NOT NULL,
    expiry_date TEXT,
    created_seq INTEGER NOT NULL,
    data        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_credit_balances_account ON credit_balances (account_id, status);
CREATE TABLE IF NOT EXISTS fines (
    id         TEXT PRIMARY KEY,
    account_id TEXT NOT NULL,
    company    TEXT NOT NULL,
    status     TEXT NOT NULL,
    due_date   TEXT NOT NULL,
    data       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fines_account ON fines (account_id, status);
CREATE TABLE IF NOT EXISTS seq (
    name  TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);
`

// ============================================================
// Transactions
// ============================================================

type txKey struct{}

// WithinTx runs fn inside a single transaction. The transaction travels in
// the context, so store methods called from fn join it transparently.
// Transactions do not nest.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// querier is the subset of *sql.DB / *sql.Tx the store methods need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// nextSeq returns a monotonically increasing value for the named counter.
func (s *Store) nextSeq(ctx context.Context, name string) (int64, error) {
	q := s.q(ctx)
	if _, err := q.ExecContext(ctx,
		`INSERT INTO seq (name, value) VALUES (?, 1)
		 ON CONFLICT (name) DO UPDATE SET value = value + 1`, name); err != nil {
		return 0, err
	}
	var v int64
	if err := q.QueryRowContext(ctx, `SELECT value FROM seq WHERE name = ?`, name).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// ============================================================
// Encoding helpers
// ============================================================

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding record: %w", err)
	}
	return string(b), nil
}

func unmarshal[T any](data string) (*T, error) {
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return &v, nil
}

func scanAll[T any](rows *sql.Rows) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		v, err := unmarshal[T](data)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func dateKey(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func dateKeyPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return dateKey(*t)
}
