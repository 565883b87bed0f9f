// Package postgres opens the two connection flavours used by the stores:
// database/sql over lib/pq for the identity directory and a pgx pool for the
// request workflow store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

// OpenDB opens and pings a database/sql handle using the lib/pq driver.
func OpenDB(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPool builds a pgx pool and verifies connectivity.
func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pool: %w", err)
	}
	return pool, nil
}

// Schema creates the tables both stores expect. It is idempotent and run at
// startup; real deployments may apply it through their migration tool instead.
const Schema = `
CREATE TABLE IF NOT EXISTS identities (
	id             UUID PRIMARY KEY,
	display_name   TEXT NOT NULL,
	email          TEXT NOT NULL UNIQUE,
	role           TEXT NOT NULL,
	account_status TEXT NOT NULL,
	student_number TEXT,
	password_hash  TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS approvable_requests (
	id                 UUID PRIMARY KEY,
	kind               TEXT NOT NULL,
	status             TEXT NOT NULL,
	owner_id           UUID NOT NULL,
	payload            JSONB NOT NULL,
	version            BIGINT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL,
	decided_at         TIMESTAMPTZ,
	decided_by         UUID,
	rejection_reason   TEXT,
	payment_ref        TEXT,
	notes              TEXT,
	updated_at         TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS approvable_requests_status_idx ON approvable_requests (kind, status);
CREATE INDEX IF NOT EXISTS approvable_requests_owner_idx ON approvable_requests (owner_id);

-- A student holds at most one open room booking.
CREATE UNIQUE INDEX IF NOT EXISTS approvable_requests_open_booking_idx
	ON approvable_requests (owner_id)
	WHERE kind = 'room_booking' AND status IN ('pending', 'approved_awaiting_payment');
`

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
