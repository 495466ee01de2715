package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the full DDL for the service. The scans table is append-only:
// the engine only ever inserts, and the seq bigserial breaks timestamp ties
// so per-resident ordering is total.
const Schema = `
CREATE TABLE IF NOT EXISTS residents (
	id   UUID PRIMARY KEY,
	mdoc TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS locations (
	id     UUID PRIMARY KEY,
	prefix TEXT NOT NULL,
	name   TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS locations_prefix_unique
	ON locations (UPPER(prefix));

CREATE TABLE IF NOT EXISTS scans (
	seq         BIGSERIAL PRIMARY KEY,
	resident_id UUID NOT NULL REFERENCES residents (id),
	ts          TIMESTAMPTZ NOT NULL,
	status      TEXT NOT NULL CHECK (status IN ('In', 'Out')),
	location    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS scans_resident_ts
	ON scans (resident_id, ts DESC, seq DESC);

CREATE TABLE IF NOT EXISTS audit_log (
	id        BIGSERIAL PRIMARY KEY,
	ts        TIMESTAMPTZ NOT NULL,
	actor     TEXT NOT NULL DEFAULT '',
	action    TEXT NOT NULL,
	target    TEXT NOT NULL,
	details   TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT ''
);
`

// EnsureSchema applies the DDL. Statements are idempotent so startup can run
// it unconditionally.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return nil
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
