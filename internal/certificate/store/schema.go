package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the registry DDL. certificate_numbers is append-only on purpose:
// a reservation survives draft deletion so public numbers are never reused.
const Schema = `
CREATE TABLE IF NOT EXISTS certificates (
	id                  UUID PRIMARY KEY,
	public_number       TEXT NOT NULL UNIQUE,
	title               TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	category            TEXT NOT NULL,
	subject_id          TEXT NOT NULL,
	subject_name        TEXT NOT NULL,
	subject_email       TEXT NOT NULL DEFAULT '',
	subject_national_id TEXT NOT NULL DEFAULT '',
	training_id         TEXT NOT NULL,
	training_title      TEXT NOT NULL,
	training_instructor TEXT NOT NULL DEFAULT '',
	training_hours      INTEGER NOT NULL,
	completion_date     TIMESTAMPTZ NOT NULL,
	evidence_digest     TEXT NOT NULL DEFAULT '',
	score               DOUBLE PRECISION NOT NULL DEFAULT 0,
	passed              BOOLEAN NOT NULL DEFAULT FALSE,
	status              TEXT NOT NULL,
	integrity_digest    TEXT NOT NULL DEFAULT '',
	issued_at           TIMESTAMPTZ,
	valid_until         TIMESTAMPTZ,
	validation_url      TEXT NOT NULL DEFAULT '',
	qr_payload          TEXT NOT NULL DEFAULT '',
	revocation_reason   TEXT NOT NULL DEFAULT '',
	revoked_at          TIMESTAMPTZ,
	notes               TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS certificate_numbers (
	public_number TEXT PRIMARY KEY
);

CREATE SEQUENCE IF NOT EXISTS certificate_number_seq;
`

// EnsureSchema applies the registry DDL. Deployments run real migrations;
// this keeps tests and local development self-contained.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}
