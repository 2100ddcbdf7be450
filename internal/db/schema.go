package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The partial unique index on pending reservations is the defense-in-depth
// behind the slot's conditional availability flip: two pending reservations
// for the same (pharmacy, date, time) can never both commit. Canceled rows
// stay out of the index so history never blocks a future booking.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS pharmacies (
	id uuid PRIMARY KEY,
	name text NOT NULL,
	address text NOT NULL,
	phone text NOT NULL,
	latitude double precision NOT NULL DEFAULT 0,
	longitude double precision NOT NULL DEFAULT 0,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS slots (
	id bigserial PRIMARY KEY,
	pharmacy_id uuid NOT NULL REFERENCES pharmacies (id),
	slot_date date NOT NULL,
	slot_time text NOT NULL,
	is_available boolean NOT NULL DEFAULT true,
	created_at timestamptz NOT NULL DEFAULT now(),
	UNIQUE (pharmacy_id, slot_date, slot_time)
);

CREATE TABLE IF NOT EXISTS reservations (
	id uuid PRIMARY KEY,
	user_id uuid NOT NULL,
	pharmacy_id uuid NOT NULL REFERENCES pharmacies (id),
	slot_date date NOT NULL,
	slot_time text NOT NULL,
	memo text,
	status text NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'canceled')),
	created_at timestamptz NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS reservations_pending_slot_uq
	ON reservations (pharmacy_id, slot_date, slot_time)
	WHERE status = 'pending';

CREATE INDEX IF NOT EXISTS reservations_user_status_idx
	ON reservations (user_id, status);
`

// EnsureSchema creates the tables and indexes if they don't exist yet.
// Every statement is idempotent, so running it on every startup is safe.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
