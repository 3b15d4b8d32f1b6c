package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Schema holds the statements Migrate applies. Each is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS flat_records (
		collection text    NOT NULL,
		seq        integer NOT NULL,
		fields     text[]  NOT NULL,
		PRIMARY KEY (collection, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS event_logs (
		id             bigserial   PRIMARY KEY,
		event_type     text        NOT NULL,
		appointment_id text,
		payload        jsonb,
		created_at     timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS event_logs_appointment_idx ON event_logs (appointment_id)`,
}

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func Migrate(ctx context.Context, db Execer) error {
	for i, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
