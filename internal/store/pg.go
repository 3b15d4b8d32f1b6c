package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgBackend keeps every collection as ordered rows of flat_records and
// replaces a collection inside one transaction.
type PgBackend struct {
	pool *pgxpool.Pool
}

func NewPgBackend(pool *pgxpool.Pool) *PgBackend {
	return &PgBackend{pool: pool}
}

func (b *PgBackend) Load(ctx context.Context, collection string) ([][]string, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT fields
		FROM flat_records
		WHERE collection = $1
		ORDER BY seq
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var result [][]string
	for rows.Next() {
		var fields []string
		if err := rows.Scan(&fields); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		result = append(result, fields)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (b *PgBackend) Save(ctx context.Context, collection string, _ []string, rows [][]string) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM flat_records WHERE collection = $1`, collection); err != nil {
		return fmt.Errorf("clear %s: %w", collection, err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"flat_records"},
		[]string{"collection", "seq", "fields"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return []any{collection, i, rows[i]}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy %s: %w", collection, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", collection, err)
	}
	return nil
}
