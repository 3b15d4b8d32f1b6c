package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the part of *pgxpool.Pool the event log needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgPublisher appends events to the event_logs table.
type PgPublisher struct {
	db Execer
}

func NewPgPublisher(db Execer) *PgPublisher {
	return &PgPublisher{db: db}
}

func (p *PgPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	var apptID *string
	if ev.AppointmentID != "" {
		apptID = &ev.AppointmentID
	}

	_, err = p.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.Type, apptID, data, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
