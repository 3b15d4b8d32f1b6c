package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogPublisher writes events to the structured log.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	evt := p.logger.Info()
	if ev.Type == ReconciliationRequired {
		evt = p.logger.Error().Str("event", "reconciliation_required")
	}
	evt.
		Str("event_type", ev.Type).
		Str("appointment_id", ev.AppointmentID).
		Interface("payload", ev.Payload).
		Time("created_at", ev.CreatedAt).
		Msg("domain event")
	return nil
}
