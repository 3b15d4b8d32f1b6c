// Package events carries domain events out of the allocation service.
// Publishing is best effort: a failed publish is logged by the caller and
// never undoes the operation that produced the event.
package events

import (
	"context"
	"errors"
	"time"
)

const (
	AppointmentBooked      = "APPOINTMENT_BOOKED"
	AppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	AppointmentDeclined    = "APPOINTMENT_DECLINED"
	AppointmentCancelled   = "APPOINTMENT_CANCELLED"
	AppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	OutcomeRecorded        = "OUTCOME_RECORDED"
	MedicationDispensed    = "MEDICATION_DISPENSED"
	BillAccrued            = "BILL_ACCRUED"
	BillSettled            = "BILL_SETTLED"
	MedicalRecordCreated   = "MEDICAL_RECORD_CREATED"
	MedicalRecordUpdated   = "MEDICAL_RECORD_UPDATED"
	ReconciliationRequired = "RECONCILIATION_REQUIRED"
)

type Event struct {
	Type          string         `json:"type"`
	AppointmentID string         `json:"appointment_id,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
