// Package allocation orchestrates the slot, appointment, outcome and
// billing stores. Every multi-store operation is a fixed sequence of
// individually atomic store steps; a failed step undoes the steps before it,
// and a failed undo is reported as reconciliation_required.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/billing"
	"github.com/hackgods/clinic-scheduling/internal/directory"
	"github.com/hackgods/clinic-scheduling/internal/events"
	"github.com/hackgods/clinic-scheduling/internal/medicalrecord"
	"github.com/hackgods/clinic-scheduling/internal/outcome"
	"github.com/hackgods/clinic-scheduling/internal/slot"
)

var (
	ErrNotOwner     = fmt.Errorf("appointment belongs to someone else: %w", apperr.ErrInvalidState)
	ErrNotPending   = fmt.Errorf("appointment is not pending: %w", apperr.ErrInvalidState)
	ErrNotConfirmed = fmt.Errorf("appointment is not confirmed: %w", apperr.ErrInvalidState)
	ErrNotLive      = fmt.Errorf("appointment is no longer scheduled: %w", apperr.ErrInvalidState)
)

type Stores struct {
	Slots        *slot.Store
	Appointments *appointment.Store
	Outcomes     *outcome.Store
	Ledger       *billing.Ledger
	Records      *medicalrecord.Store
}

type Service struct {
	slots    *slot.Store
	appts    *appointment.Store
	outcomes *outcome.Store
	ledger   *billing.Ledger
	records  *medicalrecord.Store

	directory directory.Lookup
	events    events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

type Option func(*Service)

// WithDirectory enables best-effort checks that referenced people exist.
func WithDirectory(d directory.Lookup) Option {
	return func(s *Service) { s.directory = d }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st Stores, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		slots:    st.Slots,
		appts:    st.Appointments,
		outcomes: st.Outcomes,
		ledger:   st.Ledger,
		records:  st.Records,
		events:   events.Nop{},
		logger:   logger.With().Str("component", "allocation").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DeclareSlot adds a bookable window for a doctor. A window that is already
// open or held by a live appointment is rejected with slot.ErrDuplicate, so
// a free slot matching a live appointment only arises from a failed undo.
func (s *Service) DeclareSlot(ctx context.Context, doctorID, date, start, end string) (slot.Slot, error) {
	s.checkPerson(ctx, doctorID, directory.RoleDoctor)

	booked, err := s.appts.ByDoctor(ctx, doctorID)
	if err != nil {
		return slot.Slot{}, fmt.Errorf("declare slot: %w", err)
	}
	w := slot.NewWindow(doctorID, date, start, end)
	for _, a := range booked {
		if a.Status.Live() && appointmentWindow(a) == w {
			return slot.Slot{}, fmt.Errorf("declare slot: held by %s: %w", a.ID, slot.ErrDuplicate)
		}
	}

	sl, err := s.slots.Declare(ctx, doctorID, date, start, end)
	if err != nil {
		return slot.Slot{}, fmt.Errorf("declare slot: %w", err)
	}
	return sl, nil
}

func (s *Service) ListSlots(ctx context.Context) ([]slot.Slot, error) {
	return s.slots.ListAll(ctx)
}

func (s *Service) ListSlotsByDoctor(ctx context.Context, doctorID string) ([]slot.Slot, error) {
	return s.slots.ListByDoctor(ctx, doctorID)
}

// BookAppointment consumes the slot and creates a Pending appointment from
// it. Of two concurrent bookings for one slot exactly one wins; the other
// gets slot.ErrNotFound.
func (s *Service) BookAppointment(ctx context.Context, patientID, slotID string) (appointment.Appointment, error) {
	if patientID == "" {
		return appointment.Appointment{}, fmt.Errorf("patient id is required: %w", apperr.ErrValidation)
	}
	s.checkPerson(ctx, patientID, directory.RolePatient)

	sl, err := s.slots.Consume(ctx, slotID)
	if err != nil {
		return appointment.Appointment{}, fmt.Errorf("consume slot: %w", err)
	}

	appt, err := s.appts.Create(ctx, patientID, sl)
	if err != nil {
		if rerr := s.slots.Restore(ctx, sl); rerr != nil {
			s.reconciliationRequired(ctx, "restore_slot_after_failed_booking", rerr, "", map[string]any{
				"slot_id":    sl.ID,
				"patient_id": patientID,
			})
		}
		return appointment.Appointment{}, fmt.Errorf("create appointment: %w", err)
	}

	s.publish(ctx, events.AppointmentBooked, appt.ID, map[string]any{
		"slot_id":    sl.ID,
		"patient_id": patientID,
		"doctor_id":  appt.DoctorID,
	})
	return appt, nil
}

// ConfirmAppointment moves a doctor's Pending appointment to Confirmed.
func (s *Service) ConfirmAppointment(ctx context.Context, doctorID, id string) (appointment.Appointment, error) {
	updated, err := s.appts.UpdateStatus(ctx, id, appointment.StatusConfirmed,
		doctorOwns(doctorID), requireStatus(appointment.StatusPending, ErrNotPending))
	if err != nil {
		return appointment.Appointment{}, fmt.Errorf("confirm appointment: %w", err)
	}

	s.publish(ctx, events.AppointmentConfirmed, updated.ID, map[string]any{"doctor_id": doctorID})
	return updated, nil
}

// DeclineAppointment cancels a doctor's Pending appointment and returns its
// window to the pool. The cancelled record is kept.
func (s *Service) DeclineAppointment(ctx context.Context, doctorID, id string) (appointment.Appointment, error) {
	guards := []appointment.Guard{doctorOwns(doctorID), requireStatus(appointment.StatusPending, ErrNotPending)}

	appt, err := s.checkedAppointment(ctx, id, guards...)
	if err != nil {
		return appointment.Appointment{}, fmt.Errorf("decline appointment: %w", err)
	}

	recycled, err := s.recycle(ctx, appt)
	if err != nil {
		return appointment.Appointment{}, fmt.Errorf("decline appointment: %w", err)
	}

	updated, err := s.appts.UpdateStatus(ctx, id, appointment.StatusCancelled, guards...)
	if err != nil {
		s.withdraw(ctx, recycled, id)
		return appointment.Appointment{}, fmt.Errorf("decline appointment: %w", err)
	}

	s.publish(ctx, events.AppointmentDeclined, updated.ID, map[string]any{
		"doctor_id":        doctorID,
		"recycled_slot_id": recycled.ID,
	})
	return updated, nil
}

// CancelAppointment returns a patient's appointment window to the pool and
// deletes the appointment.
func (s *Service) CancelAppointment(ctx context.Context, patientID, id string) (slot.Slot, error) {
	guards := []appointment.Guard{patientOwns(patientID), requireLive}

	appt, err := s.checkedAppointment(ctx, id, guards...)
	if err != nil {
		return slot.Slot{}, fmt.Errorf("cancel appointment: %w", err)
	}

	recycled, err := s.recycle(ctx, appt)
	if err != nil {
		return slot.Slot{}, fmt.Errorf("cancel appointment: %w", err)
	}

	if _, err := s.appts.Remove(ctx, id, guards...); err != nil {
		s.withdraw(ctx, recycled, id)
		return slot.Slot{}, fmt.Errorf("cancel appointment: %w", err)
	}

	s.publish(ctx, events.AppointmentCancelled, id, map[string]any{
		"patient_id":       patientID,
		"recycled_slot_id": recycled.ID,
	})
	return recycled, nil
}

// RescheduleAppointment cancels the patient's appointment and books
// newSlotID in its place. The result is a new appointment whose id differs
// from the old one even when the old one was the only record.
//
// Steps run as recycle old window, remove old appointment, consume new
// slot, create new appointment. A failure undoes the completed steps in
// reverse.
func (s *Service) RescheduleAppointment(ctx context.Context, patientID, id, newSlotID string) (appointment.Appointment, error) {
	guards := []appointment.Guard{patientOwns(patientID), requireLive}

	old, err := s.checkedAppointment(ctx, id, guards...)
	if err != nil {
		return appointment.Appointment{}, fmt.Errorf("reschedule appointment: %w", err)
	}
	if _, err := s.slots.GetByID(ctx, newSlotID); err != nil {
		return appointment.Appointment{}, fmt.Errorf("reschedule appointment: %w", err)
	}

	recycled, err := s.recycle(ctx, old)
	if err != nil {
		return appointment.Appointment{}, fmt.Errorf("reschedule appointment: %w", err)
	}

	removed, err := s.appts.Remove(ctx, id, guards...)
	if err != nil {
		s.withdraw(ctx, recycled, id)
		return appointment.Appointment{}, fmt.Errorf("reschedule appointment: %w", err)
	}

	consumed, err := s.slots.Consume(ctx, newSlotID)
	if err != nil {
		s.restoreAppointment(ctx, removed)
		s.withdraw(ctx, recycled, id)
		return appointment.Appointment{}, fmt.Errorf("reschedule appointment: consume slot: %w", err)
	}

	created, err := s.appts.Create(ctx, patientID, consumed, old.ID)
	if err != nil {
		if rerr := s.slots.Restore(ctx, consumed); rerr != nil {
			s.reconciliationRequired(ctx, "restore_slot_after_failed_reschedule", rerr, id, map[string]any{
				"slot_id": consumed.ID,
			})
		}
		s.restoreAppointment(ctx, removed)
		s.withdraw(ctx, recycled, id)
		return appointment.Appointment{}, fmt.Errorf("reschedule appointment: create appointment: %w", err)
	}

	s.publish(ctx, events.AppointmentRescheduled, created.ID, map[string]any{
		"previous_appointment_id": id,
		"slot_id":                 consumed.ID,
		"recycled_slot_id":        recycled.ID,
		"patient_id":              patientID,
	})
	return created, nil
}

type OutcomeRequest struct {
	ServiceType string   `json:"service_type"`
	Medications []string `json:"medications"`
	Notes       string   `json:"notes"`
}

// RecordOutcome writes the outcome of a doctor's Confirmed appointment,
// completes the appointment and bills the patient. Outcome creation and the
// Completed flip are not atomic together; a failure after the outcome is
// written is logged as reconciliation_required.
func (s *Service) RecordOutcome(ctx context.Context, doctorID, id string, req OutcomeRequest) (outcome.Outcome, error) {
	guards := []appointment.Guard{doctorOwns(doctorID), requireStatus(appointment.StatusConfirmed, ErrNotConfirmed)}

	appt, err := s.checkedAppointment(ctx, id, guards...)
	if err != nil {
		return outcome.Outcome{}, fmt.Errorf("record outcome: %w", err)
	}

	o, err := s.outcomes.Create(ctx, outcome.NewOutcome{
		AppointmentID: appt.ID,
		Date:          appt.Date,
		ServiceType:   req.ServiceType,
		Medications:   req.Medications,
		Notes:         req.Notes,
	})
	if err != nil {
		return outcome.Outcome{}, fmt.Errorf("record outcome: %w", err)
	}

	if _, err := s.appts.UpdateStatus(ctx, appt.ID, appointment.StatusCompleted, guards...); err != nil {
		s.reconciliationRequired(ctx, "complete_appointment", err, appt.ID, map[string]any{"outcome_id": o.ID})
		return outcome.Outcome{}, fmt.Errorf("record outcome: complete appointment: %w", err)
	}

	s.publish(ctx, events.OutcomeRecorded, appt.ID, map[string]any{
		"outcome_id":        o.ID,
		"medication_status": string(o.MedicationStatus),
	})

	entry, err := s.ledger.Accrue(ctx, appt.PatientID)
	if err != nil {
		s.reconciliationRequired(ctx, "accrue_billing", err, appt.ID, map[string]any{
			"outcome_id": o.ID,
			"patient_id": appt.PatientID,
		})
		return outcome.Outcome{}, fmt.Errorf("record outcome: accrue billing: %w", err)
	}

	s.publish(ctx, events.BillAccrued, appt.ID, map[string]any{
		"patient_id": entry.PatientID,
		"unpaid":     entry.Unpaid,
		"amount_due": entry.AmountDue(),
	})
	return o, nil
}

func (s *Service) DispenseMedication(ctx context.Context, outcomeID string) (outcome.Outcome, error) {
	o, err := s.outcomes.SetDispensed(ctx, outcomeID)
	if err != nil {
		return outcome.Outcome{}, fmt.Errorf("dispense medication: %w", err)
	}
	s.publish(ctx, events.MedicationDispensed, o.AppointmentID, map[string]any{
		"outcome_id":  o.ID,
		"medications": o.Medications,
	})
	return o, nil
}

func (s *Service) AmountDue(ctx context.Context, patientID string) (int, error) {
	return s.ledger.AmountDue(ctx, patientID)
}

func (s *Service) BillingEntry(ctx context.Context, patientID string) (billing.Entry, error) {
	return s.ledger.Entry(ctx, patientID)
}

// Settle marks every unpaid visit as paid. It reports false when nothing
// was owed.
func (s *Service) Settle(ctx context.Context, patientID string) (bool, error) {
	due, err := s.ledger.AmountDue(ctx, patientID)
	if err != nil {
		return false, err
	}
	ok, err := s.ledger.Settle(ctx, patientID)
	if err != nil {
		return false, fmt.Errorf("settle: %w", err)
	}
	if ok {
		s.publish(ctx, events.BillSettled, "", map[string]any{
			"patient_id": patientID,
			"amount":     due,
		})
	}
	return ok, nil
}

// checkedAppointment loads id and runs guards against it before any store
// is touched. The same guards run again inside the mutating step.
func (s *Service) checkedAppointment(ctx context.Context, id string, guards ...appointment.Guard) (appointment.Appointment, error) {
	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return appointment.Appointment{}, err
	}
	for _, g := range guards {
		if err := g(appt); err != nil {
			return appointment.Appointment{}, err
		}
	}
	return appt, nil
}

func (s *Service) recycle(ctx context.Context, appt appointment.Appointment) (slot.Slot, error) {
	sl, err := s.slots.Recycle(ctx, appt.DoctorID, appt.Date, appt.StartTime, appt.EndTime)
	if err != nil {
		return slot.Slot{}, fmt.Errorf("recycle slot: %w", err)
	}
	return sl, nil
}

// withdraw takes back a slot recycled for an operation that then failed.
func (s *Service) withdraw(ctx context.Context, recycled slot.Slot, appointmentID string) {
	if _, err := s.slots.Consume(ctx, recycled.ID); err != nil {
		s.reconciliationRequired(ctx, "withdraw_recycled_slot", err, appointmentID, map[string]any{
			"slot_id": recycled.ID,
		})
	}
}

func (s *Service) restoreAppointment(ctx context.Context, appt appointment.Appointment) {
	if err := s.appts.Restore(ctx, appt); err != nil {
		s.reconciliationRequired(ctx, "restore_appointment", err, appt.ID, map[string]any{
			"patient_id": appt.PatientID,
			"status":     string(appt.Status),
		})
	}
}

// checkPerson only warns. Bookings are not blocked on directory lookups.
func (s *Service) checkPerson(ctx context.Context, id string, role directory.Role) {
	if s.directory == nil || id == "" {
		return
	}
	if _, err := directory.FindWithRole(ctx, s.directory, id, role); err != nil {
		evt := s.logger.Warn()
		if !errors.Is(err, apperr.ErrNotFound) {
			evt = s.logger.Error()
		}
		evt.Err(err).Str("person_id", id).Str("role", string(role)).Msg("directory check failed")
	}
}

func (s *Service) reconciliationRequired(ctx context.Context, step string, err error, appointmentID string, fields map[string]any) {
	s.logger.Error().
		Str("event", "reconciliation_required").
		Str("step", step).
		Str("appointment_id", appointmentID).
		Fields(fields).
		Err(err).
		Msg("stores left inconsistent")

	payload := map[string]any{"step": step, "error": err.Error()}
	for k, v := range fields {
		payload[k] = v
	}
	s.publish(ctx, events.ReconciliationRequired, appointmentID, payload)
}

func (s *Service) publish(ctx context.Context, eventType, appointmentID string, payload map[string]any) {
	ev := events.Event{
		Type:          eventType,
		AppointmentID: appointmentID,
		Payload:       payload,
		CreatedAt:     s.now(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Str("appointment_id", appointmentID).Msg("failed to publish event")
	}
}

func appointmentWindow(a appointment.Appointment) slot.Window {
	return slot.NewWindow(a.DoctorID, a.Date, a.StartTime, a.EndTime)
}

func doctorOwns(doctorID string) appointment.Guard {
	return func(a appointment.Appointment) error {
		if a.DoctorID != doctorID {
			return fmt.Errorf("%s: %w", a.ID, ErrNotOwner)
		}
		return nil
	}
}

func patientOwns(patientID string) appointment.Guard {
	return func(a appointment.Appointment) error {
		if a.PatientID != patientID {
			return fmt.Errorf("%s: %w", a.ID, ErrNotOwner)
		}
		return nil
	}
}

func requireStatus(status appointment.Status, sentinel error) appointment.Guard {
	return func(a appointment.Appointment) error {
		if a.Status != status {
			return fmt.Errorf("%s is %s: %w", a.ID, a.Status, sentinel)
		}
		return nil
	}
}

func requireLive(a appointment.Appointment) error {
	if !a.Status.Live() {
		return fmt.Errorf("%s is %s: %w", a.ID, a.Status, ErrNotLive)
	}
	return nil
}
