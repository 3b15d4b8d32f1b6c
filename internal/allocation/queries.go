package allocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/directory"
	"github.com/hackgods/clinic-scheduling/internal/outcome"
)

// AppointmentDetail is an appointment with its people and outcome resolved.
// Fields stay nil when the directory has no record or no outcome exists yet.
type AppointmentDetail struct {
	appointment.Appointment
	Patient *directory.Person `json:"patient,omitempty"`
	Doctor  *directory.Person `json:"doctor,omitempty"`
	Outcome *outcome.Outcome  `json:"outcome,omitempty"`
}

func (s *Service) GetAppointment(ctx context.Context, id string) (appointment.Appointment, error) {
	return s.appts.GetByID(ctx, id)
}

func (s *Service) GetAppointmentDetail(ctx context.Context, id string) (AppointmentDetail, error) {
	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return AppointmentDetail{}, fmt.Errorf("get appointment: %w", err)
	}

	detail := AppointmentDetail{Appointment: appt}
	detail.Patient = s.lookupPerson(ctx, appt.PatientID)
	detail.Doctor = s.lookupPerson(ctx, appt.DoctorID)

	o, err := s.outcomes.GetByAppointment(ctx, appt.ID)
	switch {
	case err == nil:
		detail.Outcome = &o
	case !errors.Is(err, apperr.ErrNotFound):
		return AppointmentDetail{}, fmt.Errorf("get outcome: %w", err)
	}
	return detail, nil
}

func (s *Service) lookupPerson(ctx context.Context, id string) *directory.Person {
	if s.directory == nil {
		return nil
	}
	p, err := s.directory.FindByID(ctx, id)
	if err != nil {
		return nil
	}
	return &p
}

func (s *Service) AllAppointments(ctx context.Context) ([]appointment.Appointment, error) {
	return s.appts.All(ctx)
}

func (s *Service) AppointmentsForDoctor(ctx context.Context, doctorID string) ([]appointment.Appointment, error) {
	return s.appts.ByDoctor(ctx, doctorID)
}

func (s *Service) PendingForDoctor(ctx context.Context, doctorID string) ([]appointment.Appointment, error) {
	return s.appts.PendingByDoctor(ctx, doctorID)
}

func (s *Service) ConfirmedForDoctor(ctx context.Context, doctorID string) ([]appointment.Appointment, error) {
	return s.appts.ConfirmedByDoctor(ctx, doctorID)
}

// ScheduledForPatient lists the patient's Pending and Confirmed visits.
func (s *Service) ScheduledForPatient(ctx context.Context, patientID string) ([]appointment.Appointment, error) {
	return s.appts.ConfirmedOrPendingByPatient(ctx, patientID)
}

func (s *Service) AllOutcomes(ctx context.Context) ([]outcome.Outcome, error) {
	return s.outcomes.All(ctx)
}

func (s *Service) PendingPrescriptions(ctx context.Context) ([]outcome.Outcome, error) {
	return s.outcomes.PendingDispense(ctx)
}

func (s *Service) OutcomesForPatient(ctx context.Context, patientID string) ([]outcome.Outcome, error) {
	return s.outcomes.ByPatient(ctx, patientID)
}
