package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/allocation"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/billing"
	"github.com/hackgods/clinic-scheduling/internal/directory"
	"github.com/hackgods/clinic-scheduling/internal/medicalrecord"
	"github.com/hackgods/clinic-scheduling/internal/outcome"
	"github.com/hackgods/clinic-scheduling/internal/slot"
)

// Service is the allocation surface the HTTP layer drives.
type Service interface {
	DeclareSlot(ctx context.Context, doctorID, date, start, end string) (slot.Slot, error)
	ListSlots(ctx context.Context) ([]slot.Slot, error)
	ListSlotsByDoctor(ctx context.Context, doctorID string) ([]slot.Slot, error)

	BookAppointment(ctx context.Context, patientID, slotID string) (appointment.Appointment, error)
	ConfirmAppointment(ctx context.Context, doctorID, id string) (appointment.Appointment, error)
	DeclineAppointment(ctx context.Context, doctorID, id string) (appointment.Appointment, error)
	CancelAppointment(ctx context.Context, patientID, id string) (slot.Slot, error)
	RescheduleAppointment(ctx context.Context, patientID, id, newSlotID string) (appointment.Appointment, error)
	RecordOutcome(ctx context.Context, doctorID, id string, req allocation.OutcomeRequest) (outcome.Outcome, error)

	GetAppointmentDetail(ctx context.Context, id string) (allocation.AppointmentDetail, error)
	AllAppointments(ctx context.Context) ([]appointment.Appointment, error)
	AppointmentsForDoctor(ctx context.Context, doctorID string) ([]appointment.Appointment, error)
	PendingForDoctor(ctx context.Context, doctorID string) ([]appointment.Appointment, error)
	ConfirmedForDoctor(ctx context.Context, doctorID string) ([]appointment.Appointment, error)
	ScheduledForPatient(ctx context.Context, patientID string) ([]appointment.Appointment, error)

	AllOutcomes(ctx context.Context) ([]outcome.Outcome, error)
	PendingPrescriptions(ctx context.Context) ([]outcome.Outcome, error)
	OutcomesForPatient(ctx context.Context, patientID string) ([]outcome.Outcome, error)
	DispenseMedication(ctx context.Context, outcomeID string) (outcome.Outcome, error)

	CreateMedicalRecord(ctx context.Context, doctorID string, req allocation.MedicalRecordRequest) (medicalrecord.Record, error)
	UpdateMedicalRecord(ctx context.Context, doctorID, id string, c medicalrecord.Changes) (medicalrecord.Record, error)
	GetMedicalRecord(ctx context.Context, id string) (medicalrecord.Record, error)
	AllMedicalRecords(ctx context.Context) ([]medicalrecord.Record, error)
	RecordsForPatient(ctx context.Context, patientID string) ([]medicalrecord.Record, error)
	RecordsForDoctor(ctx context.Context, doctorID string) ([]medicalrecord.Record, error)

	BillingEntry(ctx context.Context, patientID string) (billing.Entry, error)
	Settle(ctx context.Context, patientID string) (bool, error)
}

type RouterConfig struct {
	Service      Service
	Directory    directory.Lookup
	Dependencies []Dependency
	Logger       zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.Dependencies, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := &handlers{svc: cfg.Service, logger: cfg.Logger}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Directory))

		r.Get("/slots", h.listSlots)
		r.Post("/slots", h.declareSlot)

		r.Get("/appointments", h.listAppointments)
		r.Post("/appointments", h.createAppointment)
		r.Get("/appointments/{id}", h.getAppointment)
		r.Post("/appointments/{id}/confirm", h.confirmAppointment)
		r.Post("/appointments/{id}/decline", h.declineAppointment)
		r.Post("/appointments/{id}/cancel", h.cancelAppointment)
		r.Post("/appointments/{id}/reschedule", h.rescheduleAppointment)
		r.Post("/appointments/{id}/outcome", h.recordOutcome)

		r.Get("/outcomes", h.listOutcomes)
		r.Post("/outcomes/{id}/dispense", h.dispenseMedication)

		r.Get("/records", h.listRecords)
		r.Post("/records", h.createRecord)
		r.Get("/records/{id}", h.getRecord)
		r.Put("/records/{id}", h.updateRecord)

		r.Get("/billing/{patientID}", h.getBilling)
		r.Post("/billing/{patientID}/settle", h.settleBilling)
	})

	return r
}
