package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/allocation"
	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/directory"
	"github.com/hackgods/clinic-scheduling/internal/medicalrecord"
	"github.com/hackgods/clinic-scheduling/internal/outcome"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

type handlers struct {
	svc    Service
	logger zerolog.Logger
}

type appointmentLister func(ctx context.Context, svc Service, user directory.Person, r *http.Request) ([]appointment.Appointment, error)

type recordLister func(ctx context.Context, svc Service, user directory.Person, r *http.Request) ([]medicalrecord.Record, error)

type outcomeLister func(ctx context.Context, svc Service, user directory.Person, r *http.Request) ([]outcome.Outcome, error)

// Per-role views. A role missing from a table is denied.
var (
	appointmentListers = map[directory.Role]appointmentLister{
		directory.RolePatient: func(ctx context.Context, svc Service, user directory.Person, _ *http.Request) ([]appointment.Appointment, error) {
			return svc.ScheduledForPatient(ctx, user.ID)
		},
		directory.RoleDoctor: func(ctx context.Context, svc Service, user directory.Person, r *http.Request) ([]appointment.Appointment, error) {
			switch strings.ToLower(r.URL.Query().Get("status")) {
			case "pending":
				return svc.PendingForDoctor(ctx, user.ID)
			case "confirmed":
				return svc.ConfirmedForDoctor(ctx, user.ID)
			}
			return svc.AppointmentsForDoctor(ctx, user.ID)
		},
		directory.RoleAdministrator: func(ctx context.Context, svc Service, _ directory.Person, _ *http.Request) ([]appointment.Appointment, error) {
			return svc.AllAppointments(ctx)
		},
	}

	outcomeListers = map[directory.Role]outcomeLister{
		directory.RolePatient: func(ctx context.Context, svc Service, user directory.Person, _ *http.Request) ([]outcome.Outcome, error) {
			return svc.OutcomesForPatient(ctx, user.ID)
		},
		directory.RoleDoctor: allOutcomes,
		directory.RolePharmacist: func(ctx context.Context, svc Service, user directory.Person, r *http.Request) ([]outcome.Outcome, error) {
			if strings.EqualFold(r.URL.Query().Get("status"), "pending") {
				return svc.PendingPrescriptions(ctx)
			}
			return allOutcomes(ctx, svc, user, r)
		},
		directory.RoleAdministrator: allOutcomes,
	}

	// Doctors see what they wrote unless they ask for one patient's history.
	recordListers = map[directory.Role]recordLister{
		directory.RolePatient: func(ctx context.Context, svc Service, user directory.Person, _ *http.Request) ([]medicalrecord.Record, error) {
			return svc.RecordsForPatient(ctx, user.ID)
		},
		directory.RoleDoctor: func(ctx context.Context, svc Service, user directory.Person, r *http.Request) ([]medicalrecord.Record, error) {
			if patientID := r.URL.Query().Get("patient_id"); patientID != "" {
				return svc.RecordsForPatient(ctx, patientID)
			}
			return svc.RecordsForDoctor(ctx, user.ID)
		},
		directory.RoleAdministrator: func(ctx context.Context, svc Service, _ directory.Person, r *http.Request) ([]medicalrecord.Record, error) {
			if patientID := r.URL.Query().Get("patient_id"); patientID != "" {
				return svc.RecordsForPatient(ctx, patientID)
			}
			return svc.AllMedicalRecords(ctx)
		},
	}

	recordViewers = map[directory.Role]func(user directory.Person, rec medicalrecord.Record) bool{
		directory.RolePatient:       func(user directory.Person, rec medicalrecord.Record) bool { return rec.PatientID == user.ID },
		directory.RoleDoctor:        func(directory.Person, medicalrecord.Record) bool { return true },
		directory.RoleAdministrator: func(directory.Person, medicalrecord.Record) bool { return true },
	}

	// slotOwners decides whose slot a declaration creates.
	slotOwners = map[directory.Role]func(user directory.Person, req DeclareSlotRequest) string{
		directory.RoleDoctor:        func(user directory.Person, _ DeclareSlotRequest) string { return user.ID },
		directory.RoleAdministrator: func(_ directory.Person, req DeclareSlotRequest) string { return req.DoctorID },
	}

	detailViewers = map[directory.Role]func(user directory.Person, a appointment.Appointment) bool{
		directory.RolePatient:       func(user directory.Person, a appointment.Appointment) bool { return a.PatientID == user.ID },
		directory.RoleDoctor:        func(user directory.Person, a appointment.Appointment) bool { return a.DoctorID == user.ID },
		directory.RoleAdministrator: func(directory.Person, appointment.Appointment) bool { return true },
	}

	billingViewers = map[directory.Role]func(user directory.Person, patientID string) bool{
		directory.RolePatient:       func(user directory.Person, patientID string) bool { return user.ID == patientID },
		directory.RoleAdministrator: func(directory.Person, string) bool { return true },
	}
)

func allOutcomes(ctx context.Context, svc Service, _ directory.Person, _ *http.Request) ([]outcome.Outcome, error) {
	return svc.AllOutcomes(ctx)
}

// require returns the caller if they hold one of roles, otherwise it writes
// 403 and reports false.
func require(w http.ResponseWriter, r *http.Request, roles ...directory.Role) (directory.Person, bool) {
	user, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_user", UserHeader+" header is required")
		return directory.Person{}, false
	}
	for _, role := range roles {
		if user.Role == role {
			return user, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", string(user.Role)+" may not perform this action")
	return directory.Person{}, false
}

func deny(w http.ResponseWriter, user directory.Person) {
	writeError(w, http.StatusForbidden, "forbidden", string(user.Role)+" may not perform this action")
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func (h *handlers) listSlots(w http.ResponseWriter, r *http.Request) {
	if doctorID := r.URL.Query().Get("doctor_id"); doctorID != "" {
		slots, err := h.svc.ListSlotsByDoctor(r.Context(), doctorID)
		h.respond(w, r, http.StatusOK, slots, err)
		return
	}
	slots, err := h.svc.ListSlots(r.Context())
	h.respond(w, r, http.StatusOK, slots, err)
}

func (h *handlers) declareSlot(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	owner, ok := slotOwners[user.Role]
	if !ok {
		deny(w, user)
		return
	}

	var req DeclareSlotRequest
	if !decode(w, r, &req) {
		return
	}

	sl, err := h.svc.DeclareSlot(r.Context(), owner(user, req), req.Date, req.StartTime, req.EndTime)
	h.respond(w, r, http.StatusCreated, sl, err)
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	list, ok := appointmentListers[user.Role]
	if !ok {
		deny(w, user)
		return
	}

	appts, err := list(r.Context(), h.svc, user, r)
	h.respond(w, r, http.StatusOK, appts, err)
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	user, ok := require(w, r, directory.RolePatient)
	if !ok {
		return
	}

	var req CreateAppointmentRequest
	if !decode(w, r, &req) {
		return
	}
	if req.SlotID == "" {
		writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id is required")
		return
	}

	appt, err := h.svc.BookAppointment(r.Context(), user.ID, req.SlotID)
	h.respond(w, r, http.StatusCreated, appt, err)
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	canView, ok := detailViewers[user.Role]
	if !ok {
		deny(w, user)
		return
	}

	detail, err := h.svc.GetAppointmentDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !canView(user, detail.Appointment) {
		deny(w, user)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *handlers) confirmAppointment(w http.ResponseWriter, r *http.Request) {
	user, ok := require(w, r, directory.RoleDoctor)
	if !ok {
		return
	}
	appt, err := h.svc.ConfirmAppointment(r.Context(), user.ID, chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, appt, err)
}

func (h *handlers) declineAppointment(w http.ResponseWriter, r *http.Request) {
	user, ok := require(w, r, directory.RoleDoctor)
	if !ok {
		return
	}
	appt, err := h.svc.DeclineAppointment(r.Context(), user.ID, chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, appt, err)
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	user, ok := require(w, r, directory.RolePatient)
	if !ok {
		return
	}
	recycled, err := h.svc.CancelAppointment(r.Context(), user.ID, chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, map[string]any{"recycled_slot": recycled}, err)
}

func (h *handlers) rescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	user, ok := require(w, r, directory.RolePatient)
	if !ok {
		return
	}

	var req RescheduleRequest
	if !decode(w, r, &req) {
		return
	}
	if req.SlotID == "" {
		writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id is required")
		return
	}

	appt, err := h.svc.RescheduleAppointment(r.Context(), user.ID, chi.URLParam(r, "id"), req.SlotID)
	h.respond(w, r, http.StatusCreated, appt, err)
}

func (h *handlers) recordOutcome(w http.ResponseWriter, r *http.Request) {
	user, ok := require(w, r, directory.RoleDoctor)
	if !ok {
		return
	}

	var req allocation.OutcomeRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.svc.RecordOutcome(r.Context(), user.ID, chi.URLParam(r, "id"), req)
	h.respond(w, r, http.StatusCreated, o, err)
}

func (h *handlers) listOutcomes(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	list, ok := outcomeListers[user.Role]
	if !ok {
		deny(w, user)
		return
	}

	outs, err := list(r.Context(), h.svc, user, r)
	h.respond(w, r, http.StatusOK, outs, err)
}

func (h *handlers) dispenseMedication(w http.ResponseWriter, r *http.Request) {
	if _, ok := require(w, r, directory.RolePharmacist); !ok {
		return
	}
	o, err := h.svc.DispenseMedication(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, o, err)
}

func (h *handlers) listRecords(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	list, ok := recordListers[user.Role]
	if !ok {
		deny(w, user)
		return
	}

	recs, err := list(r.Context(), h.svc, user, r)
	h.respond(w, r, http.StatusOK, recs, err)
}

func (h *handlers) createRecord(w http.ResponseWriter, r *http.Request) {
	user, ok := require(w, r, directory.RoleDoctor)
	if !ok {
		return
	}

	var req allocation.MedicalRecordRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PatientID == "" {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id is required")
		return
	}

	rec, err := h.svc.CreateMedicalRecord(r.Context(), user.ID, req)
	h.respond(w, r, http.StatusCreated, rec, err)
}

func (h *handlers) getRecord(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	canView, ok := recordViewers[user.Role]
	if !ok {
		deny(w, user)
		return
	}

	rec, err := h.svc.GetMedicalRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !canView(user, rec) {
		deny(w, user)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) updateRecord(w http.ResponseWriter, r *http.Request) {
	user, ok := require(w, r, directory.RoleDoctor)
	if !ok {
		return
	}

	var req UpdateRecordRequest
	if !decode(w, r, &req) {
		return
	}

	rec, err := h.svc.UpdateMedicalRecord(r.Context(), user.ID, chi.URLParam(r, "id"), medicalrecord.Changes{
		Diagnosis:    req.Diagnosis,
		Treatment:    req.Treatment,
		Prescription: req.Prescription,
	})
	h.respond(w, r, http.StatusOK, rec, err)
}

func (h *handlers) billingPatient(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, _ := CurrentUser(r.Context())
	patientID := chi.URLParam(r, "patientID")

	canView, ok := billingViewers[user.Role]
	if !ok || !canView(user, patientID) {
		deny(w, user)
		return "", false
	}
	return patientID, true
}

func (h *handlers) getBilling(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.billingPatient(w, r)
	if !ok {
		return
	}
	entry, err := h.svc.BillingEntry(r.Context(), patientID)
	h.respond(w, r, http.StatusOK, billingResponse(entry), err)
}

func (h *handlers) settleBilling(w http.ResponseWriter, r *http.Request) {
	patientID, ok := h.billingPatient(w, r)
	if !ok {
		return
	}

	settled, err := h.svc.Settle(r.Context(), patientID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	entry, err := h.svc.BillingEntry(r.Context(), patientID)
	h.respond(w, r, http.StatusOK, SettleResponse{Settled: settled, Billing: billingResponse(entry)}, err)
}

func (h *handlers) respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "resource_busy", "another request is updating this data, please retry shortly")
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperr.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, apperr.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	default:
		h.logger.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
