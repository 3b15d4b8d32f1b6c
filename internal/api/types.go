package api

import (
	"encoding/json"
	"net/http"

	"github.com/hackgods/clinic-scheduling/internal/billing"
)

type DeclareSlotRequest struct {
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type CreateAppointmentRequest struct {
	SlotID string `json:"slot_id"`
}

type RescheduleRequest struct {
	SlotID string `json:"slot_id"`
}

// UpdateRecordRequest replaces the clinical fields of a medical record.
// Omitted fields keep their stored value.
type UpdateRecordRequest struct {
	Diagnosis    string `json:"diagnosis"`
	Treatment    string `json:"treatment"`
	Prescription string `json:"prescription"`
}

type BillingResponse struct {
	PatientID string `json:"patient_id"`
	Unpaid    int    `json:"unpaid"`
	Paid      int    `json:"paid"`
	AmountDue int    `json:"amount_due"`
	UnitRate  int    `json:"unit_rate"`
}

type SettleResponse struct {
	Settled bool            `json:"settled"`
	Billing BillingResponse `json:"billing"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func billingResponse(e billing.Entry) BillingResponse {
	return BillingResponse{
		PatientID: e.PatientID,
		Unpaid:    e.Unpaid,
		Paid:      e.Paid,
		AmountDue: e.AmountDue(),
		UnitRate:  billing.UnitRate,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
