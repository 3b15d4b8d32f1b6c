package outcome

import (
	"fmt"
	"strings"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

// CollectionName is the persisted name of the outcome collection.
const CollectionName = "AppointmentOutcome"

// NoMedication is the stored sentinel for an empty prescription.
const NoMedication = "none"

type MedicationStatus string

const (
	MedicationNone      MedicationStatus = "none"
	MedicationPending   MedicationStatus = "Pending"
	MedicationDispensed MedicationStatus = "Dispensed"
)

var (
	ErrNotFound        = fmt.Errorf("outcome %w", apperr.ErrNotFound)
	ErrAlreadyRecorded = fmt.Errorf("outcome already recorded for appointment: %w", apperr.ErrInvalidState)
	ErrNotDispensable  = fmt.Errorf("outcome has no pending prescription: %w", apperr.ErrInvalidState)
)

// Outcome is the clinical record of a visit. It has no patient id of its
// own; ownership is derived through its appointment.
type Outcome struct {
	ID               string           `json:"id"`
	AppointmentID    string           `json:"appointment_id"`
	Date             string           `json:"date"`
	ServiceType      string           `json:"service_type"`
	Medications      []string         `json:"medications"`
	MedicationStatus MedicationStatus `json:"medication_status"`
	Notes            string           `json:"notes"`
}

// MedicationField renders the prescription the way it is stored.
func (o Outcome) MedicationField() string {
	if len(o.Medications) == 0 {
		return NoMedication
	}
	return strings.Join(o.Medications, ", ")
}

type codec struct{}

func (codec) Header() []string {
	return []string{"OutcomeID", "AppointmentID", "Date", "ServiceType", "PrescribedMedication", "MedicationStatus", "ConsultationNotes"}
}

func (codec) Encode(o Outcome) []string {
	return []string{o.ID, o.AppointmentID, o.Date, o.ServiceType, o.MedicationField(), string(o.MedicationStatus), o.Notes}
}

func (codec) Decode(f []string) (Outcome, error) {
	if err := store.ExpectFields(f, 7); err != nil {
		return Outcome{}, err
	}
	status, err := parseMedicationStatus(f[5])
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		ID:               f[0],
		AppointmentID:    f[1],
		Date:             f[2],
		ServiceType:      f[3],
		Medications:      parseMedicationField(f[4]),
		MedicationStatus: status,
		Notes:            f[6],
	}, nil
}

func parseMedicationField(raw string) []string {
	raw = strings.Trim(strings.TrimSpace(raw), `"`)
	if raw == "" || strings.EqualFold(raw, NoMedication) || strings.EqualFold(raw, "nil") {
		return nil
	}
	var meds []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			meds = append(meds, name)
		}
	}
	return meds
}

func parseMedicationStatus(raw string) (MedicationStatus, error) {
	switch {
	case strings.EqualFold(raw, string(MedicationNone)), strings.EqualFold(raw, "nil"):
		return MedicationNone, nil
	case strings.EqualFold(raw, string(MedicationPending)):
		return MedicationPending, nil
	case strings.EqualFold(raw, string(MedicationDispensed)):
		return MedicationDispensed, nil
	}
	return "", fmt.Errorf("unknown medication status %q", raw)
}
