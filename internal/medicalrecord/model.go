package medicalrecord

import (
	"fmt"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

// CollectionName is the persisted name of the medical record collection.
const CollectionName = "MedicalRecord"

var ErrNotFound = fmt.Errorf("medical record %w", apperr.ErrNotFound)

// Record is a doctor's free-text entry in a patient's history. Unlike an
// outcome it is not tied to an appointment.
type Record struct {
	ID           string `json:"id"`
	PatientID    string `json:"patient_id"`
	DoctorID     string `json:"doctor_id"`
	Diagnosis    string `json:"diagnosis"`
	Treatment    string `json:"treatment"`
	Prescription string `json:"prescription"`
}

type codec struct{}

func (codec) Header() []string {
	return []string{"RecordID", "PatientID", "DoctorID", "Diagnosis", "Treatment", "Prescription"}
}

func (codec) Encode(r Record) []string {
	return []string{r.ID, r.PatientID, r.DoctorID, r.Diagnosis, r.Treatment, r.Prescription}
}

func (codec) Decode(f []string) (Record, error) {
	if err := store.ExpectFields(f, 6); err != nil {
		return Record{}, err
	}
	return Record{
		ID:           f[0],
		PatientID:    f[1],
		DoctorID:     f[2],
		Diagnosis:    f[3],
		Treatment:    f[4],
		Prescription: f[5],
	}, nil
}
