package appointment

import (
	"fmt"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

// CollectionName is the persisted name of the appointment collection.
const CollectionName = "Appointment"

type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusCancelled Status = "Cancelled"
	StatusCompleted Status = "Completed"
)

var (
	ErrNotFound          = fmt.Errorf("appointment %w", apperr.ErrNotFound)
	ErrAlreadyExists     = fmt.Errorf("appointment already exists: %w", apperr.ErrInvalidState)
	ErrInvalidTransition = fmt.Errorf("invalid status transition: %w", apperr.ErrInvalidState)
)

// transitions lists the allowed next states. Cancelled and Completed are
// terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Live reports whether the appointment still holds its time window.
func (s Status) Live() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID        string `json:"id"`
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Status    Status `json:"status"`
}

type codec struct{}

func (codec) Header() []string {
	return []string{"AppointmentId", "PatientId", "DoctorId", "AppointmentDate", "StartTime", "EndTime", "Status"}
}

func (codec) Encode(a Appointment) []string {
	return []string{a.ID, a.PatientID, a.DoctorID, a.Date, a.StartTime, a.EndTime, string(a.Status)}
}

func (codec) Decode(f []string) (Appointment, error) {
	if err := store.ExpectFields(f, 7); err != nil {
		return Appointment{}, err
	}
	status := Status(f[6])
	if !status.Valid() {
		return Appointment{}, fmt.Errorf("unknown status %q", f[6])
	}
	return Appointment{
		ID:        f[0],
		PatientID: f[1],
		DoctorID:  f[2],
		Date:      f[3],
		StartTime: f[4],
		EndTime:   f[5],
		Status:    status,
	}, nil
}
