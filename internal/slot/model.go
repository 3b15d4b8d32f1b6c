package slot

import (
	"fmt"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

// CollectionName is the persisted name of the availability pool.
const CollectionName = "Availability"

var (
	ErrNotFound      = fmt.Errorf("slot %w", apperr.ErrNotFound)
	ErrAlreadyExists = fmt.Errorf("slot already exists: %w", apperr.ErrInvalidState)
	ErrDuplicate     = fmt.Errorf("window already declared: %w", apperr.ErrInvalidState)
)

// Slot is an unbooked time window a doctor has declared available.
type Slot struct {
	ID        string `json:"id"`
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Window identifies a doctor's time window independent of the date layout
// it was entered in.
type Window struct {
	DoctorID  string
	Date      string
	StartTime string
	EndTime   string
}

func NewWindow(doctorID, date, start, end string) Window {
	return Window{DoctorID: doctorID, Date: CanonicalDate(date), StartTime: start, EndTime: end}
}

func (s Slot) Window() Window {
	return NewWindow(s.DoctorID, s.Date, s.StartTime, s.EndTime)
}

type codec struct{}

func (codec) Header() []string {
	return []string{"availabilityId", "doctorId", "date", "startTime", "endTime"}
}

func (codec) Encode(s Slot) []string {
	return []string{s.ID, s.DoctorID, s.Date, s.StartTime, s.EndTime}
}

func (codec) Decode(f []string) (Slot, error) {
	if err := store.ExpectFields(f, 5); err != nil {
		return Slot{}, err
	}
	return Slot{ID: f[0], DoctorID: f[1], Date: f[2], StartTime: f[3], EndTime: f[4]}, nil
}
