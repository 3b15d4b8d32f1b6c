package outcome

import (
	"context"
	"fmt"
	"strings"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/idgen"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

// AppointmentReader resolves outcome ownership.
type AppointmentReader interface {
	All(ctx context.Context) ([]appointment.Appointment, error)
}

type NewOutcome struct {
	AppointmentID string
	Date          string
	ServiceType   string
	Medications   []string
	Notes         string
}

type Store struct {
	items        *store.Collection[Outcome]
	ids          idgen.Generator
	inventory    Inventory
	appointments AppointmentReader
}

func NewStore(backend store.Backend, inventory Inventory, appointments AppointmentReader, opts ...store.Option) *Store {
	return &Store{
		items:        store.NewCollection[Outcome](CollectionName, backend, codec{}, opts...),
		ids:          idgen.Generator{Prefix: "AO"},
		inventory:    inventory,
		appointments: appointments,
	}
}

// Create records the single outcome of an appointment. Medication names are
// resolved against the inventory before anything is written.
func (s *Store) Create(ctx context.Context, in NewOutcome) (Outcome, error) {
	if strings.TrimSpace(in.AppointmentID) == "" {
		return Outcome{}, fmt.Errorf("appointment id is required: %w", apperr.ErrValidation)
	}
	if strings.TrimSpace(in.ServiceType) == "" {
		return Outcome{}, fmt.Errorf("service type is required: %w", apperr.ErrValidation)
	}

	meds, err := ResolveMedications(ctx, s.inventory, in.Medications)
	if err != nil {
		return Outcome{}, err
	}

	status := MedicationPending
	if len(meds) == 0 {
		status = MedicationNone
	}

	var created Outcome
	err = s.items.Update(ctx, func(items []Outcome) ([]Outcome, error) {
		for _, o := range items {
			if o.AppointmentID == in.AppointmentID {
				return nil, fmt.Errorf("%s (%s): %w", in.AppointmentID, o.ID, ErrAlreadyRecorded)
			}
		}
		last := ""
		if len(items) > 0 {
			last = items[len(items)-1].ID
		}
		id, err := s.ids.Next(last)
		if err != nil {
			return nil, fmt.Errorf("next outcome id: %w", err)
		}
		created = Outcome{
			ID:               id,
			AppointmentID:    in.AppointmentID,
			Date:             in.Date,
			ServiceType:      in.ServiceType,
			Medications:      meds,
			MedicationStatus: status,
			Notes:            in.Notes,
		}
		return append(items, created), nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return created, nil
}

// SetDispensed flips a Pending prescription to Dispensed.
func (s *Store) SetDispensed(ctx context.Context, id string) (Outcome, error) {
	var updated Outcome
	err := s.items.Update(ctx, func(items []Outcome) ([]Outcome, error) {
		for i, o := range items {
			if o.ID != id {
				continue
			}
			if o.MedicationStatus != MedicationPending {
				return nil, fmt.Errorf("%s is %s: %w", id, o.MedicationStatus, ErrNotDispensable)
			}
			items[i].MedicationStatus = MedicationDispensed
			updated = items[i]
			return items, nil
		}
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	})
	if err != nil {
		return Outcome{}, err
	}
	return updated, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (Outcome, error) {
	all, err := s.items.Load(ctx)
	if err != nil {
		return Outcome{}, err
	}
	for _, o := range all {
		if o.ID == id {
			return o, nil
		}
	}
	return Outcome{}, fmt.Errorf("%s: %w", id, ErrNotFound)
}

func (s *Store) GetByAppointment(ctx context.Context, appointmentID string) (Outcome, error) {
	all, err := s.items.Load(ctx)
	if err != nil {
		return Outcome{}, err
	}
	for _, o := range all {
		if o.AppointmentID == appointmentID {
			return o, nil
		}
	}
	return Outcome{}, fmt.Errorf("appointment %s: %w", appointmentID, ErrNotFound)
}

func (s *Store) All(ctx context.Context) ([]Outcome, error) {
	return s.items.Load(ctx)
}

func (s *Store) PendingDispense(ctx context.Context) ([]Outcome, error) {
	all, err := s.items.Load(ctx)
	if err != nil {
		return nil, err
	}
	var result []Outcome
	for _, o := range all {
		if o.MedicationStatus == MedicationPending {
			result = append(result, o)
		}
	}
	return result, nil
}

// ByPatient joins through the appointment collection. Outcomes whose
// appointment record no longer exists are unreachable here.
func (s *Store) ByPatient(ctx context.Context, patientID string) ([]Outcome, error) {
	appts, err := s.appointments.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	owner := make(map[string]string, len(appts))
	for _, a := range appts {
		owner[a.ID] = a.PatientID
	}

	all, err := s.items.Load(ctx)
	if err != nil {
		return nil, err
	}
	var result []Outcome
	for _, o := range all {
		if owner[o.AppointmentID] == patientID {
			result = append(result, o)
		}
	}
	return result, nil
}
