package appointment

import (
	"context"
	"fmt"
	"slices"

	"github.com/hackgods/clinic-scheduling/internal/idgen"
	"github.com/hackgods/clinic-scheduling/internal/slot"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

// Guard is checked against the current record inside the store's critical
// section, before a mutation is applied.
type Guard func(a Appointment) error

// Store owns appointment records. Queries are linear scans over the whole
// collection.
type Store struct {
	items *store.Collection[Appointment]
	ids   idgen.Generator
}

func NewStore(backend store.Backend, opts ...store.Option) *Store {
	return &Store{
		items: store.NewCollection[Appointment](CollectionName, backend, codec{}, opts...),
		ids:   idgen.Generator{Prefix: "AP"},
	}
}

// Create books a Pending appointment for patientID copying the consumed
// slot's doctor and window. Ids listed in avoid are never issued, even when
// the generator would reuse them on an emptied collection.
func (s *Store) Create(ctx context.Context, patientID string, sl slot.Slot, avoid ...string) (Appointment, error) {
	var created Appointment
	err := s.items.Update(ctx, func(items []Appointment) ([]Appointment, error) {
		last := ""
		if len(items) > 0 {
			last = items[len(items)-1].ID
		}
		id, err := s.ids.Next(last)
		for err == nil && slices.Contains(avoid, id) {
			id, err = s.ids.Next(id)
		}
		if err != nil {
			return nil, fmt.Errorf("next appointment id: %w", err)
		}
		created = Appointment{
			ID:        id,
			PatientID: patientID,
			DoctorID:  sl.DoctorID,
			Date:      sl.Date,
			StartTime: sl.StartTime,
			EndTime:   sl.EndTime,
			Status:    StatusPending,
		}
		return append(items, created), nil
	})
	if err != nil {
		return Appointment{}, err
	}
	return created, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (Appointment, error) {
	all, err := s.items.Load(ctx)
	if err != nil {
		return Appointment{}, err
	}
	for _, a := range all {
		if a.ID == id {
			return a, nil
		}
	}
	return Appointment{}, fmt.Errorf("%s: %w", id, ErrNotFound)
}

// UpdateStatus moves the appointment to status to if the state machine and
// every guard allow it.
func (s *Store) UpdateStatus(ctx context.Context, id string, to Status, guards ...Guard) (Appointment, error) {
	var updated Appointment
	err := s.items.Update(ctx, func(items []Appointment) ([]Appointment, error) {
		for i, a := range items {
			if a.ID != id {
				continue
			}
			for _, g := range guards {
				if err := g(a); err != nil {
					return nil, err
				}
			}
			if !CanTransition(a.Status, to) {
				return nil, fmt.Errorf("%s %s -> %s: %w", id, a.Status, to, ErrInvalidTransition)
			}
			items[i].Status = to
			updated = items[i]
			return items, nil
		}
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	})
	if err != nil {
		return Appointment{}, err
	}
	return updated, nil
}

// Remove deletes the record and returns it. It is the only true deletion.
func (s *Store) Remove(ctx context.Context, id string, guards ...Guard) (Appointment, error) {
	var removed Appointment
	err := s.items.Update(ctx, func(items []Appointment) ([]Appointment, error) {
		for i, a := range items {
			if a.ID != id {
				continue
			}
			for _, g := range guards {
				if err := g(a); err != nil {
					return nil, err
				}
			}
			removed = a
			return append(items[:i:i], items[i+1:]...), nil
		}
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	})
	if err != nil {
		return Appointment{}, err
	}
	return removed, nil
}

// Restore re-inserts a removed record in id order.
func (s *Store) Restore(ctx context.Context, appt Appointment) error {
	return s.items.Update(ctx, func(items []Appointment) ([]Appointment, error) {
		pos := len(items)
		for i, a := range items {
			if a.ID == appt.ID {
				return nil, fmt.Errorf("%s: %w", appt.ID, ErrAlreadyExists)
			}
			if pos == len(items) && idgen.Less(appt.ID, a.ID) {
				pos = i
			}
		}
		out := make([]Appointment, 0, len(items)+1)
		out = append(out, items[:pos]...)
		out = append(out, appt)
		return append(out, items[pos:]...), nil
	})
}

func (s *Store) All(ctx context.Context) ([]Appointment, error) {
	return s.items.Load(ctx)
}

func (s *Store) filter(ctx context.Context, keep func(Appointment) bool) ([]Appointment, error) {
	all, err := s.items.Load(ctx)
	if err != nil {
		return nil, err
	}
	var result []Appointment
	for _, a := range all {
		if keep(a) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (s *Store) PendingByDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	return s.filter(ctx, func(a Appointment) bool {
		return a.DoctorID == doctorID && a.Status == StatusPending
	})
}

func (s *Store) ConfirmedByDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	return s.filter(ctx, func(a Appointment) bool {
		return a.DoctorID == doctorID && a.Status == StatusConfirmed
	})
}

func (s *Store) ConfirmedOrPendingByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	return s.filter(ctx, func(a Appointment) bool {
		return a.PatientID == patientID && a.Status.Live()
	})
}

func (s *Store) ByDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	return s.filter(ctx, func(a Appointment) bool { return a.DoctorID == doctorID })
}
