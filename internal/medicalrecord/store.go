package medicalrecord

import (
	"context"
	"fmt"
	"strings"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/idgen"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

// Guard is checked against the stored record before an update is applied.
type Guard func(r Record) error

type NewRecord struct {
	PatientID    string
	DoctorID     string
	Diagnosis    string
	Treatment    string
	Prescription string
}

// Changes replaces the clinical fields of a record. Empty fields keep the
// stored value.
type Changes struct {
	Diagnosis    string
	Treatment    string
	Prescription string
}

func (c Changes) empty() bool {
	return c.Diagnosis == "" && c.Treatment == "" && c.Prescription == ""
}

type Store struct {
	items *store.Collection[Record]
	ids   idgen.Generator
}

func NewStore(backend store.Backend, opts ...store.Option) *Store {
	return &Store{
		items: store.NewCollection[Record](CollectionName, backend, codec{}, opts...),
		ids:   idgen.Generator{Prefix: "R", SkipSentinel: true},
	}
}

func (s *Store) Create(ctx context.Context, in NewRecord) (Record, error) {
	switch {
	case strings.TrimSpace(in.PatientID) == "":
		return Record{}, fmt.Errorf("patient id is required: %w", apperr.ErrValidation)
	case strings.TrimSpace(in.DoctorID) == "":
		return Record{}, fmt.Errorf("doctor id is required: %w", apperr.ErrValidation)
	case strings.TrimSpace(in.Diagnosis) == "":
		return Record{}, fmt.Errorf("diagnosis is required: %w", apperr.ErrValidation)
	}

	var created Record
	err := s.items.Update(ctx, func(items []Record) ([]Record, error) {
		last := ""
		if len(items) > 0 {
			last = items[len(items)-1].ID
		}
		id, err := s.ids.Next(last)
		if err != nil {
			return nil, fmt.Errorf("next record id: %w", err)
		}
		created = Record{
			ID:           id,
			PatientID:    in.PatientID,
			DoctorID:     in.DoctorID,
			Diagnosis:    in.Diagnosis,
			Treatment:    in.Treatment,
			Prescription: in.Prescription,
		}
		return append(items, created), nil
	})
	if err != nil {
		return Record{}, err
	}
	return created, nil
}

func (s *Store) Update(ctx context.Context, id string, c Changes, guards ...Guard) (Record, error) {
	if c.empty() {
		return Record{}, fmt.Errorf("nothing to update: %w", apperr.ErrValidation)
	}

	var updated Record
	err := s.items.Update(ctx, func(items []Record) ([]Record, error) {
		for i, r := range items {
			if r.ID != id {
				continue
			}
			for _, g := range guards {
				if err := g(r); err != nil {
					return nil, err
				}
			}
			if c.Diagnosis != "" {
				items[i].Diagnosis = c.Diagnosis
			}
			if c.Treatment != "" {
				items[i].Treatment = c.Treatment
			}
			if c.Prescription != "" {
				items[i].Prescription = c.Prescription
			}
			updated = items[i]
			return items, nil
		}
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	})
	if err != nil {
		return Record{}, err
	}
	return updated, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (Record, error) {
	all, err := s.items.Load(ctx)
	if err != nil {
		return Record{}, err
	}
	for _, r := range all {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, fmt.Errorf("%s: %w", id, ErrNotFound)
}

func (s *Store) All(ctx context.Context) ([]Record, error) {
	return s.items.Load(ctx)
}

func (s *Store) filter(ctx context.Context, keep func(Record) bool) ([]Record, error) {
	all, err := s.items.Load(ctx)
	if err != nil {
		return nil, err
	}
	var result []Record
	for _, r := range all {
		if keep(r) {
			result = append(result, r)
		}
	}
	return result, nil
}

func (s *Store) ByPatient(ctx context.Context, patientID string) ([]Record, error) {
	return s.filter(ctx, func(r Record) bool { return r.PatientID == patientID })
}

func (s *Store) ByDoctor(ctx context.Context, doctorID string) ([]Record, error) {
	return s.filter(ctx, func(r Record) bool { return r.DoctorID == doctorID })
}
