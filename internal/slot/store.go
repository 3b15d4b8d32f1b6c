package slot

import (
	"context"
	"fmt"
	"strings"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/idgen"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

// Store owns the pool of unbooked slots. Listing order is insertion order;
// nothing here sorts by date or time.
type Store struct {
	items *store.Collection[Slot]
	ids   idgen.Generator
}

func NewStore(backend store.Backend, opts ...store.Option) *Store {
	return &Store{
		items: store.NewCollection[Slot](CollectionName, backend, codec{}, opts...),
		ids:   idgen.Generator{Prefix: "AV", SkipSentinel: true},
	}
}

// Declare validates and appends a new slot for doctorID. A window the doctor
// already has open is rejected with ErrDuplicate.
func (s *Store) Declare(ctx context.Context, doctorID, date, start, end string) (Slot, error) {
	if strings.TrimSpace(doctorID) == "" {
		return Slot{}, fmt.Errorf("doctor id is required: %w", apperr.ErrValidation)
	}
	if err := ValidateWindow(date, start, end); err != nil {
		return Slot{}, err
	}
	return s.add(ctx, doctorID, date, start, end, true)
}

// Recycle returns a vacated appointment window to the pool under a freshly
// generated id.
func (s *Store) Recycle(ctx context.Context, doctorID, date, start, end string) (Slot, error) {
	return s.add(ctx, doctorID, date, start, end, false)
}

func (s *Store) add(ctx context.Context, doctorID, date, start, end string, unique bool) (Slot, error) {
	w := NewWindow(doctorID, date, start, end)
	var created Slot
	err := s.items.Update(ctx, func(items []Slot) ([]Slot, error) {
		if unique {
			for _, existing := range items {
				if existing.Window() == w {
					return nil, fmt.Errorf("%s %s %s-%s is %s: %w", doctorID, date, start, end, existing.ID, ErrDuplicate)
				}
			}
		}
		last := ""
		if len(items) > 0 {
			last = items[len(items)-1].ID
		}
		id, err := s.ids.Next(last)
		if err != nil {
			return nil, fmt.Errorf("next slot id: %w", err)
		}
		created = Slot{ID: id, DoctorID: doctorID, Date: date, StartTime: start, EndTime: end}
		return append(items, created), nil
	})
	if err != nil {
		return Slot{}, err
	}
	return created, nil
}

func (s *Store) ListAll(ctx context.Context) ([]Slot, error) {
	return s.items.Load(ctx)
}

func (s *Store) ListByDoctor(ctx context.Context, doctorID string) ([]Slot, error) {
	all, err := s.items.Load(ctx)
	if err != nil {
		return nil, err
	}
	var result []Slot
	for _, sl := range all {
		if sl.DoctorID == doctorID {
			result = append(result, sl)
		}
	}
	return result, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (Slot, error) {
	all, err := s.items.Load(ctx)
	if err != nil {
		return Slot{}, err
	}
	for _, sl := range all {
		if sl.ID == id {
			return sl, nil
		}
	}
	return Slot{}, fmt.Errorf("%s: %w", id, ErrNotFound)
}

// Consume removes the slot and returns it. Of two concurrent callers for the
// same id exactly one succeeds; the other gets ErrNotFound.
func (s *Store) Consume(ctx context.Context, id string) (Slot, error) {
	var consumed Slot
	err := s.items.Update(ctx, func(items []Slot) ([]Slot, error) {
		for i, sl := range items {
			if sl.ID == id {
				consumed = sl
				return append(items[:i:i], items[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	})
	if err != nil {
		return Slot{}, err
	}
	return consumed, nil
}

// Restore puts a previously consumed slot back, keeping ids ascending so the
// id generator still sees the highest id last.
func (s *Store) Restore(ctx context.Context, sl Slot) error {
	return s.items.Update(ctx, func(items []Slot) ([]Slot, error) {
		pos := len(items)
		for i, existing := range items {
			if existing.ID == sl.ID {
				return nil, fmt.Errorf("%s: %w", sl.ID, ErrAlreadyExists)
			}
			if pos == len(items) && idgen.Less(sl.ID, existing.ID) {
				pos = i
			}
		}
		out := make([]Slot, 0, len(items)+1)
		out = append(out, items[:pos]...)
		out = append(out, sl)
		return append(out, items[pos:]...), nil
	})
}
