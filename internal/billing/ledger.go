// Package billing keeps the per-patient tally of completed visits.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

const CollectionName = "Payment"

// UnitRate is the charge per completed visit.
const UnitRate = 70

type Entry struct {
	PatientID string `json:"patient_id"`
	Unpaid    int    `json:"unpaid"`
	Paid      int    `json:"paid"`
}

func (e Entry) AmountDue() int { return e.Unpaid * UnitRate }

type codec struct{}

func (codec) Header() []string { return []string{"PatientID", "numberOfUnpaid", "numberOfPaid"} }

func (codec) Encode(e Entry) []string {
	return []string{e.PatientID, strconv.Itoa(e.Unpaid), strconv.Itoa(e.Paid)}
}

func (codec) Decode(f []string) (Entry, error) {
	if err := store.ExpectFields(f, 3); err != nil {
		return Entry{}, err
	}
	unpaid, err := strconv.Atoi(strings.TrimSpace(f[1]))
	if err != nil || unpaid < 0 {
		return Entry{}, fmt.Errorf("bad unpaid count %q", f[1])
	}
	paid, err := strconv.Atoi(strings.TrimSpace(f[2]))
	if err != nil || paid < 0 {
		return Entry{}, fmt.Errorf("bad paid count %q", f[2])
	}
	return Entry{PatientID: f[0], Unpaid: unpaid, Paid: paid}, nil
}

type Ledger struct {
	items *store.Collection[Entry]
}

func NewLedger(backend store.Backend, opts ...store.Option) *Ledger {
	return &Ledger{items: store.NewCollection[Entry](CollectionName, backend, codec{}, opts...)}
}

// Accrue adds one unpaid visit, opening the patient's row if needed.
func (l *Ledger) Accrue(ctx context.Context, patientID string) (Entry, error) {
	if strings.TrimSpace(patientID) == "" {
		return Entry{}, fmt.Errorf("patient id is required: %w", apperr.ErrValidation)
	}
	var updated Entry
	err := l.items.Update(ctx, func(items []Entry) ([]Entry, error) {
		for i := range items {
			if items[i].PatientID == patientID {
				items[i].Unpaid++
				updated = items[i]
				return items, nil
			}
		}
		updated = Entry{PatientID: patientID, Unpaid: 1}
		return append(items, updated), nil
	})
	if err != nil {
		return Entry{}, err
	}
	return updated, nil
}

// Entry returns the patient's row, or a zero row if none exists yet.
func (l *Ledger) Entry(ctx context.Context, patientID string) (Entry, error) {
	all, err := l.items.Load(ctx)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range all {
		if e.PatientID == patientID {
			return e, nil
		}
	}
	return Entry{PatientID: patientID}, nil
}

func (l *Ledger) AmountDue(ctx context.Context, patientID string) (int, error) {
	e, err := l.Entry(ctx, patientID)
	if err != nil {
		return 0, err
	}
	return e.AmountDue(), nil
}

// Settle moves every unpaid visit to paid. It reports false and writes
// nothing when there is nothing to settle.
func (l *Ledger) Settle(ctx context.Context, patientID string) (bool, error) {
	settled := false
	err := l.items.Update(ctx, func(items []Entry) ([]Entry, error) {
		for i := range items {
			if items[i].PatientID != patientID {
				continue
			}
			if items[i].Unpaid == 0 {
				return nil, errNothingDue
			}
			items[i].Paid += items[i].Unpaid
			items[i].Unpaid = 0
			settled = true
			return items, nil
		}
		return nil, errNothingDue
	})
	if errors.Is(err, errNothingDue) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return settled, nil
}

func (l *Ledger) All(ctx context.Context) ([]Entry, error) {
	return l.items.Load(ctx)
}

var errNothingDue = errors.New("nothing due")
