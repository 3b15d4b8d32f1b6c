package appointment

import (
	"context"
	"errors"
	"testing"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/slot"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

var testSlot = slot.Slot{ID: "AV001", DoctorID: "D001", Date: "2024-05-01", StartTime: "09:00", EndTime: "09:30"}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusPending, false},
		{StatusConfirmed, StatusConfirmed, false},
		{StatusCancelled, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCreate_CopiesSlotAndStartsPending(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.NewMemoryBackend())

	a, err := s.Create(ctx, "P001", testSlot)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want := Appointment{ID: "AP000", PatientID: "P001", DoctorID: "D001", Date: "2024-05-01", StartTime: "09:00", EndTime: "09:30", Status: StatusPending}
	if a != want {
		t.Errorf("expected %+v, got %+v", want, a)
	}

	b, _ := s.Create(ctx, "P002", testSlot)
	if b.ID != "AP001" {
		t.Errorf("expected AP001, got %s", b.ID)
	}
}

func TestCreate_SentinelReuseAfterEmptying(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.NewMemoryBackend())

	a, _ := s.Create(ctx, "P001", testSlot)
	if _, err := s.Remove(ctx, a.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	b, _ := s.Create(ctx, "P001", testSlot)
	if b.ID != a.ID {
		t.Errorf("expected empty collection to hand out %s again, got %s", a.ID, b.ID)
	}
}

func TestCreate_AvoidsListedIDs(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.NewMemoryBackend())

	a, _ := s.Create(ctx, "P001", testSlot)
	_, _ = s.Remove(ctx, a.ID)

	b, err := s.Create(ctx, "P001", testSlot, a.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.ID != "AP001" {
		t.Errorf("expected AP001 when AP000 is avoided, got %s", b.ID)
	}
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.NewMemoryBackend())
	a, _ := s.Create(ctx, "P001", testSlot)

	got, err := s.UpdateStatus(ctx, a.ID, StatusConfirmed)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Errorf("expected Confirmed, got %s", got.Status)
	}

	if _, err := s.UpdateStatus(ctx, a.ID, StatusConfirmed); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("expected invalid state confirming twice, got %v", err)
	}

	if _, err := s.UpdateStatus(ctx, "AP404", StatusConfirmed); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUpdateStatus_GuardRejects(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.NewMemoryBackend())
	a, _ := s.Create(ctx, "P001", testSlot)

	notMine := errors.New("not mine")
	_, err := s.UpdateStatus(ctx, a.ID, StatusConfirmed, func(Appointment) error { return notMine })
	if !errors.Is(err, notMine) {
		t.Fatalf("expected guard error, got %v", err)
	}

	stored, _ := s.GetByID(ctx, a.ID)
	if stored.Status != StatusPending {
		t.Errorf("expected status unchanged, got %s", stored.Status)
	}
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.NewMemoryBackend())

	other := testSlot
	other.DoctorID = "D002"

	a, _ := s.Create(ctx, "P001", testSlot)
	b, _ := s.Create(ctx, "P001", testSlot)
	c, _ := s.Create(ctx, "P002", other)
	d, _ := s.Create(ctx, "P001", testSlot)
	_, _ = s.UpdateStatus(ctx, b.ID, StatusConfirmed)
	_, _ = s.UpdateStatus(ctx, d.ID, StatusCancelled)

	pending, _ := s.PendingByDoctor(ctx, "D001")
	if len(pending) != 1 || pending[0].ID != a.ID {
		t.Errorf("expected only %s pending for D001, got %+v", a.ID, pending)
	}

	confirmed, _ := s.ConfirmedByDoctor(ctx, "D001")
	if len(confirmed) != 1 || confirmed[0].ID != b.ID {
		t.Errorf("expected only %s confirmed for D001, got %+v", b.ID, confirmed)
	}

	scheduled, _ := s.ConfirmedOrPendingByPatient(ctx, "P001")
	if len(scheduled) != 2 {
		t.Errorf("expected 2 scheduled for P001, got %+v", scheduled)
	}

	byDoctor, _ := s.ByDoctor(ctx, "D002")
	if len(byDoctor) != 1 || byDoctor[0].ID != c.ID {
		t.Errorf("expected %s for D002, got %+v", c.ID, byDoctor)
	}

	all, _ := s.All(ctx)
	if len(all) != 4 {
		t.Errorf("expected 4 appointments, got %d", len(all))
	}
}

func TestRemoveAndRestore(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.NewMemoryBackend())
	a, _ := s.Create(ctx, "P001", testSlot)
	b, _ := s.Create(ctx, "P001", testSlot)

	removed, err := s.Remove(ctx, a.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.GetByID(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected removed appointment gone, got %v", err)
	}

	if err := s.Restore(ctx, removed); err != nil {
		t.Fatalf("restore: %v", err)
	}
	all, _ := s.All(ctx)
	if len(all) != 2 || all[0].ID != a.ID || all[1].ID != b.ID {
		t.Fatalf("expected restored record back in id order, got %+v", all)
	}

	if err := s.Restore(ctx, removed); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected duplicate restore rejected, got %v", err)
	}
}

func TestDecode_RejectsUnknownStatus(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	_ = backend.Save(ctx, CollectionName, nil, [][]string{{"AP000", "P001", "D001", "2024-05-01", "09:00", "09:30", "Booked"}})

	s := NewStore(backend)
	if _, err := s.All(ctx); !errors.Is(err, apperr.ErrPersistence) {
		t.Fatalf("expected persistence error for unknown status, got %v", err)
	}
}
