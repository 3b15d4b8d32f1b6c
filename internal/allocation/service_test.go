package allocation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/billing"
	"github.com/hackgods/clinic-scheduling/internal/directory"
	"github.com/hackgods/clinic-scheduling/internal/events"
	"github.com/hackgods/clinic-scheduling/internal/medicalrecord"
	"github.com/hackgods/clinic-scheduling/internal/outcome"
	"github.com/hackgods/clinic-scheduling/internal/slot"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

// hookBackend fails the k-th save of a collection after arm is called.
type hookBackend struct {
	*store.MemoryBackend

	mu     sync.Mutex
	failAt map[string]int
	saves  map[string]int
}

func newHookBackend() *hookBackend {
	return &hookBackend{
		MemoryBackend: store.NewMemoryBackend(),
		failAt:        map[string]int{},
		saves:         map[string]int{},
	}
}

func (b *hookBackend) arm(collection string, k int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAt[collection] = k
	b.saves[collection] = 0
}

func (b *hookBackend) Save(ctx context.Context, collection string, header []string, rows [][]string) error {
	b.mu.Lock()
	b.saves[collection]++
	fail := b.failAt[collection] != 0 && b.saves[collection] == b.failAt[collection]
	b.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return b.MemoryBackend.Save(ctx, collection, header, rows)
}

type eventRecorder struct {
	mu  sync.Mutex
	got []events.Event
}

func (r *eventRecorder) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ev)
	return nil
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.got {
		out = append(out, ev.Type)
	}
	return out
}

// syncBuffer lets concurrent tests share one log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	svc     *Service
	backend *hookBackend
	events  *eventRecorder
	logs    *syncBuffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir, err := directory.New(directory.Document{
		People: []directory.Person{
			{ID: "D1", Name: "Dr. One", Role: directory.RoleDoctor},
			{ID: "D2", Name: "Dr. Two", Role: directory.RoleDoctor},
			{ID: "P1", Name: "Pat One", Role: directory.RolePatient},
			{ID: "P2", Name: "Pat Two", Role: directory.RolePatient},
		},
		Medications: []directory.Medication{{Name: "Paracetamol", Stock: 10}},
	})
	if err != nil {
		t.Fatalf("directory: %v", err)
	}

	b := newHookBackend()
	appts := appointment.NewStore(b)
	rec := &eventRecorder{}
	logs := &syncBuffer{}

	svc := NewService(Stores{
		Slots:        slot.NewStore(b),
		Appointments: appts,
		Outcomes:     outcome.NewStore(b, dir, appts),
		Ledger:       billing.NewLedger(b),
		Records:      medicalrecord.NewStore(b),
	}, zerolog.New(logs), WithDirectory(dir), WithPublisher(rec))

	return &fixture{svc: svc, backend: b, events: rec, logs: logs}
}

func (f *fixture) declare(t *testing.T, doctorID, start, end string) slot.Slot {
	t.Helper()
	sl, err := f.svc.DeclareSlot(context.Background(), doctorID, "2024-05-01", start, end)
	if err != nil {
		t.Fatalf("declare slot: %v", err)
	}
	return sl
}

func (f *fixture) book(t *testing.T, patientID, slotID string) appointment.Appointment {
	t.Helper()
	a, err := f.svc.BookAppointment(context.Background(), patientID, slotID)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	return a
}

func slotIDs(t *testing.T, svc *Service) []string {
	t.Helper()
	all, err := svc.ListSlots(context.Background())
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	ids := []string{}
	for _, sl := range all {
		ids = append(ids, sl.ID)
	}
	return ids
}

func TestExampleScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sl := f.declare(t, "D1", "09:00", "09:30")
	if sl.ID != "AV001" {
		t.Fatalf("expected first slot AV001, got %s", sl.ID)
	}

	appt := f.book(t, "P1", sl.ID)
	want := appointment.Appointment{ID: "AP000", PatientID: "P1", DoctorID: "D1", Date: "2024-05-01", StartTime: "09:00", EndTime: "09:30", Status: appointment.StatusPending}
	if appt != want {
		t.Fatalf("expected %+v, got %+v", want, appt)
	}
	if ids := slotIDs(t, f.svc); len(ids) != 0 {
		t.Errorf("expected AV001 consumed, slots left %v", ids)
	}

	confirmed, err := f.svc.ConfirmAppointment(ctx, "D1", appt.ID)
	if err != nil || confirmed.Status != appointment.StatusConfirmed {
		t.Fatalf("confirm: %+v (%v)", confirmed, err)
	}

	o, err := f.svc.RecordOutcome(ctx, "D1", appt.ID, OutcomeRequest{ServiceType: "Consultation", Medications: []string{"paracetamol"}})
	if err != nil {
		t.Fatalf("record outcome: %v", err)
	}
	if o.ID != "AO000" || o.AppointmentID != "AP000" || o.MedicationField() != "Paracetamol" || o.MedicationStatus != outcome.MedicationPending {
		t.Errorf("unexpected outcome %+v", o)
	}

	got, _ := f.svc.GetAppointment(ctx, appt.ID)
	if got.Status != appointment.StatusCompleted {
		t.Errorf("expected Completed, got %s", got.Status)
	}
	entry, _ := f.svc.BillingEntry(ctx, "P1")
	if entry.Unpaid != 1 {
		t.Errorf("expected unpaid 1, got %d", entry.Unpaid)
	}
	if due, _ := f.svc.AmountDue(ctx, "P1"); due != 70 {
		t.Errorf("expected 70 due, got %d", due)
	}

	wantEvents := []string{events.AppointmentBooked, events.AppointmentConfirmed, events.OutcomeRecorded, events.BillAccrued}
	if got := f.events.types(); strings.Join(got, ",") != strings.Join(wantEvents, ",") {
		t.Errorf("expected events %v, got %v", wantEvents, got)
	}
}

func TestBookAppointment_MissingSlot(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.BookAppointment(context.Background(), "P1", "AV404")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	all, _ := f.svc.AllAppointments(context.Background())
	if len(all) != 0 {
		t.Errorf("expected no appointments, got %d", len(all))
	}
}

func TestBookAppointment_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sl := f.declare(t, "D1", "09:00", "09:30")

	const n = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		notFound  int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.BookAppointment(ctx, fmt.Sprintf("P%d", i), sl.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, slot.ErrNotFound):
				notFound++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || notFound != n-1 {
		t.Errorf("expected 1 winner and %d losers, got %d and %d", n-1, successes, notFound)
	}
	all, _ := f.svc.AllAppointments(ctx)
	if len(all) != 1 {
		t.Errorf("expected exactly one appointment, got %d", len(all))
	}
}

func TestBookAppointment_RestoresSlotWhenCreateFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sl := f.declare(t, "D1", "09:00", "09:30")

	f.backend.arm(appointment.CollectionName, 1)
	_, err := f.svc.BookAppointment(ctx, "P1", sl.ID)
	if !errors.Is(err, apperr.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}

	if ids := slotIDs(t, f.svc); len(ids) != 1 || ids[0] != sl.ID {
		t.Errorf("expected %s restored, got %v", sl.ID, ids)
	}
}

func TestConfirmAppointment_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	appt := f.book(t, "P1", f.declare(t, "D1", "09:00", "09:30").ID)

	if _, err := f.svc.ConfirmAppointment(ctx, "D2", appt.ID); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	if _, err := f.svc.ConfirmAppointment(ctx, "D1", appt.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := f.svc.ConfirmAppointment(ctx, "D1", appt.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("expected invalid state confirming twice, got %v", err)
	}
	if _, err := f.svc.ConfirmAppointment(ctx, "D1", "AP404"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDeclineAppointment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	appt := f.book(t, "P1", f.declare(t, "D1", "09:00", "09:30").ID)

	if _, err := f.svc.DeclineAppointment(ctx, "D2", appt.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if ids := slotIDs(t, f.svc); len(ids) != 0 {
		t.Fatalf("expected no slot recycled on rejection, got %v", ids)
	}

	declined, err := f.svc.DeclineAppointment(ctx, "D1", appt.ID)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if declined.Status != appointment.StatusCancelled {
		t.Errorf("expected Cancelled, got %s", declined.Status)
	}
	if kept, err := f.svc.GetAppointment(ctx, appt.ID); err != nil || kept.Status != appointment.StatusCancelled {
		t.Errorf("expected record kept as Cancelled, got %+v (%v)", kept, err)
	}

	slots, _ := f.svc.ListSlotsByDoctor(ctx, "D1")
	if len(slots) != 1 || slots[0].StartTime != "09:00" || slots[0].EndTime != "09:30" {
		t.Errorf("expected window recycled, got %+v", slots)
	}

	if _, err := f.svc.DeclineAppointment(ctx, "D1", appt.ID); !errors.Is(err, ErrNotPending) {
		t.Errorf("expected ErrNotPending, got %v", err)
	}
}

func TestCancelAppointment_RecyclesWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sl := f.declare(t, "D1", "09:00", "09:30")
	appt := f.book(t, "P1", sl.ID)

	if _, err := f.svc.CancelAppointment(ctx, "P2", appt.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	recycled, err := f.svc.CancelAppointment(ctx, "P1", appt.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if recycled.ID == sl.ID {
		t.Errorf("expected a fresh slot id, got %s again", recycled.ID)
	}
	if recycled.DoctorID != sl.DoctorID || recycled.Date != sl.Date || recycled.StartTime != sl.StartTime || recycled.EndTime != sl.EndTime {
		t.Errorf("expected identical window, got %+v", recycled)
	}
	if ids := slotIDs(t, f.svc); len(ids) != 1 {
		t.Errorf("expected exactly one slot, got %v", ids)
	}
	if _, err := f.svc.GetAppointment(ctx, appt.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected appointment gone, got %v", err)
	}
}

func TestCancelAppointment_ConfirmedAndTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	appt := f.book(t, "P1", f.declare(t, "D1", "09:00", "09:30").ID)
	_, _ = f.svc.ConfirmAppointment(ctx, "D1", appt.ID)

	if _, err := f.svc.CancelAppointment(ctx, "P1", appt.ID); err != nil {
		t.Fatalf("expected confirmed appointment cancellable, got %v", err)
	}

	other := f.book(t, "P1", f.declare(t, "D1", "10:00", "10:30").ID)
	_, _ = f.svc.DeclineAppointment(ctx, "D1", other.ID)
	before := slotIDs(t, f.svc)

	if _, err := f.svc.CancelAppointment(ctx, "P1", other.ID); !errors.Is(err, ErrNotLive) {
		t.Errorf("expected ErrNotLive, got %v", err)
	}
	if after := slotIDs(t, f.svc); len(after) != len(before) {
		t.Errorf("expected slots unchanged, got %v -> %v", before, after)
	}
}

func TestRescheduleAppointment_ChangesIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	old := f.book(t, "P1", f.declare(t, "D1", "09:00", "09:30").ID)
	target := f.declare(t, "D2", "11:00", "11:30")

	created, err := f.svc.RescheduleAppointment(ctx, "P1", old.ID, target.ID)
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if created.ID == old.ID {
		t.Errorf("expected new id, got %s", created.ID)
	}
	if created.DoctorID != "D2" || created.StartTime != "11:00" || created.Status != appointment.StatusPending {
		t.Errorf("unexpected new appointment %+v", created)
	}
	if _, err := f.svc.GetAppointment(ctx, old.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected old appointment removed, got %v", err)
	}

	slots, _ := f.svc.ListSlots(ctx)
	if len(slots) != 1 || slots[0].DoctorID != "D1" || slots[0].StartTime != "09:00" {
		t.Errorf("expected only the recycled D1 window left, got %+v", slots)
	}
}

func TestRescheduleAppointment_MissingTargetChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	old := f.book(t, "P1", f.declare(t, "D1", "09:00", "09:30").ID)

	if _, err := f.svc.RescheduleAppointment(ctx, "P1", old.ID, "AV404"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.svc.GetAppointment(ctx, old.ID); err != nil {
		t.Errorf("expected old appointment kept: %v", err)
	}
	if ids := slotIDs(t, f.svc); len(ids) != 0 {
		t.Errorf("expected no recycled slot, got %v", ids)
	}
}

func TestRescheduleAppointment_RollsBackWhenCreateFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	old := f.book(t, "P1", f.declare(t, "D1", "09:00", "09:30").ID)
	target := f.declare(t, "D1", "10:00", "10:30")

	// remove is the first appointment save, create the second
	f.backend.arm(appointment.CollectionName, 2)
	_, err := f.svc.RescheduleAppointment(ctx, "P1", old.ID, target.ID)
	if !errors.Is(err, apperr.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}

	restored, err := f.svc.GetAppointment(ctx, old.ID)
	if err != nil || restored != old {
		t.Errorf("expected %+v restored, got %+v (%v)", old, restored, err)
	}
	if ids := slotIDs(t, f.svc); len(ids) != 1 || ids[0] != target.ID {
		t.Errorf("expected only %s in the pool, got %v", target.ID, ids)
	}
	if strings.Contains(f.logs.String(), "reconciliation_required") {
		t.Errorf("expected clean rollback, got %s", f.logs.String())
	}
}

func TestRecordOutcome_Preconditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	appt := f.book(t, "P1", f.declare(t, "D1", "09:00", "09:30").ID)
	req := OutcomeRequest{ServiceType: "Consultation"}

	if _, err := f.svc.RecordOutcome(ctx, "D1", appt.ID, req); !errors.Is(err, ErrNotConfirmed) {
		t.Errorf("expected ErrNotConfirmed on pending appointment, got %v", err)
	}
	_, _ = f.svc.ConfirmAppointment(ctx, "D1", appt.ID)

	if _, err := f.svc.RecordOutcome(ctx, "D2", appt.ID, req); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	bad := OutcomeRequest{ServiceType: "Consultation", Medications: []string{"aspirin"}}
	if _, err := f.svc.RecordOutcome(ctx, "D1", appt.ID, bad); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if got, _ := f.svc.GetAppointment(ctx, appt.ID); got.Status != appointment.StatusConfirmed {
		t.Errorf("expected appointment still Confirmed, got %s", got.Status)
	}

	if _, err := f.svc.RecordOutcome(ctx, "D1", appt.ID, req); err != nil {
		t.Fatalf("record outcome: %v", err)
	}
	if _, err := f.svc.RecordOutcome(ctx, "D1", appt.ID, req); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("expected invalid state on second outcome, got %v", err)
	}

	all, _ := f.svc.AllOutcomes(ctx)
	if len(all) != 1 {
		t.Errorf("expected a single outcome, got %d", len(all))
	}
	if due, _ := f.svc.AmountDue(ctx, "P1"); due != billing.UnitRate {
		t.Errorf("expected one visit billed, got %d", due)
	}
}

func TestRecordOutcome_CompletionFailureNeedsReconciliation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	appt := f.book(t, "P1", f.declare(t, "D1", "09:00", "09:30").ID)
	_, _ = f.svc.ConfirmAppointment(ctx, "D1", appt.ID)

	f.backend.arm(appointment.CollectionName, 1)
	_, err := f.svc.RecordOutcome(ctx, "D1", appt.ID, OutcomeRequest{ServiceType: "Consultation"})
	if !errors.Is(err, apperr.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}

	logs := f.logs.String()
	if !strings.Contains(logs, `"event":"reconciliation_required"`) || !strings.Contains(logs, `"step":"complete_appointment"`) {
		t.Errorf("expected reconciliation log, got %s", logs)
	}

	found, err := f.svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(found) != 1 || found[0].Kind != KindOutcomeWithoutCompletion || found[0].Subject != appt.ID {
		t.Errorf("expected outcome_without_completion for %s, got %+v", appt.ID, found)
	}
}

func TestBilling_MonotonicUntilSettled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	complete := func(start, end string) {
		appt := f.book(t, "P1", f.declare(t, "D1", start, end).ID)
		if _, err := f.svc.ConfirmAppointment(ctx, "D1", appt.ID); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		if _, err := f.svc.RecordOutcome(ctx, "D1", appt.ID, OutcomeRequest{ServiceType: "Checkup"}); err != nil {
			t.Fatalf("record outcome: %v", err)
		}
	}

	complete("09:00", "09:30")
	complete("10:00", "10:30")
	if due, _ := f.svc.AmountDue(ctx, "P1"); due != 2*billing.UnitRate {
		t.Fatalf("expected %d, got %d", 2*billing.UnitRate, due)
	}

	ok, err := f.svc.Settle(ctx, "P1")
	if err != nil || !ok {
		t.Fatalf("settle: %v (%v)", ok, err)
	}
	if due, _ := f.svc.AmountDue(ctx, "P1"); due != 0 {
		t.Errorf("expected 0 after settle, got %d", due)
	}
	if ok, _ := f.svc.Settle(ctx, "P1"); ok {
		t.Error("expected second settle to report nothing due")
	}

	complete("11:00", "11:30")
	if due, _ := f.svc.AmountDue(ctx, "P1"); due != billing.UnitRate {
		t.Errorf("expected %d, got %d", billing.UnitRate, due)
	}

	found, _ := f.svc.Reconcile(ctx)
	if len(found) != 0 {
		t.Errorf("expected consistent stores, got %+v", found)
	}
}

func TestDispenseMedication(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	appt := f.book(t, "P1", f.declare(t, "D1", "09:00", "09:30").ID)
	_, _ = f.svc.ConfirmAppointment(ctx, "D1", appt.ID)
	o, _ := f.svc.RecordOutcome(ctx, "D1", appt.ID, OutcomeRequest{ServiceType: "Consultation", Medications: []string{"PARACETAMOL"}})

	pending, _ := f.svc.PendingPrescriptions(ctx)
	if len(pending) != 1 {
		t.Fatalf("expected one pending prescription, got %d", len(pending))
	}

	got, err := f.svc.DispenseMedication(ctx, o.ID)
	if err != nil || got.MedicationStatus != outcome.MedicationDispensed {
		t.Fatalf("dispense: %+v (%v)", got, err)
	}
	if _, err := f.svc.DispenseMedication(ctx, o.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("expected invalid state, got %v", err)
	}

	mine, _ := f.svc.OutcomesForPatient(ctx, "P1")
	if len(mine) != 1 {
		t.Errorf("expected P1 to see one outcome, got %d", len(mine))
	}
	theirs, _ := f.svc.OutcomesForPatient(ctx, "P2")
	if len(theirs) != 0 {
		t.Errorf("expected P2 to see none, got %d", len(theirs))
	}
}

func TestGetAppointmentDetail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	appt := f.book(t, "P1", f.declare(t, "D1", "09:00", "09:30").ID)

	d, err := f.svc.GetAppointmentDetail(ctx, appt.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if d.Patient == nil || d.Patient.Name != "Pat One" || d.Doctor == nil || d.Doctor.Name != "Dr. One" {
		t.Errorf("expected people resolved, got %+v", d)
	}
	if d.Outcome != nil {
		t.Errorf("expected no outcome yet, got %+v", d.Outcome)
	}
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.book(t, "P1", f.declare(t, "D1", "09:00", "09:30").ID)
	b := f.book(t, "P1", f.declare(t, "D1", "10:00", "10:30").ID)
	c := f.book(t, "P2", f.declare(t, "D2", "10:00", "10:30").ID)
	_, _ = f.svc.ConfirmAppointment(ctx, "D1", b.ID)
	_, _ = f.svc.DeclineAppointment(ctx, "D2", c.ID)

	pending, _ := f.svc.PendingForDoctor(ctx, "D1")
	if len(pending) != 1 || pending[0].ID != a.ID {
		t.Errorf("expected %s pending, got %+v", a.ID, pending)
	}
	confirmed, _ := f.svc.ConfirmedForDoctor(ctx, "D1")
	if len(confirmed) != 1 || confirmed[0].ID != b.ID {
		t.Errorf("expected %s confirmed, got %+v", b.ID, confirmed)
	}
	scheduled, _ := f.svc.ScheduledForPatient(ctx, "P2")
	if len(scheduled) != 0 {
		t.Errorf("expected declined appointment not scheduled, got %+v", scheduled)
	}
	forD2, _ := f.svc.AppointmentsForDoctor(ctx, "D2")
	if len(forD2) != 1 {
		t.Errorf("expected declined appointment kept for D2, got %+v", forD2)
	}
}

func TestDeclareSlot_RejectsDuplicateWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.declare(t, "D1", "09:00", "09:30")

	if _, err := f.svc.DeclareSlot(ctx, "D1", "01-05-2024", "09:00", "09:30"); !errors.Is(err, slot.ErrDuplicate) {
		t.Fatalf("expected duplicate of an open slot rejected, got %v", err)
	}

	f.book(t, "P1", first.ID)
	if _, err := f.svc.DeclareSlot(ctx, "D1", "2024-05-01", "09:00", "09:30"); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected window held by a live appointment rejected, got %v", err)
	}
	if _, err := f.svc.DeclareSlot(ctx, "D2", "2024-05-01", "09:00", "09:30"); err != nil {
		t.Fatalf("expected another doctor's window accepted, got %v", err)
	}

	found, err := f.svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("expected a clean audit, got %+v", found)
	}
	for _, typ := range f.events.types() {
		if typ == events.ReconciliationRequired {
			t.Errorf("unexpected %s event", typ)
		}
	}
}

func TestDeclareSlot_RecycledWindowCountsAsOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	appt := f.book(t, "P1", f.declare(t, "D1", "09:00", "09:30").ID)
	if _, err := f.svc.DeclineAppointment(ctx, "D1", appt.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}

	// the decline already recycled the window
	if _, err := f.svc.DeclareSlot(ctx, "D1", "2024-05-01", "09:00", "09:30"); !errors.Is(err, slot.ErrDuplicate) {
		t.Fatalf("expected recycled window counted as open, got %v", err)
	}
	if got := slotIDs(t, f.svc); len(got) != 1 {
		t.Errorf("expected one open slot, got %v", got)
	}
}

func TestReconcile_SlotOverlapsLiveAppointment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	appt := f.book(t, "P1", f.declare(t, "D1", "09:00", "09:30").ID)

	// removal fails, then taking back the recycled slot fails too
	f.backend.arm(appointment.CollectionName, 1)
	f.backend.arm(slot.CollectionName, 2)
	if _, err := f.svc.CancelAppointment(ctx, "P1", appt.ID); err == nil {
		t.Fatal("expected cancel to fail")
	}

	found, err := f.svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(found) != 1 || found[0].Kind != KindSlotOverlapsAppointment {
		t.Fatalf("expected one overlap, got %+v", found)
	}
	if !strings.Contains(found[0].Detail, appt.ID) {
		t.Errorf("expected detail to name %s, got %q", appt.ID, found[0].Detail)
	}
	if !strings.Contains(f.logs.String(), "withdraw_recycled_slot") {
		t.Errorf("expected the failed undo logged, got %s", f.logs.String())
	}
}

func TestDirectoryCheckIsBestEffort(t *testing.T) {
	f := newFixture(t)
	sl := f.declare(t, "D1", "09:00", "09:30")

	if _, err := f.svc.BookAppointment(context.Background(), "UNKNOWN", sl.ID); err != nil {
		t.Fatalf("expected booking to proceed, got %v", err)
	}
	if !strings.Contains(f.logs.String(), "directory check failed") {
		t.Errorf("expected a warning, got %s", f.logs.String())
	}
}

func TestMedicalRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rec, err := f.svc.CreateMedicalRecord(ctx, "D1", MedicalRecordRequest{PatientID: "P1", Diagnosis: "Flu", Treatment: "Rest", Prescription: "Paracetamol"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID != "R001" || rec.DoctorID != "D1" || rec.PatientID != "P1" {
		t.Fatalf("unexpected record %+v", rec)
	}

	if _, err := f.svc.CreateMedicalRecord(ctx, "D1", MedicalRecordRequest{PatientID: "P9", Diagnosis: "Flu"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected unknown patient rejected, got %v", err)
	}
	if _, err := f.svc.CreateMedicalRecord(ctx, "D1", MedicalRecordRequest{PatientID: "D2", Diagnosis: "Flu"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected doctor id rejected as patient, got %v", err)
	}

	if _, err := f.svc.UpdateMedicalRecord(ctx, "D2", rec.ID, medicalrecord.Changes{Diagnosis: "Cold"}); !errors.Is(err, ErrNotAuthor) {
		t.Fatalf("expected ErrNotAuthor, got %v", err)
	}
	updated, err := f.svc.UpdateMedicalRecord(ctx, "D1", rec.ID, medicalrecord.Changes{Diagnosis: "Cold"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Diagnosis != "Cold" || updated.Treatment != "Rest" {
		t.Errorf("unexpected update %+v", updated)
	}

	_, _ = f.svc.CreateMedicalRecord(ctx, "D2", MedicalRecordRequest{PatientID: "P1", Diagnosis: "Sprain"})
	_, _ = f.svc.CreateMedicalRecord(ctx, "D1", MedicalRecordRequest{PatientID: "P2", Diagnosis: "Migraine"})

	if got, _ := f.svc.RecordsForPatient(ctx, "P1"); len(got) != 2 {
		t.Errorf("expected 2 records for P1, got %+v", got)
	}
	if got, _ := f.svc.RecordsForDoctor(ctx, "D1"); len(got) != 2 || got[1].PatientID != "P2" {
		t.Errorf("expected 2 records by D1, got %+v", got)
	}

	want := []string{events.MedicalRecordCreated, events.MedicalRecordUpdated, events.MedicalRecordCreated, events.MedicalRecordCreated}
	if got := f.events.types(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("expected events %v, got %v", want, got)
	}
}
