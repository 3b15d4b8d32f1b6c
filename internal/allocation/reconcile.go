package allocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/slot"
)

const (
	KindOutcomeWithoutCompletion = "outcome_without_completion"
	KindCompletionWithoutOutcome = "completion_without_outcome"
	KindSlotOverlapsAppointment  = "slot_overlaps_live_appointment"
	KindLedgerMismatch           = "ledger_mismatch"
	KindDuplicateID              = "duplicate_id"
)

// Discrepancy is one cross-store inconsistency found by Reconcile.
type Discrepancy struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Detail  string `json:"detail"`
}

// Reconcile audits the stores against each other and reports what it
// finds. It never repairs anything.
func (s *Service) Reconcile(ctx context.Context) ([]Discrepancy, error) {
	slots, err := s.slots.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	appts, err := s.appts.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	outs, err := s.outcomes.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	ledger, err := s.ledger.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	records, err := s.records.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	var found []Discrepancy
	add := func(kind, subject, format string, args ...any) {
		found = append(found, Discrepancy{Kind: kind, Subject: subject, Detail: fmt.Sprintf(format, args...)})
	}

	seen := map[string]bool{}
	checkID := func(collection, id string) {
		key := collection + "/" + id
		if seen[key] {
			add(KindDuplicateID, id, "id %s appears more than once in %s", id, collection)
		}
		seen[key] = true
	}
	for _, sl := range slots {
		checkID("slots", sl.ID)
	}
	for _, o := range outs {
		checkID("outcomes", o.ID)
	}
	for _, r := range records {
		checkID("records", r.ID)
	}

	byID := make(map[string]appointment.Appointment, len(appts))
	live := map[slot.Window]string{}
	completed := map[string]int{}
	for _, a := range appts {
		checkID("appointments", a.ID)
		byID[a.ID] = a
		if a.Status.Live() {
			live[appointmentWindow(a)] = a.ID
		}
		if a.Status == appointment.StatusCompleted {
			completed[a.PatientID]++
		}
	}

	hasOutcome := map[string]bool{}
	for _, o := range outs {
		hasOutcome[o.AppointmentID] = true
		if a, ok := byID[o.AppointmentID]; ok && a.Status != appointment.StatusCompleted {
			add(KindOutcomeWithoutCompletion, a.ID, "outcome %s recorded but appointment is %s", o.ID, a.Status)
		}
	}
	for _, a := range appts {
		if a.Status == appointment.StatusCompleted && !hasOutcome[a.ID] {
			add(KindCompletionWithoutOutcome, a.ID, "appointment completed without an outcome")
		}
	}

	for _, sl := range slots {
		if apptID, ok := live[sl.Window()]; ok {
			add(KindSlotOverlapsAppointment, sl.ID, "free slot duplicates the window of live appointment %s", apptID)
		}
	}

	billed := map[string]bool{}
	for _, e := range ledger {
		billed[e.PatientID] = true
		if n := completed[e.PatientID]; e.Unpaid+e.Paid != n {
			add(KindLedgerMismatch, e.PatientID, "ledger counts %d visits, %d appointments completed", e.Unpaid+e.Paid, n)
		}
	}
	for patientID, n := range completed {
		if !billed[patientID] {
			add(KindLedgerMismatch, patientID, "no ledger row for %d completed appointments", n)
		}
	}

	for _, d := range found {
		s.reconciliationRequired(ctx, "audit:"+d.Kind, errors.New(d.Detail), "", map[string]any{"subject": d.Subject})
	}
	return found, nil
}
