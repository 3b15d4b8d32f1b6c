package directory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

const sample = `
people:
  - id: D001
    name: Dr. Ada Grey
    role: Doctor
    specialty: General Practice
  - id: P001
    name: Sam Lee
    role: Patient
  - id: PH001
    name: Kim Park
    role: Pharmacist
medications:
  - name: Paracetamol
    stock: 100
  - name: Ibuprofen
    stock: 40
`

func TestParseAndFind(t *testing.T) {
	ctx := context.Background()
	f, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	d, err := FindWithRole(ctx, f, "D001", RoleDoctor)
	if err != nil || d.Specialty != "General Practice" {
		t.Errorf("expected doctor D001, got %+v (%v)", d, err)
	}
	if _, err := FindWithRole(ctx, f, "P001", RoleDoctor); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected patient rejected as doctor, got %v", err)
	}
	if _, err := f.FindByID(ctx, "X999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestPeopleByRole(t *testing.T) {
	f, err := New(Document{People: []Person{
		{ID: "D002", Name: "B", Role: RoleDoctor},
		{ID: "P001", Name: "C", Role: RolePatient},
		{ID: "D001", Name: "A", Role: RoleDoctor},
	}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	docs := f.People(RoleDoctor)
	if len(docs) != 2 || docs[0].ID != "D001" || docs[1].ID != "D002" {
		t.Fatalf("doctors = %+v", docs)
	}
	if got := f.People(RoleAdministrator); len(got) != 0 {
		t.Fatalf("administrators = %+v", got)
	}
}

func TestCanonicalMedicationName(t *testing.T) {
	f, _ := Parse([]byte(sample))

	name, ok, _ := f.CanonicalMedicationName(context.Background(), "  paRACetamol ")
	if !ok || name != "Paracetamol" {
		t.Errorf("expected Paracetamol, got %q (%v)", name, ok)
	}
	if _, ok, _ := f.CanonicalMedicationName(context.Background(), "aspirin"); ok {
		t.Error("expected aspirin unknown")
	}
}

func TestNew_RejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
	}{
		{"missing id", Document{People: []Person{{Name: "x", Role: RolePatient}}}},
		{"unknown role", Document{People: []Person{{ID: "X1", Role: "Janitor"}}}},
		{"duplicate", Document{People: []Person{{ID: "P1", Role: RolePatient}, {ID: "P1", Role: RoleDoctor}}}},
		{"comma in medication", Document{Medications: []Medication{{Name: "Paracetamol, 500mg", Stock: 1}}}},
		{"empty medication", Document{Medications: []Medication{{Name: "  ", Stock: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.doc); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directory.yaml")
	doc := Document{
		People:      []Person{{ID: "D001", Name: "Dr. A", Role: RoleDoctor}},
		Medications: []Medication{{Name: "Amoxicillin", Stock: 5}},
	}
	if err := WriteFile(path, doc); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := f.FindByID(context.Background(), "D001"); err != nil {
		t.Errorf("expected D001 after round trip: %v", err)
	}
}

type countingLookup struct {
	Lookup
	people, meds int
}

func (c *countingLookup) FindByID(ctx context.Context, id string) (Person, error) {
	c.people++
	return c.Lookup.FindByID(ctx, id)
}

func (c *countingLookup) CanonicalMedicationName(ctx context.Context, name string) (string, bool, error) {
	c.meds++
	return c.Lookup.CanonicalMedicationName(ctx, name)
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	f, _ := Parse([]byte(sample))
	backing := &countingLookup{Lookup: f}
	c := NewCached(backing, 8, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := c.FindByID(ctx, "D001"); err != nil {
			t.Fatalf("find: %v", err)
		}
		_, _, _ = c.CanonicalMedicationName(ctx, "aspirin")
	}
	if backing.people != 1 || backing.meds != 1 {
		t.Errorf("expected one backing call each, got people=%d meds=%d", backing.people, backing.meds)
	}

	for i := 0; i < 2; i++ {
		_, _ = c.FindByID(ctx, "NOPE")
	}
	if backing.people != 3 {
		t.Errorf("expected misses not cached, got %d backing calls", backing.people)
	}
}
