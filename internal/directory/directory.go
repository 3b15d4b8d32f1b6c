// Package directory resolves people and medication names. It is read-only:
// staff and inventory management live elsewhere and only publish the
// directory file this package reads.
package directory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

type Role string

const (
	RolePatient       Role = "Patient"
	RoleDoctor        Role = "Doctor"
	RolePharmacist    Role = "Pharmacist"
	RoleAdministrator Role = "Administrator"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RolePharmacist, RoleAdministrator:
		return true
	}
	return false
}

var ErrNotFound = fmt.Errorf("person %w", apperr.ErrNotFound)

type Person struct {
	ID        string `yaml:"id" json:"id"`
	Name      string `yaml:"name" json:"name"`
	Role      Role   `yaml:"role" json:"role"`
	Email     string `yaml:"email,omitempty" json:"email,omitempty"`
	Specialty string `yaml:"specialty,omitempty" json:"specialty,omitempty"`
}

type Medication struct {
	Name  string `yaml:"name"`
	Stock int    `yaml:"stock"`
}

// Document is the on-disk layout of the directory file.
type Document struct {
	People      []Person     `yaml:"people"`
	Medications []Medication `yaml:"medications"`
}

// Lookup is implemented by File and Cached.
type Lookup interface {
	FindByID(ctx context.Context, id string) (Person, error)
	CanonicalMedicationName(ctx context.Context, name string) (string, bool, error)
}

// File is an in-memory directory loaded from YAML.
type File struct {
	people map[string]Person
	meds   map[string]string
}

func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse directory: %w", err)
	}
	return New(doc)
}

func New(doc Document) (*File, error) {
	f := &File{
		people: make(map[string]Person, len(doc.People)),
		meds:   make(map[string]string, len(doc.Medications)),
	}
	for _, p := range doc.People {
		if p.ID == "" {
			return nil, fmt.Errorf("person %q has no id", p.Name)
		}
		if !p.Role.Valid() {
			return nil, fmt.Errorf("person %s has unknown role %q", p.ID, p.Role)
		}
		if _, dup := f.people[p.ID]; dup {
			return nil, fmt.Errorf("duplicate person id %s", p.ID)
		}
		f.people[p.ID] = p
	}
	for _, m := range doc.Medications {
		if strings.TrimSpace(m.Name) == "" {
			return nil, errors.New("medication with empty name")
		}
		if strings.Contains(m.Name, ",") {
			return nil, fmt.Errorf("medication %q: names may not contain commas", m.Name)
		}
		f.meds[strings.ToLower(strings.TrimSpace(m.Name))] = m.Name
	}
	return f, nil
}

// WriteFile atomically replaces the directory file at path.
func WriteFile(path string, doc Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal directory: %w", err)
	}
	return renameio.WriteFile(path, data, 0o644)
}

func (f *File) FindByID(_ context.Context, id string) (Person, error) {
	p, ok := f.people[id]
	if !ok {
		return Person{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return p, nil
}

// People returns everyone holding role, ordered by id.
func (f *File) People(role Role) []Person {
	var out []Person
	for _, p := range f.people {
		if p.Role == role {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b Person) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// CanonicalMedicationName matches name case-insensitively and returns the
// stocked spelling.
func (f *File) CanonicalMedicationName(_ context.Context, name string) (string, bool, error) {
	canonical, ok := f.meds[strings.ToLower(strings.TrimSpace(name))]
	return canonical, ok, nil
}

// FindWithRole looks id up and requires it to hold role.
func FindWithRole(ctx context.Context, l Lookup, id string, role Role) (Person, error) {
	p, err := l.FindByID(ctx, id)
	if err != nil {
		return Person{}, err
	}
	if p.Role != role {
		return Person{}, fmt.Errorf("%s is not a %s: %w", id, strings.ToLower(string(role)), ErrNotFound)
	}
	return p, nil
}
