package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/directory"
)

func writeDirectory(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "directory.yaml")
	err := directory.WriteFile(path, directory.Document{
		People: []directory.Person{
			{ID: "D001", Name: "Dr. One", Role: directory.RoleDoctor},
			{ID: "P001", Name: "Pat One", Role: directory.RolePatient},
		},
	})
	if err != nil {
		t.Fatalf("write directory: %v", err)
	}
	return path
}

func TestOpen_FileBackend(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{
		Storage:            config.StorageFile,
		DataDir:            t.TempDir(),
		DirectoryFile:      writeDirectory(t),
		DirectoryCacheSize: 16,
	}

	a, err := Open(ctx, cfg, zerolog.Nop())
	defer a.Close()
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	sl, err := a.Service.DeclareSlot(ctx, "D001", "2024-05-01", "09:00", "09:30")
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if _, err := a.Service.BookAppointment(ctx, "P001", sl.ID); err != nil {
		t.Fatalf("book: %v", err)
	}

	// a second app on the same directory sees the persisted state
	b, err := Open(ctx, cfg, zerolog.Nop())
	defer b.Close()
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	appts, err := b.Service.AllAppointments(ctx)
	if err != nil || len(appts) != 1 {
		t.Fatalf("expected persisted appointment, got %+v (%v)", appts, err)
	}

	if deps := a.Dependencies(); len(deps) != 0 {
		t.Errorf("expected no external dependencies, got %+v", deps)
	}
}

func TestOpen_MissingDirectory(t *testing.T) {
	cfg := config.Config{
		Storage:       config.StorageMemory,
		DirectoryFile: filepath.Join(t.TempDir(), "missing.yaml"),
	}
	a, err := Open(context.Background(), cfg, zerolog.Nop())
	defer a.Close()
	if err == nil {
		t.Fatal("expected error for missing directory file")
	}
}
