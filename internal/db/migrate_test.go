package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

type fakeExec struct {
	stmts  []string
	failAt int
}

func (f *fakeExec) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.stmts = append(f.stmts, sql)
	if len(f.stmts) == f.failAt {
		return pgconn.CommandTag{}, errors.New("permission denied")
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func TestMigrate_AppliesSchemaInOrder(t *testing.T) {
	f := &fakeExec{}
	if err := Migrate(context.Background(), f); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if len(f.stmts) != len(Schema) {
		t.Fatalf("expected %d statements, got %d", len(Schema), len(f.stmts))
	}
	if !strings.Contains(f.stmts[0], "flat_records") {
		t.Errorf("expected flat_records first, got %q", f.stmts[0])
	}
}

func TestMigrate_StopsOnError(t *testing.T) {
	f := &fakeExec{failAt: 2}
	err := Migrate(context.Background(), f)
	if err == nil || !strings.Contains(err.Error(), "step 2") {
		t.Fatalf("expected step 2 failure, got %v", err)
	}
	if len(f.stmts) != 2 {
		t.Errorf("expected migration to stop, ran %d statements", len(f.stmts))
	}
}
