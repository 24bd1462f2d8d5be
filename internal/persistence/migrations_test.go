package persistence

import (
	"context"
	"testing"
	"testing/fstest"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-tracker/migrations"
)

func TestMigrationFilesOrdered(t *testing.T) {
	fsys := fstest.MapFS{
		"002_runs.sql":  {Data: []byte("SELECT 2;")},
		"001_init.sql":  {Data: []byte("SELECT 1;")},
		"README.md":     {Data: []byte("notes")},
		"old/000.sql":   {Data: []byte("SELECT 0;")},
		"010_index.sql": {Data: []byte("SELECT 10;")},
	}
	got, err := migrationFiles(fsys)
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}
	want := []string{"001_init.sql", "002_runs.sql", "010_index.sql"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	got, err := migrationFiles(migrations.Files)
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}
	if len(got) == 0 || got[0] != "001_init.sql" {
		t.Fatalf("unexpected embedded migrations %v", got)
	}
}

func TestRunMigrationsWithoutPool(t *testing.T) {
	if err := RunMigrations(context.Background(), nil, fstest.MapFS{}, zap.NewNop()); err != nil {
		t.Fatalf("expected nil error without pool, got %v", err)
	}
}
