package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fjmerc/softvault/internal/config"
	"github.com/fjmerc/softvault/internal/repository"
)

func TestOpen_SQLite(t *testing.T) {
	cfg := &config.Config{
		DatabaseType: config.DatabaseTypeSQLite,
		DBPath:       filepath.Join(t.TempDir(), "softvault.db"),
	}

	repos, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer repos.Close()

	if repos.DatabaseType != repository.DatabaseTypeSQLite {
		t.Errorf("DatabaseType = %q, want %q", repos.DatabaseType, repository.DatabaseTypeSQLite)
	}
	if err := repos.Health.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestOpen_Unsupported(t *testing.T) {
	if _, err := Open(context.Background(), &config.Config{DatabaseType: "mysql"}); err == nil {
		t.Error("Open() should reject unknown database types")
	}
}

func TestOpen_PostgresRequiresConfig(t *testing.T) {
	if _, err := Open(context.Background(), &config.Config{DatabaseType: config.DatabaseTypePostgreSQL}); err == nil {
		t.Error("Open() should fail without PostgreSQL settings")
	}
}

func TestMigrationStatus_SQLite(t *testing.T) {
	cfg := &config.Config{DBPath: filepath.Join(t.TempDir(), "softvault.db")}

	status, err := MigrationStatus(context.Background(), cfg)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(status) == 0 {
		t.Fatal("MigrationStatus() returned no migrations")
	}
	for _, m := range status {
		if !m.Applied {
			t.Errorf("migration %s Applied = false, want true", m.Name)
		}
	}
}
