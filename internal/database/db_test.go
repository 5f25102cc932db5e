package database

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

func TestInitialize_CreatesSchema(t *testing.T) {
	db, err := Initialize(":memory:")
	if err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"users", "user_sessions", "products", "downloads", "migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "vault.db")

	db, err := Initialize(dbPath)
	if err != nil {
		t.Fatalf("first Initialize() error: %v", err)
	}
	db.Close()

	db, err = Initialize(dbPath)
	if err != nil {
		t.Fatalf("second Initialize() error: %v", err)
	}
	defer db.Close()

	status, err := GetMigrationStatus(db)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error: %v", err)
	}
	if len(status) == 0 {
		t.Fatal("expected at least one migration")
	}
	for _, m := range status {
		if !m.Applied {
			t.Errorf("migration %s not applied", m.Name)
		}
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != len(status) {
		t.Errorf("migrations recorded = %d, want %d", count, len(status))
	}
}

func TestInitialize_ForeignKeysEnabled(t *testing.T) {
	db, err := Initialize(":memory:")
	if err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`INSERT INTO downloads (id, product_id, download_ip, user_agent, created_at)
		VALUES ('d1', 'missing-product', 'unknown', 'unknown', '2025-01-01T00:00:00Z')`)
	if err == nil {
		t.Error("insert referencing a missing product should fail with foreign keys on")
	}
}

func TestGetMigrationStatus_FreshDatabase(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	status, err := GetMigrationStatus(db)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error: %v", err)
	}
	if len(status) == 0 {
		t.Fatal("expected embedded migrations")
	}
	for _, m := range status {
		if m.Applied {
			t.Errorf("migration %s Applied = true on an empty database", m.Name)
		}
	}

	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations() error: %v", err)
	}
	status, err = GetMigrationStatus(db)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error: %v", err)
	}
	for _, m := range status {
		if !m.Applied {
			t.Errorf("migration %s Applied = false after RunMigrations", m.Name)
		}
	}
}

func TestLoadMigrations(t *testing.T) {
	sqlFile := &fstest.MapFile{Data: []byte("SELECT 1;")}

	tests := []struct {
		name     string
		files    fstest.MapFS
		wantErr  string
		wantName []string
	}{
		{
			name: "ordered by version",
			files: fstest.MapFS{
				"migrations/010_later.sql":  sqlFile,
				"migrations/002_second.sql": sqlFile,
				"migrations/001_first.sql":  sqlFile,
				"migrations/README.md":      sqlFile,
			},
			wantName: []string{"001_first.sql", "002_second.sql", "010_later.sql"},
		},
		{
			name:    "missing version",
			files:   fstest.MapFS{"migrations/initial.sql": sqlFile},
			wantErr: "must start with a positive version",
		},
		{
			name: "duplicate version",
			files: fstest.MapFS{
				"migrations/001_a.sql": sqlFile,
				"migrations/1_b.sql":   sqlFile,
			},
			wantErr: "share version 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadMigrations(tt.files)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("loadMigrations() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("loadMigrations() error = %v", err)
			}
			if len(got) != len(tt.wantName) {
				t.Fatalf("loadMigrations() = %d migrations, want %d", len(got), len(tt.wantName))
			}
			for i, want := range tt.wantName {
				if got[i].Name != want {
					t.Errorf("migration %d = %s, want %s", i, got[i].Name, want)
				}
			}
		})
	}
}
