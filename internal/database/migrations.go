package database

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one embedded schema file. Files are named NNN_description.sql
// and applied in version order; the file name is what gets recorded.
type Migration struct {
	Version int
	Name    string
	Applied bool
}

const migrationsTableSchema = `
CREATE TABLE IF NOT EXISTS migrations (
    name TEXT PRIMARY KEY,
    version INTEGER NOT NULL UNIQUE,
    applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);
`

// RunMigrations creates the bookkeeping table and applies every embedded
// migration not yet recorded, each in its own transaction.
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec(migrationsTableSchema); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	status, err := GetMigrationStatus(db)
	if err != nil {
		return err
	}

	applied := 0
	for _, m := range status {
		if m.Applied {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return err
		}
		slog.Info("migration applied", "migration", m.Name, "version", m.Version)
		applied++
	}

	slog.Info("database migrations complete", "applied", applied, "total", len(status))
	return nil
}

func applyMigration(db *sql.DB, m Migration) error {
	script, err := migrationFiles.ReadFile(path.Join("migrations", m.Name))
	if err != nil {
		return fmt.Errorf("failed to read migration %s: %w", m.Name, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration %s: %w", m.Name, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(script)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", m.Name, err)
	}
	if _, err := tx.Exec("INSERT INTO migrations (name, version) VALUES (?, ?)", m.Name, m.Version); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", m.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", m.Name, err)
	}
	return nil
}

// GetMigrationStatus lists the embedded migrations in version order and marks
// the applied ones. A database without the migrations table reports every
// migration as pending.
func GetMigrationStatus(db *sql.DB) ([]Migration, error) {
	migrations, err := loadMigrations(migrationFiles)
	if err != nil {
		return nil, err
	}

	applied, err := appliedMigrations(db)
	if err != nil {
		return nil, err
	}
	for i := range migrations {
		migrations[i].Applied = applied[migrations[i].Name]
	}

	return migrations, nil
}

// loadMigrations reads the migrations directory of fsys.
func loadMigrations(fsys fs.ReadDirFS) ([]Migration, error) {
	entries, err := fsys.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	seen := make(map[int]string)
	var migrations []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		prefix, _, ok := strings.Cut(name, "_")
		version, err := strconv.Atoi(prefix)
		if !ok || err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s: name must start with a positive version such as 001_", name)
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", other, name, version)
		}
		seen[version] = name

		migrations = append(migrations, Migration{Version: version, Name: name})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func appliedMigrations(db *sql.DB) (map[string]bool, error) {
	var table string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'migrations'").Scan(&table)
	if err == sql.ErrNoRows {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up migrations table: %w", err)
	}

	rows, err := db.Query("SELECT name FROM migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan migration name: %w", err)
		}
		applied[name] = true
	}
	return applied, rows.Err()
}
