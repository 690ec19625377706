package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"credbroker/pkg/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var migrationName = regexp.MustCompile(`^(\d+)_(.+)\.up\.sql$`)

// Migration represents a database migration.
type Migration struct {
	Version     int
	Description string
	UpSQL       string
}

// Migrator applies the embedded migrations and records them in the
// schema_migrations table.
type Migrator struct {
	db *DB
}

// NewMigrator creates a new migration handler.
func NewMigrator(db *DB) *Migrator {
	return &Migrator{db: db}
}

// LoadMigrations loads all migrations from the embedded filesystem, sorted by version.
func (m *Migrator) LoadMigrations() ([]Migration, error) {
	var result []Migration

	err := fs.WalkDir(migrationsFS, "migrations", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		matches := migrationName.FindStringSubmatch(path.Base(p))
		if len(matches) != 3 {
			return nil
		}

		version, _ := strconv.Atoi(matches[1])
		content, err := migrationsFS.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", p, err)
		}

		result = append(result, Migration{
			Version:     version,
			Description: strings.ReplaceAll(matches[2], "_", " "),
			UpSQL:       string(content),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking migrations: %w", err)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Version < result[j].Version
	})

	return result, nil
}

// CurrentVersion returns the highest applied migration version.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}

	var version int
	err := m.db.sql.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("getting current version: %w", err)
	}
	return version, nil
}

// MigrateUp applies all pending migrations and returns how many were applied.
func (m *Migrator) MigrateUp(ctx context.Context) (int, error) {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return 0, err
	}

	migrations, err := m.LoadMigrations()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, mig := range migrations {
		if mig.Version <= current {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return applied, err
		}
		logging.Info("Store", "Applied migration %03d (%s)", mig.Version, mig.Description)
		applied++
	}

	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	tx, err := m.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction for migration %d: %w", mig.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, mig.UpSQL); err != nil {
		return fmt.Errorf("applying migration %d: %w", mig.Version, err)
	}

	_, err = tx.ExecContext(ctx,
		m.db.rebind(`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`),
		mig.Version, mig.Description, m.db.now())
	if err != nil {
		return fmt.Errorf("recording migration %d: %w", mig.Version, err)
	}

	return tx.Commit()
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.sql.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}
	return nil
}
