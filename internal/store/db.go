package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // Postgres driver
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"

// DB is a database handle bound to one of the supported drivers.
type DB struct {
	sql    *sql.DB
	driver string
	now    func() time.Time
}

// Open connects to the database and applies pending migrations.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	var (
		sqlDB *sql.DB
		err   error
	)

	switch driver {
	case DriverSQLite:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0700); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?" + sqlitePragmas
		}
		sqlDB, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		// SQLite doesn't handle multiple writers well
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	case DriverPostgres:
		sqlDB, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db := &DB{sql: sqlDB, driver: driver, now: func() time.Time { return time.Now().UTC() }}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if _, err := NewMigrator(db).MigrateUp(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.sql.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.sql.Close()
}

// Driver returns the driver name the DB was opened with.
func (db *DB) Driver() string {
	return db.driver
}

// rebind rewrites "?" placeholders to "$N" for Postgres.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func joinScopes(scopes []string) string {
	return strings.Join(scopes, ",")
}

func splitScopes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
