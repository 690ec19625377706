package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credbroker/internal/crypto"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "credbroker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestCipher(t *testing.T) *crypto.Cipher {
	t.Helper()
	key := make([]byte, crypto.KeySize)
	for i := range key {
		key[i] = byte(i * 7)
	}
	c, err := crypto.NewCipher(key)
	require.NoError(t, err)
	return c
}

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "")
	assert.Error(t, err)
}

func TestMigrations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	m := NewMigrator(db)
	migrations, err := m.LoadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}

	version, err := m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, version)

	applied, err := m.MigrateUp(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)
	assert.Equal(t, len(migrations), countRows(t, db, "schema_migrations"))
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	assert.Equal(t, "SELECT $1, $2 WHERE x = $3", pg.rebind("SELECT ?, ? WHERE x = ?"))

	lite := &DB{driver: DriverSQLite}
	assert.Equal(t, "SELECT ?", lite.rebind("SELECT ?"))
}

func TestScopes(t *testing.T) {
	assert.Nil(t, splitScopes(""))
	assert.Equal(t, []string{"a", "b"}, splitScopes(joinScopes([]string{"a", "b"})))
}
