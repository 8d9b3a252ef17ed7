package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestUpDown(t *testing.T) {
	db := openMemory(t)

	v, _, err := Version(db)
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, Up(db))
	require.NoError(t, Up(db), "second run is a no-op")

	for _, table := range []string{"records", "classifications", "rating_tables", "ratings", "record_scores", "audit", "group_reports"} {
		assert.True(t, tableExists(t, db, table), table)
	}

	v, dirty, err := Version(db)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)

	require.NoError(t, Down(db))
	assert.False(t, tableExists(t, db, "records"))
}
