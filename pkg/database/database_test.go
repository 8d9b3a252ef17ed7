package database

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("memory database with init", func(t *testing.T) {
		var initialized bool
		db, err := New(
			WithMaxOpenConns(1),
			WithInit(func(db *sql.DB) error {
				initialized = true
				_, err := db.Exec(`CREATE TABLE t (id INTEGER)`)
				return err
			}),
		)
		require.NoError(t, err)
		defer db.Close()

		assert.True(t, initialized)
		_, err = db.Exec(`INSERT INTO t (id) VALUES (1)`)
		assert.NoError(t, err)
	})

	t.Run("init failure closes pool", func(t *testing.T) {
		_, err := New(WithInit(func(db *sql.DB) error { return errors.New("bad schema") }))
		assert.ErrorContains(t, err, "bad schema")
	})

	t.Run("unknown driver exhausts retries", func(t *testing.T) {
		_, err := New(WithDriver("nope"), WithRetry(2, time.Millisecond))
		assert.ErrorContains(t, err, "failed to connect")
	})

	t.Run("empty options are rejected", func(t *testing.T) {
		_, err := New(WithDriver(""))
		assert.Error(t, err)
		_, err = New(WithDataSource(""))
		assert.Error(t, err)
	})
}
