package db

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAppliesMigrations(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "nested", "app.db"))
	require.NoError(t, err)
	defer conn.Close()

	var n int
	require.NoError(t, conn.Get(&n, `SELECT COUNT(*) FROM users`))
	assert.Zero(t, n)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestUniqueViolation(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer conn.Close()

	insert := `INSERT INTO users (username, fullname, email, password) VALUES ('a', 'A', 'a@x.io', 'h')`
	_, err = conn.Exec(insert)
	require.NoError(t, err)
	_, err = conn.Exec(insert)
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}

func TestForeignKeysEnforced(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec(`INSERT INTO follows (follower_id, following_id) VALUES (1, 2)`)
	assert.Error(t, err)
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, NotFound(sql.ErrNoRows), ErrNotFound)
	other := errors.New("x")
	assert.Equal(t, other, NotFound(other))
}
