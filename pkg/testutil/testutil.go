// Package testutil holds helpers shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"socialhub/db"
	"socialhub/pkg/logger"
)

// Password is the plain-text password of every user made by CreateUser.
const Password = "password123"

// NewDB returns a migrated database living in the test's temp dir.
func NewDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func Log() *logrus.Entry {
	return logger.Discard().WithField("component", "test")
}

// CreateUser inserts a verified user named username and returns its id.
func CreateUser(t *testing.T, conn *sqlx.DB, username string) int64 {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	res, err := conn.Exec(`
		INSERT INTO users (username, fullname, email, password, is_verified)
		VALUES (?, ?, ?, ?, 1)`, username, username+" Test", username+"@example.com", string(hash))
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	id, _ := res.LastInsertId()
	return id
}

// Follow records that follower follows following.
func Follow(t *testing.T, conn *sqlx.DB, follower, following int64) {
	t.Helper()
	if _, err := conn.Exec(`INSERT INTO follows (follower_id, following_id) VALUES (?, ?)`, follower, following); err != nil {
		t.Fatalf("follow: %v", err)
	}
}
