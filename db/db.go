// Package db opens the SQLite database shared by every store.
package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"socialhub/pkg/db/sqlite"
)

// Open connects to the database file at path and applies migrations.
//
// SQLite allows a single writer, so the pool is capped at one connection.
// Callers must drain result sets before issuing the next query.
func Open(path string) (*sqlx.DB, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}

	conn, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := sqlite.ApplyMigrations(conn.DB); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
