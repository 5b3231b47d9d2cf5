package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// TimeLayout is the stored form of every timestamp column.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t for storage. The zero time is stored as NULL.
func FormatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(TimeLayout), Valid: true}
}

// ParseTime reads a stored timestamp. NULL yields the zero time.
func ParseTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimeLayout, s.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s.String, err)
	}
	return t, nil
}

// DefaultPath returns ~/.dispatch/dispatch.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".dispatch", "dispatch.db"), nil
}

// DSN returns the go-sqlite3 connection string for path. Transactions take
// the write lock when they begin, so reads inside a transaction see a
// stable state.
func DSN(path string) string {
	return "file:" + path + "?_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"
}

// Open opens the database at path, creating its directory and schema as needed.
func Open(path string, log logrus.FieldLogger) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	database, err := sql.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer connection avoids SQLITE_BUSY between our own transactions.
	database.SetMaxOpenConns(1)

	if err := InitSchema(database, log); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return database, nil
}
