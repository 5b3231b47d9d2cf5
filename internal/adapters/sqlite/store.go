// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/dispatch/internal/ports/secondary"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so repositories run
// unchanged inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Store implements secondary.Store with SQLite.
//
// The database must be opened with _txlock=immediate (see db.DSN): every
// transaction takes the write lock when it begins, which is what makes the
// ForUpdate reads of the repositories exclusive.
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// WithTransaction runs fn inside one transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, repos secondary.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, repositories(tx)); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Repositories returns repositories bound to the database itself.
func (s *Store) Repositories() secondary.Repositories {
	return repositories(s.db)
}

func repositories(q querier) secondary.Repositories {
	return secondary.Repositories{
		Invoices: NewInvoiceRepository(q),
		Scans:    NewScanRepository(q),
		Alerts:   NewAlertRepository(q),
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure Store implements the interface
var _ secondary.Store = (*Store)(nil)
