// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Instead, use
// setupTestDB() and the seed* helpers.
package sqlite_test

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/dispatch/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// This is the single shared test database setup function for all repository tests.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on&_txlock=immediate")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// Every connection to :memory: is a separate database.
	testDB.SetMaxOpenConns(1)

	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// testTime returns a fixed instant offset by n seconds.
func testTime(n int) time.Time {
	return time.Date(2026, 5, 4, 8, 0, n, 0, time.UTC)
}

// seedInvoice inserts a test invoice and returns its ID.
func seedInvoice(t *testing.T, database *sql.DB, id string) string {
	t.Helper()
	if id == "" {
		id = "INV-001"
	}
	_, err := database.Exec("INSERT INTO invoices (id, customer_name, created_at) VALUES (?, ?, ?)",
		id, "ACME", db.FormatTime(testTime(0)))
	if err != nil {
		t.Fatalf("failed to seed invoice: %v", err)
	}
	return id
}

// seedLine inserts a test invoice line at position and returns its ID.
func seedLine(t *testing.T, database *sql.DB, invoiceID string, position int, customerPart, carrierPart string, expected int) string {
	t.Helper()
	id := fmt.Sprintf("%s-L%03d", invoiceID, position)
	_, err := database.Exec(
		`INSERT INTO invoice_lines (id, invoice_id, position, customer_part_code, carrier_part_code, expected_quantity)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, invoiceID, position, customerPart, carrierPart, expected,
	)
	if err != nil {
		t.Fatalf("failed to seed invoice line: %v", err)
	}
	return id
}

// seedPendingScan inserts a pending customer-stage audit scan.
func seedPendingScan(t *testing.T, database *sql.DB, id, invoiceID, lineID, bin string, qty, at int) string {
	t.Helper()
	_, err := database.Exec(
		`INSERT INTO scans (id, invoice_id, line_id, context, stage, status, customer_payload, customer_bin_id, bin_quantity, scanned_by, scanned_at)
		 VALUES (?, ?, ?, 'audit', 'customer', 'pending', ?, ?, ?, 'op-a', ?)`,
		id, invoiceID, lineID, "payload-"+bin, bin, qty, db.FormatTime(testTime(at)),
	)
	if err != nil {
		t.Fatalf("failed to seed scan: %v", err)
	}
	return id
}

// seedAlert inserts an alert with the given status.
func seedAlert(t *testing.T, database *sql.DB, id, invoiceID, lineID, status string, at int) string {
	t.Helper()
	_, err := database.Exec(
		`INSERT INTO mismatch_alerts (id, invoice_id, line_id, step, status, created_at)
		 VALUES (?, ?, ?, 'over_scan_customer', ?, ?)`,
		id, invoiceID, lineID, status, db.FormatTime(testTime(at)),
	)
	if err != nil {
		t.Fatalf("failed to seed alert: %v", err)
	}
	return id
}
