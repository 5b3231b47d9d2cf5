package db

import (
	"database/sql"
	"fmt"
	"time"
)

// SeedFixtures populates the database with development fixtures: a few
// open invoices whose labels can be printed and scanned by hand.
func SeedFixtures(database *sql.DB) error {
	now := FormatTime(time.Now())

	invoices := []struct{ id, customer string }{
		{"INV-1001", "Northwind Assembly"},
		{"INV-1002", "Contoso Motors"},
		{"INV-1003", "Fabrikam Components"},
	}
	for _, inv := range invoices {
		if _, err := database.Exec(
			"INSERT INTO invoices (id, customer_name, created_at) VALUES (?, ?, ?)",
			inv.id, inv.customer, now,
		); err != nil {
			return fmt.Errorf("seed invoices: %w", err)
		}
	}

	lines := []struct {
		invoiceID        string
		position         int
		customer         string
		carrier          string
		expectedQuantity int
	}{
		{"INV-1001", 1, "C-4711", "K-88201", 16},
		{"INV-1001", 2, "C-4712", "K-88202", 9},
		{"INV-1002", 1, "HX-200", "K-10020", 24},
		{"INV-1003", 1, "FB-77", "K-7700", 6},
		{"INV-1003", 2, "FB-78", "K-7800", 0},
	}
	for _, l := range lines {
		if _, err := database.Exec(
			`INSERT INTO invoice_lines (id, invoice_id, position, customer_part_code, carrier_part_code, expected_quantity)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			fmt.Sprintf("%s-L%03d", l.invoiceID, l.position), l.invoiceID, l.position, l.customer, l.carrier, l.expectedQuantity,
		); err != nil {
			return fmt.Errorf("seed invoice lines: %w", err)
		}
	}

	return nil
}
