package db

import (
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_invoice_scan_alert_tables",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_loading_complete_to_invoices",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "add_bin_lookup_indexes",
		Up:      migrationV3,
	},
}

// LatestVersion is the schema version a fresh install starts at.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// InitSchema creates the schema on a fresh database or upgrades an
// existing one.
func InitSchema(database *sql.DB, log logrus.FieldLogger) error {
	var tableCount int
	err := database.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if tableCount > 0 {
		return RunMigrations(database, log)
	}

	// Fresh install: create the current schema directly and mark every
	// migration as applied.
	if _, err := database.Exec(SchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := createVersionTable(database); err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := database.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}
	log.WithField("version", LatestVersion()).Info("created database schema")
	return nil
}

func createVersionTable(database *sql.DB) error {
	_, err := database.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

// RunMigrations executes all pending migrations
func RunMigrations(database *sql.DB, log logrus.FieldLogger) error {
	if err := createVersionTable(database); err != nil {
		return err
	}

	var currentVersion int
	err := database.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}
		mlog := log.WithFields(logrus.Fields{"version": migration.Version, "name": migration.Name})
		mlog.Info("running migration")

		tx, err := database.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}
		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		mlog.Info("migration completed")
	}

	return nil
}

// migrationV1 creates the original tables, before loading completion was tracked.
func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS invoices (
			id TEXT PRIMARY KEY,
			customer_name TEXT NOT NULL DEFAULT '',
			blocked INTEGER NOT NULL DEFAULT 0 CHECK(blocked IN (0, 1)),
			blocked_at TEXT,
			audit_complete INTEGER NOT NULL DEFAULT 0 CHECK(audit_complete IN (0, 1)),
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS invoice_lines (
			id TEXT PRIMARY KEY,
			invoice_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			customer_part_code TEXT NOT NULL,
			carrier_part_code TEXT NOT NULL,
			expected_quantity INTEGER NOT NULL CHECK(expected_quantity >= 0),
			number_of_bins INTEGER,
			customer_scanned_quantity INTEGER NOT NULL DEFAULT 0 CHECK(customer_scanned_quantity >= 0),
			customer_scanned_bins INTEGER NOT NULL DEFAULT 0 CHECK(customer_scanned_bins >= 0),
			carrier_scanned_quantity INTEGER NOT NULL DEFAULT 0 CHECK(carrier_scanned_quantity >= 0),
			carrier_scanned_bins INTEGER NOT NULL DEFAULT 0 CHECK(carrier_scanned_bins >= 0),
			loaded_bins INTEGER NOT NULL DEFAULT 0 CHECK(loaded_bins >= 0),
			FOREIGN KEY (invoice_id) REFERENCES invoices(id) ON DELETE CASCADE,
			UNIQUE(invoice_id, position)
		);

		CREATE TABLE IF NOT EXISTS scans (
			id TEXT PRIMARY KEY,
			invoice_id TEXT NOT NULL,
			line_id TEXT NOT NULL,
			context TEXT NOT NULL CHECK(context IN ('audit', 'loading')),
			stage TEXT NOT NULL CHECK(stage IN ('customer', 'paired')),
			status TEXT NOT NULL CHECK(status IN ('pending', 'matched')),
			customer_payload TEXT NOT NULL,
			customer_bin_id TEXT NOT NULL,
			bin_quantity INTEGER NOT NULL CHECK(bin_quantity >= 0),
			carrier_payload TEXT,
			carrier_bin_id TEXT,
			scanned_by TEXT NOT NULL,
			scanned_at TEXT NOT NULL,
			paired_by TEXT,
			paired_at TEXT,
			FOREIGN KEY (invoice_id) REFERENCES invoices(id) ON DELETE CASCADE,
			FOREIGN KEY (line_id) REFERENCES invoice_lines(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS mismatch_alerts (
			id TEXT PRIMARY KEY,
			invoice_id TEXT NOT NULL,
			line_id TEXT NOT NULL,
			step TEXT NOT NULL CHECK(step IN ('over_scan_customer', 'over_scan_inbound', 'over_scan_loading')),
			customer_snapshot TEXT,
			carrier_snapshot TEXT,
			status TEXT NOT NULL CHECK(status IN ('pending', 'approved', 'rejected')) DEFAULT 'pending',
			reviewed_by TEXT,
			review_note TEXT,
			reviewed_at TEXT,
			created_at TEXT NOT NULL,
			FOREIGN KEY (invoice_id) REFERENCES invoices(id) ON DELETE CASCADE,
			FOREIGN KEY (line_id) REFERENCES invoice_lines(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_invoice_lines_invoice ON invoice_lines(invoice_id);
		CREATE INDEX IF NOT EXISTS idx_scans_line_context ON scans(line_id, context);
		CREATE INDEX IF NOT EXISTS idx_alerts_invoice_status ON mismatch_alerts(invoice_id, status);
	`)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// migrationV2 adds the loading completion flag and backfills it as false.
func migrationV2(tx *sql.Tx) error {
	var count int
	err := tx.QueryRow("SELECT COUNT(*) FROM pragma_table_info('invoices') WHERE name = 'loading_complete'").Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to inspect invoices: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err = tx.Exec("ALTER TABLE invoices ADD COLUMN loading_complete INTEGER NOT NULL DEFAULT 0 CHECK(loading_complete IN (0, 1))")
	if err != nil {
		return fmt.Errorf("failed to add loading_complete: %w", err)
	}
	return nil
}

// migrationV3 adds the indexes used by duplicate detection and rollback selection.
func migrationV3(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_scans_invoice_status ON scans(invoice_id, status);
		CREATE INDEX IF NOT EXISTS idx_scans_customer_bin ON scans(line_id, context, customer_bin_id);
		CREATE INDEX IF NOT EXISTS idx_scans_carrier_bin ON scans(line_id, context, carrier_bin_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create scan indexes: %w", err)
	}
	return nil
}
