package db

// SchemaSQL is the complete schema for fresh dispatch installs.
// This schema reflects the current state after all migrations.
//
// # Schema Drift Protection
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. All tests use
// this schema via GetSchemaSQL(). If repository code references a column that
// doesn't exist here, tests fail immediately with "no such column".
//
// # Timestamps
//
// Timestamps are stored as TEXT in TimeLayout (UTC, fixed nanosecond width)
// so that lexical order equals chronological order. Rollback selection
// compares scanned_at against an alert's created_at in SQL.
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
//  3. Run `make test` to verify alignment
const SchemaSQL = `
-- Invoices (aggregate header)
CREATE TABLE IF NOT EXISTS invoices (
	id TEXT PRIMARY KEY,
	customer_name TEXT NOT NULL DEFAULT '',
	blocked INTEGER NOT NULL DEFAULT 0 CHECK(blocked IN (0, 1)),
	blocked_at TEXT,
	audit_complete INTEGER NOT NULL DEFAULT 0 CHECK(audit_complete IN (0, 1)),
	loading_complete INTEGER NOT NULL DEFAULT 0 CHECK(loading_complete IN (0, 1)),
	created_at TEXT NOT NULL
);

-- Invoice lines (expected part shipments with scan counters)
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

-- Scans (one row per physical bin per context)
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

-- Mismatch alerts (over-scan escalations awaiting review)
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
CREATE INDEX IF NOT EXISTS idx_scans_invoice_status ON scans(invoice_id, status);
CREATE INDEX IF NOT EXISTS idx_scans_customer_bin ON scans(line_id, context, customer_bin_id);
CREATE INDEX IF NOT EXISTS idx_scans_carrier_bin ON scans(line_id, context, carrier_bin_id);
CREATE INDEX IF NOT EXISTS idx_alerts_invoice_status ON mismatch_alerts(invoice_id, status);
`

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
