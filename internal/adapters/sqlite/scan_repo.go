package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/dispatch/internal/core/scan"
	"github.com/example/dispatch/internal/db"
	"github.com/example/dispatch/internal/ports/secondary"
)

const scanColumns = `id, invoice_id, line_id, context, stage, status, customer_payload, customer_bin_id, bin_quantity,
	carrier_payload, carrier_bin_id, scanned_by, scanned_at, paired_by, paired_at`

// ScanRepository implements secondary.ScanRepository with SQLite.
type ScanRepository struct {
	db querier
}

// NewScanRepository creates a new SQLite scan repository.
func NewScanRepository(db querier) *ScanRepository {
	return &ScanRepository{db: db}
}

// Create persists a new scan.
func (r *ScanRepository) Create(ctx context.Context, s *scan.Scan) error {
	carrier, _ := s.Carrier()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scans (`+scanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.InvoiceID,
		s.LineID,
		s.Context,
		s.Stage(),
		s.Status(),
		s.CustomerPayload,
		s.CustomerBinID,
		s.BinQuantity,
		nullString(carrier.CarrierPayload),
		nullString(carrier.CarrierBinID),
		s.ScannedBy,
		db.FormatTime(s.ScannedAt),
		nullString(carrier.PairedBy),
		db.FormatTime(carrier.PairedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create scan: %w", err)
	}
	return nil
}

// GetByID retrieves a scan by its ID.
func (r *ScanRepository) GetByID(ctx context.Context, id string) (*scan.Scan, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, id)
	s, err := scanScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", scan.ErrScanNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return s, nil
}

// Update writes the lifecycle state of an existing scan.
func (r *ScanRepository) Update(ctx context.Context, s *scan.Scan) error {
	carrier, _ := s.Carrier()
	result, err := r.db.ExecContext(ctx,
		`UPDATE scans SET stage = ?, status = ?, carrier_payload = ?, carrier_bin_id = ?, paired_by = ?, paired_at = ? WHERE id = ?`,
		s.Stage(),
		s.Status(),
		nullString(carrier.CarrierPayload),
		nullString(carrier.CarrierBinID),
		nullString(carrier.PairedBy),
		db.FormatTime(carrier.PairedAt),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update scan: %w", err)
	}
	return requireRow(result, fmt.Errorf("%w: %s", scan.ErrScanNotFound, s.ID))
}

// Delete removes a scan.
func (r *ScanRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}
	return requireRow(result, fmt.Errorf("%w: %s", scan.ErrScanNotFound, id))
}

// LatestPendingForUpdate returns the most recent pending customer-stage
// audit scan of a line. The immediate transaction already holds the write lock.
func (r *ScanRepository) LatestPendingForUpdate(ctx context.Context, lineID string) (*scan.Scan, error) {
	return r.LatestPending(ctx, lineID)
}

// LatestPending returns the most recent pending customer-stage audit scan of a line.
func (r *ScanRepository) LatestPending(ctx context.Context, lineID string) (*scan.Scan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+scanColumns+` FROM scans
		 WHERE line_id = ? AND context = ? AND stage = ? AND status = ?
		 ORDER BY scanned_at DESC, rowid DESC LIMIT 1`,
		lineID, scan.ContextAudit, scan.StageCustomer, scan.StatusPending,
	)
	s, err := scanScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest pending scan: %w", err)
	}
	return s, nil
}

// BinRecorded reports whether a bin was already recorded on a line.
func (r *ScanRepository) BinRecorded(ctx context.Context, q secondary.BinQuery) (bool, error) {
	binColumn, payloadColumn := "customer_bin_id", "customer_payload"
	if q.Side == secondary.SideCarrier {
		binColumn, payloadColumn = "carrier_bin_id", "carrier_payload"
	}

	query := `SELECT EXISTS(SELECT 1 FROM scans WHERE line_id = ? AND context = ? AND (` + binColumn + ` = ?`
	args := []any{q.LineID, q.Context, q.BinID}
	if len(q.Payloads) > 0 {
		query += ` OR ` + payloadColumn + ` IN (?` + strings.Repeat(", ?", len(q.Payloads)-1) + `)`
		for _, p := range q.Payloads {
			args = append(args, p)
		}
	}
	query += `))`

	var exists int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check recorded bin: %w", err)
	}
	return exists == 1, nil
}

// CountByLine counts the scans of a line in a context.
func (r *ScanRepository) CountByLine(ctx context.Context, lineID string, scanCtx scan.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scans WHERE line_id = ? AND context = ?`,
		lineID, scanCtx,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count scans: %w", err)
	}
	return n, nil
}

// CountDistinctCustomerBins counts distinct customer bin IDs of a line in a context.
func (r *ScanRepository) CountDistinctCustomerBins(ctx context.Context, lineID string, scanCtx scan.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT customer_bin_id) FROM scans WHERE line_id = ? AND context = ?`,
		lineID, scanCtx,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count distinct bins: %w", err)
	}
	return n, nil
}

// ListPendingByInvoice lists the pending customer-stage audit scans of an invoice.
func (r *ScanRepository) ListPendingByInvoice(ctx context.Context, invoiceID string) ([]*scan.Scan, error) {
	return r.query(ctx,
		`SELECT `+scanColumns+` FROM scans
		 WHERE invoice_id = ? AND context = ? AND stage = ? AND status = ?
		 ORDER BY scanned_at, rowid`,
		invoiceID, scan.ContextAudit, scan.StageCustomer, scan.StatusPending,
	)
}

// List retrieves scans matching the given filters, oldest first.
func (r *ScanRepository) List(ctx context.Context, filters secondary.ScanFilters) ([]*scan.Scan, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE 1=1`
	args := []any{}

	if filters.InvoiceID != "" {
		query += " AND invoice_id = ?"
		args = append(args, filters.InvoiceID)
	}

	if filters.LineID != "" {
		query += " AND line_id = ?"
		args = append(args, filters.LineID)
	}

	if filters.Context != "" {
		query += " AND context = ?"
		args = append(args, filters.Context)
	}

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}

	query += " ORDER BY scanned_at, rowid"

	return r.query(ctx, query, args...)
}

func (r *ScanRepository) query(ctx context.Context, query string, args ...any) ([]*scan.Scan, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var scans []*scan.Scan
	for rows.Next() {
		s, err := scanScan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scan row: %w", err)
		}
		scans = append(scans, s)
	}

	return scans, rows.Err()
}

func scanScan(row rowScanner) (*scan.Scan, error) {
	var (
		s                             scan.Scan
		stage, status                 string
		carrierPayload, carrierBin    sql.NullString
		pairedBy, scannedAt, pairedAt sql.NullString
	)
	err := row.Scan(&s.ID, &s.InvoiceID, &s.LineID, &s.Context, &stage, &status, &s.CustomerPayload, &s.CustomerBinID, &s.BinQuantity,
		&carrierPayload, &carrierBin, &s.ScannedBy, &scannedAt, &pairedBy, &pairedAt)
	if err != nil {
		return nil, err
	}
	if s.ScannedAt, err = db.ParseTime(scannedAt); err != nil {
		return nil, err
	}

	carrier := scan.Paired{
		CarrierPayload: carrierPayload.String,
		CarrierBinID:   carrierBin.String,
		PairedBy:       pairedBy.String,
	}
	if carrier.PairedAt, err = db.ParseTime(pairedAt); err != nil {
		return nil, err
	}
	if s.State, err = scan.StateFromColumns(scan.Stage(stage), scan.Status(status), s.Context, carrier); err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.ID, err)
	}
	return &s, nil
}

// Ensure ScanRepository implements the interface
var _ secondary.ScanRepository = (*ScanRepository)(nil)
