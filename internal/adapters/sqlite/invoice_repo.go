package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/db"
	"github.com/example/dispatch/internal/ports/secondary"
)

const invoiceColumns = `id, customer_name, blocked, blocked_at, audit_complete, loading_complete, created_at`

const lineColumns = `id, invoice_id, customer_part_code, carrier_part_code, expected_quantity, number_of_bins,
	customer_scanned_quantity, customer_scanned_bins, carrier_scanned_quantity, carrier_scanned_bins, loaded_bins`

// InvoiceRepository implements secondary.InvoiceRepository with SQLite.
type InvoiceRepository struct {
	db querier
}

// NewInvoiceRepository creates a new SQLite invoice repository.
func NewInvoiceRepository(db querier) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Create persists an invoice with its lines.
func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice, lines []invoice.Line) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invoices (id, customer_name, blocked, blocked_at, audit_complete, loading_complete, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		inv.CustomerName,
		boolToInt(inv.Blocked),
		db.FormatTime(inv.BlockedAt),
		boolToInt(inv.AuditComplete),
		boolToInt(inv.LoadingComplete),
		db.FormatTime(inv.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	for i, l := range lines {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO invoice_lines (id, invoice_id, position, customer_part_code, carrier_part_code, expected_quantity, number_of_bins,
				customer_scanned_quantity, customer_scanned_bins, carrier_scanned_quantity, carrier_scanned_bins, loaded_bins)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID,
			inv.ID,
			i+1,
			l.CustomerPartCode,
			l.CarrierPartCode,
			l.ExpectedQuantity,
			numberOfBins(l.NumberOfBins),
			l.CustomerScannedQuantity,
			l.CustomerScannedBins,
			l.CarrierScannedQuantity,
			l.CarrierScannedBins,
			l.LoadedBins,
		)
		if err != nil {
			return fmt.Errorf("failed to create invoice line %s: %w", l.ID, err)
		}
	}

	return nil
}

// GetByID retrieves an invoice header by its ID.
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*invoice.Invoice, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", invoice.ErrInvoiceNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

// GetForUpdate retrieves an invoice header. The immediate transaction
// already holds the database write lock, so a plain read is exclusive.
func (r *InvoiceRepository) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.GetByID(ctx, id)
}

// List retrieves invoice headers matching the given filters.
func (r *InvoiceRepository) List(ctx context.Context, filters secondary.InvoiceFilters) ([]*invoice.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
	args := []any{}

	if filters.Blocked != nil {
		query += " AND blocked = ?"
		args = append(args, boolToInt(*filters.Blocked))
	}

	if filters.CustomerName != "" {
		query += " AND customer_name = ?"
		args = append(args, filters.CustomerName)
	}

	query += " ORDER BY created_at, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*invoice.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}

	return invoices, rows.Err()
}

// ListLines retrieves the lines of an invoice in line order.
func (r *InvoiceRepository) ListLines(ctx context.Context, invoiceID string) ([]*invoice.Line, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+lineColumns+` FROM invoice_lines WHERE invoice_id = ? ORDER BY position`,
		invoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoice lines: %w", err)
	}
	defer rows.Close()

	var lines []*invoice.Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice line: %w", err)
		}
		lines = append(lines, l)
	}

	return lines, rows.Err()
}

// GetLine retrieves a single line.
func (r *InvoiceRepository) GetLine(ctx context.Context, lineID string) (*invoice.Line, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+lineColumns+` FROM invoice_lines WHERE id = ?`, lineID)
	l, err := scanLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", invoice.ErrLineNotFound, lineID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice line: %w", err)
	}
	return l, nil
}

// UpdateLineCounters writes a line's number of bins and counters.
func (r *InvoiceRepository) UpdateLineCounters(ctx context.Context, line *invoice.Line) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE invoice_lines SET number_of_bins = ?, customer_scanned_quantity = ?, customer_scanned_bins = ?,
			carrier_scanned_quantity = ?, carrier_scanned_bins = ?, loaded_bins = ? WHERE id = ?`,
		numberOfBins(line.NumberOfBins),
		line.CustomerScannedQuantity,
		line.CustomerScannedBins,
		line.CarrierScannedQuantity,
		line.CarrierScannedBins,
		line.LoadedBins,
		line.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice line: %w", err)
	}
	return requireRow(result, fmt.Errorf("%w: %s", invoice.ErrLineNotFound, line.ID))
}

// SetBlocked sets or clears the invoice block.
func (r *InvoiceRepository) SetBlocked(ctx context.Context, invoiceID string, blocked bool, at time.Time) error {
	blockedAt := sql.NullString{}
	if blocked {
		blockedAt = db.FormatTime(at)
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET blocked = ?, blocked_at = ? WHERE id = ?`,
		boolToInt(blocked), blockedAt, invoiceID,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice block: %w", err)
	}
	return requireRow(result, fmt.Errorf("%w: %s", invoice.ErrInvoiceNotFound, invoiceID))
}

// SetAuditComplete stores the audit completion flag.
func (r *InvoiceRepository) SetAuditComplete(ctx context.Context, invoiceID string, complete bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET audit_complete = ? WHERE id = ?`,
		boolToInt(complete), invoiceID,
	)
	if err != nil {
		return fmt.Errorf("failed to update audit completion: %w", err)
	}
	return requireRow(result, fmt.Errorf("%w: %s", invoice.ErrInvoiceNotFound, invoiceID))
}

// SetLoadingComplete stores the loading completion flag.
func (r *InvoiceRepository) SetLoadingComplete(ctx context.Context, invoiceID string, complete bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET loading_complete = ? WHERE id = ?`,
		boolToInt(complete), invoiceID,
	)
	if err != nil {
		return fmt.Errorf("failed to update loading completion: %w", err)
	}
	return requireRow(result, fmt.Errorf("%w: %s", invoice.ErrInvoiceNotFound, invoiceID))
}

func scanInvoice(row rowScanner) (*invoice.Invoice, error) {
	var (
		inv                     invoice.Invoice
		blocked, audit, loading int
		blockedAt, createdAt    sql.NullString
	)
	err := row.Scan(&inv.ID, &inv.CustomerName, &blocked, &blockedAt, &audit, &loading, &createdAt)
	if err != nil {
		return nil, err
	}
	inv.Blocked = blocked == 1
	inv.AuditComplete = audit == 1
	inv.LoadingComplete = loading == 1
	if inv.BlockedAt, err = db.ParseTime(blockedAt); err != nil {
		return nil, err
	}
	if inv.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, err
	}
	return &inv, nil
}

func scanLine(row rowScanner) (*invoice.Line, error) {
	var (
		l    invoice.Line
		bins sql.NullInt64
	)
	err := row.Scan(&l.ID, &l.InvoiceID, &l.CustomerPartCode, &l.CarrierPartCode, &l.ExpectedQuantity, &bins,
		&l.CustomerScannedQuantity, &l.CustomerScannedBins, &l.CarrierScannedQuantity, &l.CarrierScannedBins, &l.LoadedBins)
	if err != nil {
		return nil, err
	}
	l.NumberOfBins = int(bins.Int64)
	return &l, nil
}

// numberOfBins stores an underived bin count as NULL.
func numberOfBins(n int) sql.NullInt64 {
	if n <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}

func requireRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// Ensure InvoiceRepository implements the interface
var _ secondary.InvoiceRepository = (*InvoiceRepository)(nil)
