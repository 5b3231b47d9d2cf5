package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/dispatch/internal/core/alert"
	"github.com/example/dispatch/internal/db"
	"github.com/example/dispatch/internal/ports/secondary"
)

const alertColumns = `id, invoice_id, line_id, step, customer_snapshot, carrier_snapshot, status, reviewed_by, review_note, reviewed_at, created_at`

// AlertRepository implements secondary.AlertRepository with SQLite.
type AlertRepository struct {
	db querier
}

// NewAlertRepository creates a new SQLite alert repository.
func NewAlertRepository(db querier) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create persists a new alert.
func (r *AlertRepository) Create(ctx context.Context, a *alert.Alert) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO mismatch_alerts (`+alertColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.InvoiceID,
		a.LineID,
		a.Step,
		nullString(a.CustomerSnapshot),
		nullString(a.CarrierSnapshot),
		a.Status,
		nullString(a.ReviewedBy),
		nullString(a.ReviewNote),
		db.FormatTime(a.ReviewedAt),
		db.FormatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// GetByID retrieves an alert by its ID.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alert.Alert, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM mismatch_alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", alert.ErrAlertNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}

// GetForUpdate retrieves an alert. The immediate transaction already holds the write lock.
func (r *AlertRepository) GetForUpdate(ctx context.Context, id string) (*alert.Alert, error) {
	return r.GetByID(ctx, id)
}

// UpdateReview writes the status and review fields of an alert.
func (r *AlertRepository) UpdateReview(ctx context.Context, a *alert.Alert) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE mismatch_alerts SET status = ?, reviewed_by = ?, review_note = ?, reviewed_at = ? WHERE id = ?`,
		a.Status,
		nullString(a.ReviewedBy),
		nullString(a.ReviewNote),
		db.FormatTime(a.ReviewedAt),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update alert review: %w", err)
	}
	return requireRow(result, fmt.Errorf("%w: %s", alert.ErrAlertNotFound, a.ID))
}

// List retrieves alerts matching the given filters, newest first.
func (r *AlertRepository) List(ctx context.Context, filters secondary.AlertFilters) ([]*alert.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM mismatch_alerts WHERE 1=1`
	args := []any{}

	if filters.InvoiceID != "" {
		query += " AND invoice_id = ?"
		args = append(args, filters.InvoiceID)
	}

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}

	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// CountOpen counts the pending and rejected alerts of an invoice.
func (r *AlertRepository) CountOpen(ctx context.Context, invoiceID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mismatch_alerts WHERE invoice_id = ? AND status IN (?, ?)`,
		invoiceID, alert.StatusPending, alert.StatusRejected,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count open alerts: %w", err)
	}
	return n, nil
}

func scanAlert(row rowScanner) (*alert.Alert, error) {
	var (
		a                         alert.Alert
		step, status              string
		customerSnap, carrierSnap sql.NullString
		reviewedBy, reviewNote    sql.NullString
		reviewedAt, createdAt     sql.NullString
	)
	err := row.Scan(&a.ID, &a.InvoiceID, &a.LineID, &step, &customerSnap, &carrierSnap, &status, &reviewedBy, &reviewNote, &reviewedAt, &createdAt)
	if err != nil {
		return nil, err
	}
	if a.Step, err = alert.ParseStep(step); err != nil {
		return nil, err
	}
	a.Status = alert.Status(status)
	a.CustomerSnapshot = customerSnap.String
	a.CarrierSnapshot = carrierSnap.String
	a.ReviewedBy = reviewedBy.String
	a.ReviewNote = reviewNote.String
	if a.ReviewedAt, err = db.ParseTime(reviewedAt); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// Ensure AlertRepository implements the interface
var _ secondary.AlertRepository = (*AlertRepository)(nil)
