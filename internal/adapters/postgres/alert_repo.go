package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/dispatch/internal/core/alert"
	"github.com/example/dispatch/internal/ports/secondary"
)

// AlertRepository implements secondary.AlertRepository with gorm.
type AlertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new PostgreSQL alert repository.
func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create persists a new alert.
func (r *AlertRepository) Create(ctx context.Context, a *alert.Alert) error {
	row := toAlertRow(a)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// GetByID retrieves an alert.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alert.Alert, error) {
	return r.get(r.db.WithContext(ctx), id)
}

// GetForUpdate retrieves an alert with a row lock.
func (r *AlertRepository) GetForUpdate(ctx context.Context, id string) (*alert.Alert, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *AlertRepository) get(db *gorm.DB, id string) (*alert.Alert, error) {
	var row alertRow
	err := db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", alert.ErrAlertNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return row.toAlert()
}

// UpdateReview writes the status and review fields of an alert.
func (r *AlertRepository) UpdateReview(ctx context.Context, a *alert.Alert) error {
	result := r.db.WithContext(ctx).Model(&alertRow{}).Where("id = ?", a.ID).Updates(map[string]any{
		"status":      string(a.Status),
		"reviewed_by": a.ReviewedBy,
		"review_note": a.ReviewNote,
		"reviewed_at": timePtr(a.ReviewedAt),
	})
	if err := requireRow(result, fmt.Errorf("%w: %s", alert.ErrAlertNotFound, a.ID)); err != nil {
		return fmt.Errorf("failed to update alert review: %w", err)
	}
	return nil
}

// List retrieves alerts matching the given filters, newest first.
func (r *AlertRepository) List(ctx context.Context, filters secondary.AlertFilters) ([]*alert.Alert, error) {
	db := r.db.WithContext(ctx)
	if filters.InvoiceID != "" {
		db = db.Where("invoice_id = ?", filters.InvoiceID)
	}
	if filters.Status != "" {
		db = db.Where("status = ?", string(filters.Status))
	}

	var rows []alertRow
	if err := db.Order("created_at DESC, seq DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	alerts := make([]*alert.Alert, 0, len(rows))
	for _, row := range rows {
		a, err := row.toAlert()
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

// CountOpen counts the pending and rejected alerts of an invoice.
func (r *AlertRepository) CountOpen(ctx context.Context, invoiceID string) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&alertRow{}).
		Where("invoice_id = ? AND status IN ?", invoiceID,
			[]string{string(alert.StatusPending), string(alert.StatusRejected)}).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count open alerts: %w", err)
	}
	return int(n), nil
}

var _ secondary.AlertRepository = (*AlertRepository)(nil)
