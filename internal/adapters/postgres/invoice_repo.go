package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/ports/secondary"
)

// InvoiceRepository implements secondary.InvoiceRepository with gorm.
type InvoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new PostgreSQL invoice repository.
func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Create persists an invoice with its lines.
func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice, lines []invoice.Line) error {
	db := r.db.WithContext(ctx)
	row := toInvoiceRow(inv)
	if err := db.Omit(clause.Associations).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	if len(lines) == 0 {
		return nil
	}
	rows := make([]lineRow, len(lines))
	for i, l := range lines {
		rows[i] = toLineRow(l, i+1)
	}
	if err := db.Omit(clause.Associations).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to create invoice lines: %w", err)
	}
	return nil
}

// GetByID retrieves an invoice header.
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.get(r.db.WithContext(ctx), id)
}

// GetForUpdate retrieves an invoice header with a row lock.
func (r *InvoiceRepository) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *InvoiceRepository) get(db *gorm.DB, id string) (*invoice.Invoice, error) {
	var row invoiceRow
	err := db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", invoice.ErrInvoiceNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return row.toInvoice(), nil
}

// List retrieves invoice headers matching the given filters.
func (r *InvoiceRepository) List(ctx context.Context, filters secondary.InvoiceFilters) ([]*invoice.Invoice, error) {
	db := r.db.WithContext(ctx)
	if filters.Blocked != nil {
		db = db.Where("blocked = ?", *filters.Blocked)
	}
	if filters.CustomerName != "" {
		db = db.Where("customer_name = ?", filters.CustomerName)
	}

	var rows []invoiceRow
	if err := db.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	invoices := make([]*invoice.Invoice, len(rows))
	for i, row := range rows {
		invoices[i] = row.toInvoice()
	}
	return invoices, nil
}

// ListLines retrieves the lines of an invoice in line order.
func (r *InvoiceRepository) ListLines(ctx context.Context, invoiceID string) ([]*invoice.Line, error) {
	var rows []lineRow
	err := r.db.WithContext(ctx).Where("invoice_id = ?", invoiceID).Order("position").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list invoice lines: %w", err)
	}
	lines := make([]*invoice.Line, len(rows))
	for i, row := range rows {
		lines[i] = row.toLine()
	}
	return lines, nil
}

// GetLine retrieves a single line.
func (r *InvoiceRepository) GetLine(ctx context.Context, lineID string) (*invoice.Line, error) {
	var row lineRow
	err := r.db.WithContext(ctx).Where("id = ?", lineID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", invoice.ErrLineNotFound, lineID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice line: %w", err)
	}
	return row.toLine(), nil
}

// UpdateLineCounters writes a line's number of bins and counters.
func (r *InvoiceRepository) UpdateLineCounters(ctx context.Context, l *invoice.Line) error {
	result := r.db.WithContext(ctx).Model(&lineRow{}).Where("id = ?", l.ID).Updates(map[string]any{
		"number_of_bins":            intPtr(l.NumberOfBins),
		"customer_scanned_quantity": l.CustomerScannedQuantity,
		"customer_scanned_bins":     l.CustomerScannedBins,
		"carrier_scanned_quantity":  l.CarrierScannedQuantity,
		"carrier_scanned_bins":      l.CarrierScannedBins,
		"loaded_bins":               l.LoadedBins,
	})
	if err := requireRow(result, fmt.Errorf("%w: %s", invoice.ErrLineNotFound, l.ID)); err != nil {
		return fmt.Errorf("failed to update line counters: %w", err)
	}
	return nil
}

// SetBlocked sets or clears the invoice block.
func (r *InvoiceRepository) SetBlocked(ctx context.Context, invoiceID string, blocked bool, at time.Time) error {
	var blockedAt *time.Time
	if blocked {
		blockedAt = timePtr(at)
	}
	return r.update(ctx, invoiceID, map[string]any{"blocked": blocked, "blocked_at": blockedAt})
}

// SetAuditComplete stores the audit completion flag.
func (r *InvoiceRepository) SetAuditComplete(ctx context.Context, invoiceID string, complete bool) error {
	return r.update(ctx, invoiceID, map[string]any{"audit_complete": complete})
}

// SetLoadingComplete stores the loading completion flag.
func (r *InvoiceRepository) SetLoadingComplete(ctx context.Context, invoiceID string, complete bool) error {
	return r.update(ctx, invoiceID, map[string]any{"loading_complete": complete})
}

func (r *InvoiceRepository) update(ctx context.Context, invoiceID string, values map[string]any) error {
	result := r.db.WithContext(ctx).Model(&invoiceRow{}).Where("id = ?", invoiceID).Updates(values)
	if err := requireRow(result, fmt.Errorf("%w: %s", invoice.ErrInvoiceNotFound, invoiceID)); err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return nil
}

var _ secondary.InvoiceRepository = (*InvoiceRepository)(nil)
