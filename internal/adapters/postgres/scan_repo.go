package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/dispatch/internal/core/scan"
	"github.com/example/dispatch/internal/ports/secondary"
)

// ScanRepository implements secondary.ScanRepository with gorm.
type ScanRepository struct {
	db *gorm.DB
}

// NewScanRepository creates a new PostgreSQL scan repository.
func NewScanRepository(db *gorm.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Create persists a new scan.
func (r *ScanRepository) Create(ctx context.Context, s *scan.Scan) error {
	row := toScanRow(s)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create scan: %w", err)
	}
	return nil
}

// GetByID retrieves a scan.
func (r *ScanRepository) GetByID(ctx context.Context, id string) (*scan.Scan, error) {
	var row scanRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", scan.ErrScanNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return row.toScan()
}

// Update writes the lifecycle state of an existing scan.
func (r *ScanRepository) Update(ctx context.Context, s *scan.Scan) error {
	row := toScanRow(s)
	result := r.db.WithContext(ctx).Model(&scanRow{}).Where("id = ?", s.ID).Updates(map[string]any{
		"stage":           row.Stage,
		"status":          row.Status,
		"carrier_payload": row.CarrierPayload,
		"carrier_bin_id":  row.CarrierBinID,
		"paired_by":       row.PairedBy,
		"paired_at":       row.PairedAt,
	})
	if err := requireRow(result, fmt.Errorf("%w: %s", scan.ErrScanNotFound, s.ID)); err != nil {
		return fmt.Errorf("failed to update scan: %w", err)
	}
	return nil
}

// Delete removes a scan.
func (r *ScanRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&scanRow{})
	if err := requireRow(result, fmt.Errorf("%w: %s", scan.ErrScanNotFound, id)); err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}
	return nil
}

// LatestPendingForUpdate returns the most recent pending scan of a line with a row lock.
func (r *ScanRepository) LatestPendingForUpdate(ctx context.Context, lineID string) (*scan.Scan, error) {
	return r.latestPending(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), lineID)
}

// LatestPending returns the most recent pending scan of a line.
func (r *ScanRepository) LatestPending(ctx context.Context, lineID string) (*scan.Scan, error) {
	return r.latestPending(r.db.WithContext(ctx), lineID)
}

func (r *ScanRepository) latestPending(db *gorm.DB, lineID string) (*scan.Scan, error) {
	var row scanRow
	err := pending(db).Where("line_id = ?", lineID).
		Order("scanned_at DESC, seq DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest pending scan: %w", err)
	}
	return row.toScan()
}

// BinRecorded reports whether a bin was already recorded on a line.
func (r *ScanRepository) BinRecorded(ctx context.Context, q secondary.BinQuery) (bool, error) {
	binColumn, payloadColumn := "customer_bin_id", "customer_payload"
	if q.Side == secondary.SideCarrier {
		binColumn, payloadColumn = "carrier_bin_id", "carrier_payload"
	}

	db := r.db.WithContext(ctx)
	match := db.Where(binColumn+" = ?", q.BinID)
	if len(q.Payloads) > 0 {
		match = match.Or(payloadColumn+" IN ?", q.Payloads)
	}

	var n int64
	err := db.Model(&scanRow{}).
		Where("line_id = ? AND context = ?", q.LineID, string(q.Context)).
		Where(match).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check recorded bin: %w", err)
	}
	return n > 0, nil
}

// CountByLine counts the scans of a line in a context.
func (r *ScanRepository) CountByLine(ctx context.Context, lineID string, scanCtx scan.Context) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&scanRow{}).
		Where("line_id = ? AND context = ?", lineID, string(scanCtx)).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count scans: %w", err)
	}
	return int(n), nil
}

// CountDistinctCustomerBins counts distinct customer bin IDs of a line in a context.
func (r *ScanRepository) CountDistinctCustomerBins(ctx context.Context, lineID string, scanCtx scan.Context) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&scanRow{}).
		Where("line_id = ? AND context = ?", lineID, string(scanCtx)).
		Distinct("customer_bin_id").
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count distinct bins: %w", err)
	}
	return int(n), nil
}

// ListPendingByInvoice lists the pending customer-stage audit scans of an invoice.
func (r *ScanRepository) ListPendingByInvoice(ctx context.Context, invoiceID string) ([]*scan.Scan, error) {
	return r.find(pending(r.db.WithContext(ctx)).Where("invoice_id = ?", invoiceID))
}

// List retrieves scans matching the given filters, oldest first.
func (r *ScanRepository) List(ctx context.Context, filters secondary.ScanFilters) ([]*scan.Scan, error) {
	db := r.db.WithContext(ctx)
	if filters.InvoiceID != "" {
		db = db.Where("invoice_id = ?", filters.InvoiceID)
	}
	if filters.LineID != "" {
		db = db.Where("line_id = ?", filters.LineID)
	}
	if filters.Context != "" {
		db = db.Where("context = ?", string(filters.Context))
	}
	if filters.Status != "" {
		db = db.Where("status = ?", string(filters.Status))
	}
	return r.find(db)
}

func (r *ScanRepository) find(db *gorm.DB) ([]*scan.Scan, error) {
	var rows []scanRow
	if err := db.Order("scanned_at, seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	scans := make([]*scan.Scan, 0, len(rows))
	for _, row := range rows {
		s, err := row.toScan()
		if err != nil {
			return nil, err
		}
		scans = append(scans, s)
	}
	return scans, nil
}

func pending(db *gorm.DB) *gorm.DB {
	return db.Where("context = ? AND stage = ? AND status = ?",
		string(scan.ContextAudit), string(scan.StageCustomer), string(scan.StatusPending))
}

var _ secondary.ScanRepository = (*ScanRepository)(nil)
