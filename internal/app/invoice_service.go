package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/ports/primary"
	"github.com/example/dispatch/internal/ports/secondary"
)

var hundred = decimal.NewFromInt(100)

// InvoiceServiceImpl implements the InvoiceService interface.
type InvoiceServiceImpl struct {
	store    secondary.Store
	source   secondary.InvoiceSource
	logger   logrus.FieldLogger
	validate *validator.Validate
	now      func() time.Time
}

// NewInvoiceService creates a new InvoiceService with injected dependencies.
// source may be nil when no ingestion format is configured.
func NewInvoiceService(store secondary.Store, source secondary.InvoiceSource, logger logrus.FieldLogger) *InvoiceServiceImpl {
	return &InvoiceServiceImpl{
		store:    store,
		source:   source,
		logger:   logger,
		validate: validator.New(),
		now:      utcNow,
	}
}

// CreateInvoice stores an invoice with its expected lines.
func (s *InvoiceServiceImpl) CreateInvoice(ctx context.Context, req primary.CreateInvoiceRequest) (*primary.InvoiceDetail, error) {
	if err := validateRequest(s.validate, req); err != nil {
		return nil, err
	}

	inv := invoice.Invoice{
		ID:           req.ID,
		CustomerName: req.CustomerName,
		CreatedAt:    s.now(),
	}
	lines := make([]invoice.Line, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = invoice.Line{
			ID:               invoice.LineID(req.ID, i+1),
			InvoiceID:        req.ID,
			CustomerPartCode: l.CustomerPartCode,
			CarrierPartCode:  l.CarrierPartCode,
			ExpectedQuantity: l.ExpectedQuantity,
		}
	}

	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos secondary.Repositories) error {
		_, err := repos.Invoices.GetByID(ctx, req.ID)
		if err == nil {
			return fmt.Errorf("%w: %s", invoice.ErrInvoiceExists, req.ID)
		}
		if !errors.Is(err, invoice.ErrInvoiceNotFound) {
			return err
		}
		return repos.Invoices.Create(ctx, &inv, lines)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	requestLogger(ctx, s.logger).WithFields(logrus.Fields{
		"invoice_id": inv.ID,
		"lines":      len(lines),
	}).Info("invoice created")
	return &primary.InvoiceDetail{Invoice: inv, Lines: lines}, nil
}

// GetInvoice retrieves an invoice with its lines.
func (s *InvoiceServiceImpl) GetInvoice(ctx context.Context, invoiceID string) (*primary.InvoiceDetail, error) {
	repos := s.store.Repositories()
	inv, err := repos.Invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	lines, err := repos.Invoices.ListLines(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoice lines: %w", err)
	}
	return &primary.InvoiceDetail{Invoice: *inv, Lines: lineValues(lines)}, nil
}

// ListInvoices lists invoice headers with optional filters.
func (s *InvoiceServiceImpl) ListInvoices(ctx context.Context, filters primary.InvoiceFilters) ([]*invoice.Invoice, error) {
	invoices, err := s.store.Repositories().Invoices.List(ctx, secondary.InvoiceFilters{
		Blocked:      filters.Blocked,
		CustomerName: filters.CustomerName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

// GetProgress summarizes scanning progress of an invoice.
func (s *InvoiceServiceImpl) GetProgress(ctx context.Context, invoiceID string) (*primary.InvoiceProgress, error) {
	detail, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	loads, err := loadProgress(ctx, s.store.Repositories(), detail.Lines)
	if err != nil {
		return nil, fmt.Errorf("failed to compute loading progress: %w", err)
	}

	progress := &primary.InvoiceProgress{
		InvoiceID:       detail.Invoice.ID,
		Blocked:         detail.Invoice.Blocked,
		AuditComplete:   detail.Invoice.AuditComplete,
		LoadingComplete: detail.Invoice.LoadingComplete,
		Lines:           make([]primary.LineProgress, len(detail.Lines)),
	}

	var expectedQty, customerQty, carrierQty, expectedBins, loadedBins int
	for i, l := range detail.Lines {
		progress.Lines[i] = primary.LineProgress{
			LineID:           l.ID,
			CustomerPartCode: l.CustomerPartCode,
			ExpectedQuantity: l.ExpectedQuantity,
			ExpectedBins:     loads[i].ExpectedBins,
			LoadedBins:       loads[i].LoadedBins,
			CustomerPercent:  percent(l.CustomerScannedQuantity, l.ExpectedQuantity),
			CarrierPercent:   percent(l.CarrierScannedQuantity, l.ExpectedQuantity),
			LoadedPercent:    percent(loads[i].LoadedBins, loads[i].ExpectedBins),
		}
		expectedQty += l.ExpectedQuantity
		customerQty += l.CustomerScannedQuantity
		carrierQty += l.CarrierScannedQuantity
		expectedBins += loads[i].ExpectedBins
		loadedBins += loads[i].LoadedBins
	}
	progress.CustomerPercent = percent(customerQty, expectedQty)
	progress.CarrierPercent = percent(carrierQty, expectedQty)
	progress.LoadedPercent = percent(loadedBins, expectedBins)
	return progress, nil
}

// percent returns part/whole as a percentage rounded to two places.
// Nothing expected counts as complete.
func percent(part, whole int) decimal.Decimal {
	if whole <= 0 {
		return hundred
	}
	return decimal.NewFromInt(int64(part)).Mul(hundred).DivRound(decimal.NewFromInt(int64(whole)), 2)
}

// ImportInvoices creates every invoice found in an ingestion document.
func (s *InvoiceServiceImpl) ImportInvoices(ctx context.Context, r io.Reader) (*primary.ImportResult, error) {
	if s.source == nil {
		return nil, fmt.Errorf("no invoice source configured")
	}
	drafts, err := s.source.ReadInvoices(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoices: %w", err)
	}

	result := &primary.ImportResult{}
	for _, d := range drafts {
		req := primary.CreateInvoiceRequest{ID: d.ID, CustomerName: d.CustomerName}
		for _, l := range d.Lines {
			req.Lines = append(req.Lines, primary.CreateInvoiceLine{
				CustomerPartCode: l.CustomerPartCode,
				CarrierPartCode:  l.CarrierPartCode,
				ExpectedQuantity: l.ExpectedQuantity,
			})
		}
		if _, err := s.CreateInvoice(ctx, req); err != nil {
			if errors.Is(err, invoice.ErrInvoiceExists) {
				result.Skipped = append(result.Skipped, d.ID)
				continue
			}
			return result, fmt.Errorf("failed to import invoice %s: %w", d.ID, err)
		}
		result.Created = append(result.Created, d.ID)
	}

	requestLogger(ctx, s.logger).WithFields(logrus.Fields{
		"created": len(result.Created),
		"skipped": len(result.Skipped),
	}).Info("invoices imported")
	return result, nil
}

// Ensure InvoiceServiceImpl implements the interface
var _ primary.InvoiceService = (*InvoiceServiceImpl)(nil)
