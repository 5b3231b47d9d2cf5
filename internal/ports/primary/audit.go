// Package primary defines the primary ports (driving use cases) of the
// dispatch system.
package primary

import (
	"context"

	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/core/scan"
)

// AuditService defines the primary port for the two-sided audit stage.
type AuditService interface {
	// RecordCustomerScan records a customer-side bin as pending.
	RecordCustomerScan(ctx context.Context, req CustomerScanRequest) (*ScanResult, error)

	// RecordCarrierScan pairs a carrier label with the line's latest pending
	// customer scan. Without a customer payload it runs in resume mode.
	RecordCarrierScan(ctx context.Context, req CarrierScanRequest) (*ScanResult, error)

	// RecordPairedScan records both labels of a bin in a single call.
	RecordPairedScan(ctx context.Context, req PairedScanRequest) (*ScanResult, error)

	// ListScans lists scans with optional filters.
	ListScans(ctx context.Context, filters ScanFilters) ([]*scan.Scan, error)
}

// CustomerScanRequest contains parameters for a customer-side scan.
type CustomerScanRequest struct {
	InvoiceID string `validate:"required"`
	Payload   string `validate:"required"`
	ScannedBy string `validate:"required"`
}

// CarrierScanRequest contains parameters for a carrier-side scan.
// CustomerPayload is empty in resume mode.
type CarrierScanRequest struct {
	InvoiceID       string `validate:"required"`
	CarrierPayload  string `validate:"required"`
	CustomerPayload string
	ScannedBy       string `validate:"required"`
}

// PairedScanRequest contains parameters for single-call recording.
type PairedScanRequest struct {
	InvoiceID       string `validate:"required"`
	CustomerPayload string `validate:"required"`
	CarrierPayload  string `validate:"required"`
	ScannedBy       string `validate:"required"`
}

// ScanResult is the outcome of an accepted audit scan.
type ScanResult struct {
	Scan          scan.Scan
	Line          invoice.Line
	AuditComplete bool
	Resumed       bool // carrier scan resolved its customer side from the pending row
}

// ScanFilters contains filter options for listing scans.
type ScanFilters struct {
	InvoiceID string
	LineID    string
	Context   scan.Context
	Status    scan.Status
}
