package primary

import (
	"context"
	"io"

	"github.com/shopspring/decimal"

	"github.com/example/dispatch/internal/core/invoice"
)

// InvoiceService defines the primary port for invoice ingestion and queries.
type InvoiceService interface {
	// CreateInvoice stores an invoice with its expected lines.
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceDetail, error)

	// GetInvoice retrieves an invoice with its lines.
	GetInvoice(ctx context.Context, invoiceID string) (*InvoiceDetail, error)

	// ListInvoices lists invoice headers with optional filters.
	ListInvoices(ctx context.Context, filters InvoiceFilters) ([]*invoice.Invoice, error)

	// GetProgress summarizes scanning progress of an invoice.
	GetProgress(ctx context.Context, invoiceID string) (*InvoiceProgress, error)

	// ImportInvoices creates every invoice found in an ingestion document.
	// Invoices that already exist are skipped.
	ImportInvoices(ctx context.Context, r io.Reader) (*ImportResult, error)
}

// CreateInvoiceRequest contains parameters for creating an invoice.
type CreateInvoiceRequest struct {
	ID           string              `validate:"required,max=64"`
	CustomerName string              `validate:"max=200"`
	Lines        []CreateInvoiceLine `validate:"required,min=1,dive"`
}

// CreateInvoiceLine is one expected line of a new invoice.
type CreateInvoiceLine struct {
	CustomerPartCode string `validate:"required,max=15"`
	CarrierPartCode  string `validate:"required"`
	ExpectedQuantity int    `validate:"gte=0"`
}

// InvoiceDetail is an invoice with its lines.
type InvoiceDetail struct {
	Invoice invoice.Invoice
	Lines   []invoice.Line
}

// InvoiceFilters contains filter options for listing invoices.
type InvoiceFilters struct {
	Blocked      *bool
	CustomerName string
}

// InvoiceProgress summarizes scanning progress of an invoice.
type InvoiceProgress struct {
	InvoiceID       string
	Blocked         bool
	AuditComplete   bool
	LoadingComplete bool
	Lines           []LineProgress
	CustomerPercent decimal.Decimal
	CarrierPercent  decimal.Decimal
	LoadedPercent   decimal.Decimal
}

// LineProgress summarizes scanning progress of one line.
type LineProgress struct {
	LineID           string
	CustomerPartCode string
	ExpectedQuantity int
	ExpectedBins     int
	LoadedBins       int
	CustomerPercent  decimal.Decimal
	CarrierPercent   decimal.Decimal
	LoadedPercent    decimal.Decimal
}

// ImportResult is the outcome of an invoice import.
type ImportResult struct {
	Created []string
	Skipped []string
}
