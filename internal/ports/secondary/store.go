// Package secondary defines the secondary ports (driven adapters) of the
// dispatch system: the transactional store, event publishing, distributed
// locking and invoice ingestion.
package secondary

import (
	"context"
	"time"

	"github.com/example/dispatch/internal/core/alert"
	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/core/scan"
)

// Store is the transactional entry point to persistence.
type Store interface {
	// WithTransaction runs fn inside one transaction. The transaction commits
	// when fn returns nil and rolls back on any error or panic.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error

	// Repositories returns repositories for reads outside a transaction.
	Repositories() Repositories
}

// Repositories groups the repositories bound to one transaction.
type Repositories struct {
	Invoices InvoiceRepository
	Scans    ScanRepository
	Alerts   AlertRepository
}

// InvoiceRepository defines the secondary port for invoice and line persistence.
type InvoiceRepository interface {
	// Create persists an invoice with its lines.
	Create(ctx context.Context, inv *invoice.Invoice, lines []invoice.Line) error

	// GetByID retrieves an invoice header. Returns invoice.ErrInvoiceNotFound.
	GetByID(ctx context.Context, id string) (*invoice.Invoice, error)

	// GetForUpdate retrieves an invoice header and locks it for the
	// rest of the transaction.
	GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error)

	// List retrieves invoice headers matching the given filters.
	List(ctx context.Context, filters InvoiceFilters) ([]*invoice.Invoice, error)

	// ListLines retrieves the lines of an invoice in line order.
	ListLines(ctx context.Context, invoiceID string) ([]*invoice.Line, error)

	// GetLine retrieves a single line. Returns invoice.ErrLineNotFound.
	GetLine(ctx context.Context, lineID string) (*invoice.Line, error)

	// UpdateLineCounters writes a line's number of bins and counters.
	UpdateLineCounters(ctx context.Context, line *invoice.Line) error

	// SetBlocked sets or clears the invoice block.
	SetBlocked(ctx context.Context, invoiceID string, blocked bool, at time.Time) error

	// SetAuditComplete stores the recomputed audit completion flag.
	SetAuditComplete(ctx context.Context, invoiceID string, complete bool) error

	// SetLoadingComplete stores the recomputed loading completion flag.
	SetLoadingComplete(ctx context.Context, invoiceID string, complete bool) error
}

// InvoiceFilters contains filter options for querying invoices.
type InvoiceFilters struct {
	Blocked      *bool
	CustomerName string
}

// ScanRepository defines the secondary port for scan persistence.
type ScanRepository interface {
	// Create persists a new scan.
	Create(ctx context.Context, s *scan.Scan) error

	// GetByID retrieves a scan. Returns scan.ErrScanNotFound.
	GetByID(ctx context.Context, id string) (*scan.Scan, error)

	// Update writes the lifecycle state of an existing scan.
	Update(ctx context.Context, s *scan.Scan) error

	// Delete removes a scan.
	Delete(ctx context.Context, id string) error

	// LatestPendingForUpdate returns the most recent pending customer-stage
	// audit scan of a line, locked for the rest of the transaction.
	// Returns nil without error when there is none.
	LatestPendingForUpdate(ctx context.Context, lineID string) (*scan.Scan, error)

	// LatestPending returns the most recent pending customer-stage audit
	// scan of a line without locking. Returns nil without error when there is none.
	LatestPending(ctx context.Context, lineID string) (*scan.Scan, error)

	// BinRecorded reports whether a bin was already recorded on a line.
	BinRecorded(ctx context.Context, q BinQuery) (bool, error)

	// CountByLine counts the scans of a line in a context.
	CountByLine(ctx context.Context, lineID string, scanCtx scan.Context) (int, error)

	// CountDistinctCustomerBins counts distinct customer bin IDs of a line in a context.
	CountDistinctCustomerBins(ctx context.Context, lineID string, scanCtx scan.Context) (int, error)

	// ListPendingByInvoice lists the pending customer-stage audit scans of an invoice.
	ListPendingByInvoice(ctx context.Context, invoiceID string) ([]*scan.Scan, error)

	// List retrieves scans matching the given filters, oldest first.
	List(ctx context.Context, filters ScanFilters) ([]*scan.Scan, error)
}

// Side selects which label of a scan a BinQuery inspects.
type Side string

const (
	SideCustomer Side = "customer"
	SideCarrier  Side = "carrier"
)

// BinQuery identifies a bin on a line. A row matches when its bin ID on
// the given side equals BinID or its payload equals any of Payloads.
type BinQuery struct {
	LineID   string
	Context  scan.Context
	Side     Side
	BinID    string
	Payloads []string
}

// ScanFilters contains filter options for querying scans.
type ScanFilters struct {
	InvoiceID string
	LineID    string
	Context   scan.Context
	Status    scan.Status
}

// AlertRepository defines the secondary port for mismatch alert persistence.
type AlertRepository interface {
	// Create persists a new alert.
	Create(ctx context.Context, a *alert.Alert) error

	// GetByID retrieves an alert. Returns alert.ErrAlertNotFound.
	GetByID(ctx context.Context, id string) (*alert.Alert, error)

	// GetForUpdate retrieves an alert and locks it for the rest of the transaction.
	GetForUpdate(ctx context.Context, id string) (*alert.Alert, error)

	// UpdateReview writes the status and review fields of an alert.
	UpdateReview(ctx context.Context, a *alert.Alert) error

	// List retrieves alerts matching the given filters, newest first.
	List(ctx context.Context, filters AlertFilters) ([]*alert.Alert, error)

	// CountOpen counts the alerts of an invoice that still hold its block:
	// pending alerts and rejected ones not yet approved.
	CountOpen(ctx context.Context, invoiceID string) (int, error)
}

// AlertFilters contains filter options for querying alerts.
type AlertFilters struct {
	InvoiceID string
	Status    alert.Status
}
