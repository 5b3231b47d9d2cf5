package scan

import (
	"errors"
	"fmt"

	"github.com/example/dispatch/internal/core/alert"
	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/core/label"
)

// Scan errors. Parse errors live in package label, matching errors on
// invoice lines in package invoice.
var (
	ErrNoPendingCustomerScan = errors.New("no pending customer scan to pair")
	ErrQuantityMismatch      = errors.New("customer and carrier quantities differ")
	ErrDuplicateScan         = errors.New("bin already scanned")
	ErrOverScan              = errors.New("over-scan")
	ErrScanNotFound          = errors.New("scan not found")
	ErrNotPending            = errors.New("scan is not pending")
	ErrNotDeletable          = errors.New("only loading scans can be deleted")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrDispatchInProgress    = errors.New("vehicle dispatch already in progress")
)

// OverScanError is returned after an over-scan has raised an alert and
// blocked the invoice.
type OverScanError struct {
	AlertID   string
	InvoiceID string
	LineID    string
	Step      alert.Step
}

func (e *OverScanError) Error() string {
	return fmt.Sprintf("%s on invoice %s line %s: raised alert %s (%s), invoice blocked",
		ErrOverScan, e.InvoiceID, e.LineID, e.AlertID, e.Step)
}

// Is lets errors.Is match ErrOverScan.
func (e *OverScanError) Is(target error) bool {
	return target == ErrOverScan
}

// Class groups errors by how callers should react to them.
type Class string

const (
	ClassParse    Class = "parse"
	ClassMatching Class = "matching"
	ClassBusiness Class = "business"
	ClassOverScan Class = "over_scan"
	ClassBlocked  Class = "blocked"
	ClassNotFound Class = "not_found"
	ClassConflict Class = "conflict"
	ClassInvalid  Class = "invalid"
	ClassInternal Class = "internal"
)

// Classify maps an error returned by a scan, loading or resolution
// operation to its class. Unknown errors are internal.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, label.ErrTooShort),
		errors.Is(err, label.ErrInvalidQuantity),
		errors.Is(err, label.ErrEmptySegment),
		errors.Is(err, label.ErrMissingMarker),
		errors.Is(err, label.ErrUnparseable):
		return ClassParse
	case errors.Is(err, ErrOverScan):
		return ClassOverScan
	case errors.Is(err, invoice.ErrInvoiceBlocked):
		return ClassBlocked
	case errors.Is(err, invoice.ErrNoMatch),
		errors.Is(err, invoice.ErrAmbiguousMatch),
		errors.Is(err, ErrNoPendingCustomerScan):
		return ClassMatching
	case errors.Is(err, ErrQuantityMismatch),
		errors.Is(err, ErrDuplicateScan):
		return ClassBusiness
	case errors.Is(err, invoice.ErrInvoiceNotFound),
		errors.Is(err, invoice.ErrLineNotFound),
		errors.Is(err, ErrScanNotFound),
		errors.Is(err, alert.ErrAlertNotFound):
		return ClassNotFound
	case errors.Is(err, alert.ErrAlertResolved),
		errors.Is(err, invoice.ErrInvoiceExists),
		errors.Is(err, ErrNotDeletable),
		errors.Is(err, ErrNotPending),
		errors.Is(err, ErrDispatchInProgress):
		return ClassConflict
	case errors.Is(err, ErrInvalidRequest):
		return ClassInvalid
	}
	return ClassInternal
}

// Blocking reports whether an error froze the invoice.
func Blocking(err error) bool {
	return errors.Is(err, ErrOverScan)
}
