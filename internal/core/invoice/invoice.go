// Package invoice contains the pure business logic for invoices and their
// expected line items: line matching, counter arithmetic and completion rules.
// This is part of the Functional Core - no I/O, only pure functions.
package invoice

import (
	"errors"
	"fmt"
	"time"
)

// Errors for invoice lookup and line matching.
var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrInvoiceExists   = errors.New("invoice already exists")
	ErrInvoiceBlocked  = errors.New("invoice is blocked")
	ErrLineNotFound    = errors.New("invoice line not found")
	ErrNoMatch         = errors.New("no invoice line matches")
	ErrAmbiguousMatch  = errors.New("more than one invoice line matches")
)

// Invoice is the aggregate header of a shipment invoice.
type Invoice struct {
	ID              string
	CustomerName    string
	Blocked         bool
	BlockedAt       time.Time // zero when not blocked
	AuditComplete   bool
	LoadingComplete bool
	CreatedAt       time.Time
}

// Line is one expected shipment of a part for an invoice, with its counters.
type Line struct {
	ID               string
	InvoiceID        string
	CustomerPartCode string
	CarrierPartCode  string
	ExpectedQuantity int
	NumberOfBins     int // 0 until derived from the first customer scan

	CustomerScannedQuantity int
	CustomerScannedBins     int
	CarrierScannedQuantity  int
	CarrierScannedBins      int
	LoadedBins              int
}

// Draft is an invoice as delivered by an ingestion source, before IDs are assigned.
type Draft struct {
	ID           string
	CustomerName string
	Lines        []DraftLine
}

// DraftLine is one expected line of a Draft.
type DraftLine struct {
	CustomerPartCode string
	CarrierPartCode  string
	ExpectedQuantity int
}

// LineID returns the ID of the n-th (1-based) line of an invoice.
func LineID(invoiceID string, n int) string {
	return fmt.Sprintf("%s-L%03d", invoiceID, n)
}

// CheckOpen rejects any scan against a blocked invoice.
func CheckOpen(inv Invoice) error {
	if inv.Blocked {
		return fmt.Errorf("%w: %s is frozen until an administrator resolves its alert", ErrInvoiceBlocked, inv.ID)
	}
	return nil
}

// MatchCustomerPart resolves the single line carrying the customer part code.
func MatchCustomerPart(lines []Line, customerPart string) (Line, error) {
	return matchOne(lines, func(l Line) bool {
		return l.CustomerPartCode == customerPart
	}, fmt.Sprintf("customer part %q", customerPart))
}

// MatchCarrierPart resolves the single line carrying the carrier part code.
func MatchCarrierPart(lines []Line, carrierPart string) (Line, error) {
	return matchOne(lines, func(l Line) bool {
		return l.CarrierPartCode == carrierPart
	}, fmt.Sprintf("carrier part %q", carrierPart))
}

// MatchBothParts resolves the single line carrying both part codes.
func MatchBothParts(lines []Line, customerPart, carrierPart string) (Line, error) {
	return matchOne(lines, func(l Line) bool {
		return l.CustomerPartCode == customerPart && l.CarrierPartCode == carrierPart
	}, fmt.Sprintf("customer part %q and carrier part %q", customerPart, carrierPart))
}

func matchOne(lines []Line, pred func(Line) bool, what string) (Line, error) {
	var found []Line
	for _, l := range lines {
		if pred(l) {
			found = append(found, l)
		}
	}
	switch len(found) {
	case 0:
		return Line{}, fmt.Errorf("%w %s", ErrNoMatch, what)
	case 1:
		return found[0], nil
	default:
		return Line{}, fmt.Errorf("%w %s (%d lines)", ErrAmbiguousMatch, what, len(found))
	}
}

// NumberOfBins derives the bin count of a line from its expected quantity
// and the quantity of one bin. Returns 0 when it cannot be derived.
func NumberOfBins(expectedQuantity, binQuantity int) int {
	if binQuantity <= 0 || expectedQuantity <= 0 {
		return 0
	}
	return (expectedQuantity + binQuantity - 1) / binQuantity
}

// ApplyCustomerScan adds one accepted customer-side bin to the line.
func ApplyCustomerScan(l Line, binQuantity int) Line {
	l.CustomerScannedQuantity += binQuantity
	l.CustomerScannedBins++
	if l.NumberOfBins == 0 {
		l.NumberOfBins = NumberOfBins(l.ExpectedQuantity, binQuantity)
	}
	return l
}

// ApplyCarrierScan adds one accepted carrier-side bin to the line.
func ApplyCarrierScan(l Line, binQuantity int) Line {
	l.CarrierScannedQuantity += binQuantity
	l.CarrierScannedBins++
	return l
}

// RollbackCustomerScan removes one customer-side bin from the line.
// Counters never go below zero.
func RollbackCustomerScan(l Line, binQuantity int) Line {
	l.CustomerScannedQuantity -= binQuantity
	if l.CustomerScannedQuantity < 0 {
		l.CustomerScannedQuantity = 0
	}
	if l.CustomerScannedBins > 0 {
		l.CustomerScannedBins--
	}
	return l
}

// ApplyLoad adds one loaded bin to the line.
func ApplyLoad(l Line) Line {
	l.LoadedBins++
	return l
}

// RemoveLoad removes one loaded bin from the line.
func RemoveLoad(l Line) Line {
	if l.LoadedBins > 0 {
		l.LoadedBins--
	}
	return l
}

// WouldOverScanCustomer reports whether adding binQuantity on the customer
// side would exceed the expected quantity.
func WouldOverScanCustomer(l Line, binQuantity int) bool {
	return l.CustomerScannedQuantity+binQuantity > l.ExpectedQuantity
}

// WouldOverScanCarrier reports whether adding binQuantity on the carrier
// side would exceed the expected quantity.
func WouldOverScanCarrier(l Line, binQuantity int) bool {
	return l.CarrierScannedQuantity+binQuantity > l.ExpectedQuantity
}

// LineAudited reports whether both sides of the line are fully scanned.
func LineAudited(l Line) bool {
	return l.ExpectedQuantity == l.CustomerScannedQuantity &&
		l.ExpectedQuantity == l.CarrierScannedQuantity
}

// AuditComplete reports whether every line of an invoice is fully audited.
// An invoice without lines is never complete.
func AuditComplete(lines []Line) bool {
	if len(lines) == 0 {
		return false
	}
	for _, l := range lines {
		if !LineAudited(l) {
			return false
		}
	}
	return true
}

// ExpectedBins returns how many bins a line should load, by priority:
// carrier-confirmed bins, then the derived bin count, then the distinct
// customer bins recorded during audit.
func ExpectedBins(l Line, auditDistinctBins int) int {
	if l.CarrierScannedBins > 0 {
		return l.CarrierScannedBins
	}
	if l.NumberOfBins > 0 {
		return l.NumberOfBins
	}
	return auditDistinctBins
}

// NeedsAuditBinCount reports whether ExpectedBins falls through to the
// audit distinct-bin count for this line.
func NeedsAuditBinCount(l Line) bool {
	return l.CarrierScannedBins == 0 && l.NumberOfBins == 0
}

// LoadProgress is the loading view of one line.
type LoadProgress struct {
	LineID       string
	ExpectedBins int
	LoadedBins   int
}

// LoadingComplete reports whether every line has loaded all its expected
// bins. Lines with no known expected bin count keep the invoice incomplete.
func LoadingComplete(progress []LoadProgress) bool {
	if len(progress) == 0 {
		return false
	}
	for _, p := range progress {
		if p.ExpectedBins == 0 || p.LoadedBins < p.ExpectedBins {
			return false
		}
	}
	return true
}
