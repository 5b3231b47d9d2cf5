package scan

import (
	"fmt"

	"github.com/example/dispatch/internal/core/alert"
	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/core/label"
)

// GuardResult represents the outcome of a guard evaluation.
// Err is the sentinel the rejection maps to; Step is set when the
// rejection is an over-scan that must raise an alert.
type GuardResult struct {
	Allowed bool
	Reason  string
	Err     error
	Step    alert.Step
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	if r.Err != nil {
		return fmt.Errorf("%w: %s", r.Err, r.Reason)
	}
	return fmt.Errorf("%s", r.Reason)
}

// OverScan reports whether the rejection must raise an alert and block.
func (r GuardResult) OverScan() bool {
	return !r.Allowed && r.Step != ""
}

// CustomerScanContext provides context for audit customer-side guards.
type CustomerScanContext struct {
	Line            invoice.Line
	BinID           string
	BinQuantity     int
	AlreadyRecorded bool // bin or payload already on this line in the audit context
}

// CarrierScanContext provides context for audit carrier-side guards.
type CarrierScanContext struct {
	Line            invoice.Line
	BinID           string
	BinQuantity     int
	AlreadyRecorded bool
}

// LoadingScanContext provides context for loading-stage guards.
type LoadingScanContext struct {
	Line          invoice.Line
	BinID         string
	ExpectedBins  int
	LoadedBins    int
	AlreadyLoaded bool
}

// CanRecordCustomerScan evaluates whether a customer-side bin is accepted.
// Rules:
// - The bin must not already be recorded for the line (non-blocking)
// - Customer quantity plus the bin must not exceed the expected quantity (blocking)
func CanRecordCustomerScan(ctx CustomerScanContext) GuardResult {
	if ctx.AlreadyRecorded {
		return GuardResult{
			Reason: fmt.Sprintf("customer bin %s already recorded on line %s", ctx.BinID, ctx.Line.ID),
			Err:    ErrDuplicateScan,
		}
	}
	if invoice.WouldOverScanCustomer(ctx.Line, ctx.BinQuantity) {
		return GuardResult{
			Reason: fmt.Sprintf("line %s customer quantity %d + %d exceeds expected %d",
				ctx.Line.ID, ctx.Line.CustomerScannedQuantity, ctx.BinQuantity, ctx.Line.ExpectedQuantity),
			Err:  ErrOverScan,
			Step: alert.StepOverScanCustomer,
		}
	}
	return GuardResult{Allowed: true}
}

// CanRecordCarrierScan evaluates whether a carrier-side bin is accepted.
// Rules:
// - The carrier bin must not already be recorded for the line (non-blocking)
// - Carrier quantity plus the bin must not exceed the expected quantity (blocking)
func CanRecordCarrierScan(ctx CarrierScanContext) GuardResult {
	if ctx.AlreadyRecorded {
		return GuardResult{
			Reason: fmt.Sprintf("carrier bin %s already recorded on line %s", ctx.BinID, ctx.Line.ID),
			Err:    ErrDuplicateScan,
		}
	}
	if invoice.WouldOverScanCarrier(ctx.Line, ctx.BinQuantity) {
		return GuardResult{
			Reason: fmt.Sprintf("line %s carrier quantity %d + %d exceeds expected %d",
				ctx.Line.ID, ctx.Line.CarrierScannedQuantity, ctx.BinQuantity, ctx.Line.ExpectedQuantity),
			Err:  ErrOverScan,
			Step: alert.StepOverScanInbound,
		}
	}
	return GuardResult{Allowed: true}
}

// CanRecordLoadingScan evaluates whether a bin may be loaded.
// Rules:
// - The bin must not already be loaded for the line (non-blocking)
// - Loaded bins must stay below expected bins when expected bins are known (blocking)
func CanRecordLoadingScan(ctx LoadingScanContext) GuardResult {
	if ctx.AlreadyLoaded {
		return GuardResult{
			Reason: fmt.Sprintf("bin %s already loaded for line %s", ctx.BinID, ctx.Line.ID),
			Err:    ErrDuplicateScan,
		}
	}
	if ctx.ExpectedBins > 0 && ctx.LoadedBins >= ctx.ExpectedBins {
		return GuardResult{
			Reason: fmt.Sprintf("line %s already has %d of %d expected bins loaded",
				ctx.Line.ID, ctx.LoadedBins, ctx.ExpectedBins),
			Err:  ErrOverScan,
			Step: alert.StepOverScanLoading,
		}
	}
	return GuardResult{Allowed: true}
}

// CheckQuantities rejects a pairing whose two labels disagree on quantity.
func CheckQuantities(customer, carrier label.Parsed) error {
	if customer.Quantity != carrier.Quantity {
		return fmt.Errorf("%w: customer label says %d, carrier label says %d",
			ErrQuantityMismatch, customer.Quantity, carrier.Quantity)
	}
	return nil
}
