package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/example/dispatch/internal/core/scan"
	"github.com/example/dispatch/internal/ports/primary"
)

// ScanAdapter translates scan commands to the audit and loading services.
type ScanAdapter struct {
	audit   primary.AuditService
	loading primary.LoadingService
	out     io.Writer
}

// NewScanAdapter creates a new ScanAdapter.
func NewScanAdapter(audit primary.AuditService, loading primary.LoadingService, out io.Writer) *ScanAdapter {
	return &ScanAdapter{audit: audit, loading: loading, out: out}
}

// Customer records a customer-side audit scan.
func (a *ScanAdapter) Customer(ctx context.Context, invoiceID, payload, operator string) error {
	result, err := a.audit.RecordCustomerScan(ctx, primary.CustomerScanRequest{
		InvoiceID: invoiceID,
		Payload:   payload,
		ScannedBy: operator,
	})
	if err != nil {
		return printRejection(a.out, err)
	}
	a.printAudit(result, "customer bin recorded, awaiting carrier label")
	return nil
}

// Carrier records a carrier-side audit scan. An empty customerPayload
// resumes against the latest pending customer scan of the line.
func (a *ScanAdapter) Carrier(ctx context.Context, invoiceID, carrierPayload, customerPayload, operator string) error {
	result, err := a.audit.RecordCarrierScan(ctx, primary.CarrierScanRequest{
		InvoiceID:       invoiceID,
		CarrierPayload:  carrierPayload,
		CustomerPayload: customerPayload,
		ScannedBy:       operator,
	})
	if err != nil {
		return printRejection(a.out, err)
	}
	note := "bin paired"
	if result.Resumed {
		note = "bin paired with pending customer scan"
	}
	a.printAudit(result, note)
	return nil
}

// Pair records both labels of a bin at once.
func (a *ScanAdapter) Pair(ctx context.Context, invoiceID, customerPayload, carrierPayload, operator string) error {
	result, err := a.audit.RecordPairedScan(ctx, primary.PairedScanRequest{
		InvoiceID:       invoiceID,
		CustomerPayload: customerPayload,
		CarrierPayload:  carrierPayload,
		ScannedBy:       operator,
	})
	if err != nil {
		return printRejection(a.out, err)
	}
	a.printAudit(result, "bin paired")
	return nil
}

func (a *ScanAdapter) printAudit(result *primary.ScanResult, note string) {
	s, l := result.Scan, result.Line
	fmt.Fprintf(a.out, "%s ACCEPTED %s: %s\n", acceptedMark, s.ID, note)
	fmt.Fprintf(a.out, "  Line %s (%s): bin %s qty %d\n", l.ID, l.CustomerPartCode, s.CustomerBinID, s.BinQuantity)
	fmt.Fprintf(a.out, "  Customer %d/%d qty, %d bins   Carrier %d/%d qty, %d bins\n",
		l.CustomerScannedQuantity, l.ExpectedQuantity, l.CustomerScannedBins,
		l.CarrierScannedQuantity, l.ExpectedQuantity, l.CarrierScannedBins)
	if result.AuditComplete {
		fmt.Fprintf(a.out, "  %s\n", color.New(color.FgGreen).Sprint("Audit complete"))
	}
}

// Load records a loading scan.
func (a *ScanAdapter) Load(ctx context.Context, invoiceID, payload, operator string) error {
	result, err := a.loading.RecordLoadingScan(ctx, primary.LoadingScanRequest{
		InvoiceID: invoiceID,
		Payload:   payload,
		ScannedBy: operator,
	})
	if err != nil {
		return printRejection(a.out, err)
	}
	a.printLoad(*result)
	return nil
}

func (a *ScanAdapter) printLoad(result primary.LoadingResult) {
	fmt.Fprintf(a.out, "%s LOADED %s: bin %s on line %s (%d/%d bins)\n",
		acceptedMark, result.Scan.ID, result.Scan.CustomerBinID, result.Line.ID, result.LoadedBins, result.ExpectedBins)
	if result.LoadingComplete {
		fmt.Fprintf(a.out, "  %s\n", color.New(color.FgGreen).Sprintf("Invoice %s fully loaded", result.Scan.InvoiceID))
	}
}

// DeleteLoad removes a loading scan.
func (a *ScanAdapter) DeleteLoad(ctx context.Context, scanID, operator string) error {
	err := a.loading.DeleteLoadingScan(ctx, primary.DeleteLoadingScanRequest{ScanID: scanID, DeletedBy: operator})
	if err != nil {
		return printRejection(a.out, err)
	}
	fmt.Fprintf(a.out, "✓ Loading scan %s deleted\n", scanID)
	return nil
}

// Dispatch loads several bins onto a vehicle as one unit. invoiceIDs and
// payloads are paired by position.
func (a *ScanAdapter) Dispatch(ctx context.Context, vehicleID string, invoiceIDs, payloads []string, operator string) error {
	if len(invoiceIDs) != len(payloads) {
		return fmt.Errorf("got %d invoices for %d payloads", len(invoiceIDs), len(payloads))
	}
	req := primary.DispatchRequest{VehicleID: vehicleID, ScannedBy: operator}
	for i := range payloads {
		req.Loads = append(req.Loads, primary.DispatchLoad{InvoiceID: invoiceIDs[i], Payload: payloads[i]})
	}

	result, err := a.loading.DispatchVehicle(ctx, req)
	if err != nil {
		fmt.Fprintf(a.out, "Vehicle %s: nothing loaded\n", vehicleID)
		return printRejection(a.out, err)
	}
	fmt.Fprintf(a.out, "Vehicle %s: %d bins loaded\n", result.VehicleID, len(result.Loads))
	for _, l := range result.Loads {
		a.printLoad(l)
	}
	return nil
}

// List lists scans with optional filters.
func (a *ScanAdapter) List(ctx context.Context, filters primary.ScanFilters) error {
	scans, err := a.audit.ListScans(ctx, filters)
	if err != nil {
		return fmt.Errorf("failed to list scans: %w", err)
	}

	if len(scans) == 0 {
		fmt.Fprintln(a.out, "No scans found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-40s %-8s %-9s %-8s %-15s %4s %s\n", "ID", "CONTEXT", "STAGE", "STATUS", "BIN", "QTY", "SCANNED BY")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────────────────────────────────────────────────────")
	for _, s := range scans {
		bin := s.CustomerBinID
		if carrier, ok := s.Carrier(); ok && carrier.CarrierBinID != s.CustomerBinID {
			bin += "/" + carrier.CarrierBinID
		}
		fmt.Fprintf(a.out, "%-40s %-8s %-9s %-8s %-15s %4d %s\n", s.ID, s.Context, s.Stage(), statusLabel(s.Status()), bin, s.BinQuantity, s.ScannedBy)
	}
	fmt.Fprintln(a.out)

	return nil
}

func statusLabel(status scan.Status) string {
	if status == scan.StatusPending {
		return color.New(color.FgYellow).Sprintf("%-8s", status)
	}
	return fmt.Sprintf("%-8s", status)
}
