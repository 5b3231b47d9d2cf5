package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/ports/primary"
)

// InvoiceAdapter translates invoice commands to InvoiceService calls.
type InvoiceAdapter struct {
	service primary.InvoiceService
	out     io.Writer
}

// NewInvoiceAdapter creates a new InvoiceAdapter with the given service.
func NewInvoiceAdapter(service primary.InvoiceService, out io.Writer) *InvoiceAdapter {
	return &InvoiceAdapter{
		service: service,
		out:     out,
	}
}

// Create creates an invoice.
func (a *InvoiceAdapter) Create(ctx context.Context, req primary.CreateInvoiceRequest) error {
	detail, err := a.service.CreateInvoice(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Created invoice %s with %d lines\n", detail.Invoice.ID, len(detail.Lines))
	return nil
}

// List lists invoices.
func (a *InvoiceAdapter) List(ctx context.Context, filters primary.InvoiceFilters) error {
	invoices, err := a.service.ListInvoices(ctx, filters)
	if err != nil {
		return fmt.Errorf("failed to list invoices: %w", err)
	}

	if len(invoices) == 0 {
		fmt.Fprintln(a.out, "No invoices found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-15s %-9s %-6s %-8s %s\n", "ID", "STATE", "AUDIT", "LOADED", "CUSTOMER")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────────────────")
	for _, inv := range invoices {
		fmt.Fprintf(a.out, "%-15s %-9s %-6s %-8s %s\n", inv.ID, stateLabel(inv), plainYesNo(inv.AuditComplete), plainYesNo(inv.LoadingComplete), inv.CustomerName)
	}
	fmt.Fprintln(a.out)

	return nil
}

// Show displays an invoice with its per-line progress.
func (a *InvoiceAdapter) Show(ctx context.Context, invoiceID string) error {
	progress, err := a.service.GetProgress(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to get invoice: %w", err)
	}
	detail, err := a.service.GetInvoice(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to get invoice: %w", err)
	}
	inv := detail.Invoice

	fmt.Fprintf(a.out, "\nInvoice:  %s\n", inv.ID)
	if inv.CustomerName != "" {
		fmt.Fprintf(a.out, "Customer: %s\n", inv.CustomerName)
	}
	if inv.Blocked {
		fmt.Fprintf(a.out, "State:    %s since %s\n", color.New(color.FgRed, color.Bold).Sprint("BLOCKED"), inv.BlockedAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Fprintln(a.out, "State:    open")
	}
	fmt.Fprintf(a.out, "Audit:    %s (customer %s%%, carrier %s%%)\n", yesNo(progress.AuditComplete),
		progress.CustomerPercent.StringFixed(1), progress.CarrierPercent.StringFixed(1))
	fmt.Fprintf(a.out, "Loading:  %s (%s%%)\n", yesNo(progress.LoadingComplete), progress.LoadedPercent.StringFixed(1))

	fmt.Fprintf(a.out, "\n%-15s %-15s %-15s %9s %9s %9s %7s\n", "LINE", "CUSTOMER PART", "CARRIER PART", "EXPECTED", "CUSTOMER", "CARRIER", "LOADED")
	for i, l := range detail.Lines {
		loaded := "-"
		if i < len(progress.Lines) {
			lp := progress.Lines[i]
			loaded = fmt.Sprintf("%d/%d", lp.LoadedBins, lp.ExpectedBins)
		}
		fmt.Fprintf(a.out, "%-15s %-15s %-15s %9d %9d %9d %7s\n", l.ID, l.CustomerPartCode, l.CarrierPartCode,
			l.ExpectedQuantity, l.CustomerScannedQuantity, l.CarrierScannedQuantity, loaded)
	}
	fmt.Fprintln(a.out)

	return nil
}

// Import creates invoices from a workbook.
func (a *InvoiceAdapter) Import(ctx context.Context, r io.Reader) error {
	result, err := a.service.ImportInvoices(ctx, r)
	if err != nil {
		return fmt.Errorf("failed to import invoices: %w", err)
	}

	for _, id := range result.Created {
		fmt.Fprintf(a.out, "✓ Created invoice %s\n", id)
	}
	for _, id := range result.Skipped {
		fmt.Fprintf(a.out, "%s Skipped invoice %s (already exists)\n", color.New(color.FgYellow).Sprint("!"), id)
	}
	fmt.Fprintf(a.out, "Imported %d, skipped %d\n", len(result.Created), len(result.Skipped))
	return nil
}

func stateLabel(inv *invoice.Invoice) string {
	if inv.Blocked {
		return color.New(color.FgRed).Sprintf("%-9s", "BLOCKED")
	}
	return "open"
}

func plainYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
