package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/example/dispatch/internal/core/alert"
	"github.com/example/dispatch/internal/ports/primary"
)

// AlertAdapter translates alert review commands to MismatchService calls.
type AlertAdapter struct {
	service primary.MismatchService
	out     io.Writer
}

// NewAlertAdapter creates a new AlertAdapter with the given service.
func NewAlertAdapter(service primary.MismatchService, out io.Writer) *AlertAdapter {
	return &AlertAdapter{service: service, out: out}
}

// List lists alerts with optional filters.
func (a *AlertAdapter) List(ctx context.Context, filters primary.AlertFilters) error {
	alerts, err := a.service.ListAlerts(ctx, filters)
	if err != nil {
		return fmt.Errorf("failed to list alerts: %w", err)
	}

	if len(alerts) == 0 {
		fmt.Fprintln(a.out, "No alerts found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-42s %-15s %-9s %-9s %s\n", "ID", "INVOICE", "STAGE", "STATUS", "CREATED")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────────────────────────────────────────────")
	for _, al := range alerts {
		fmt.Fprintf(a.out, "%-42s %-15s %-9s %-9s %s\n", al.ID, al.InvoiceID, al.Stage(), alertStatusLabel(al.Status), al.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(a.out)

	return nil
}

// Show displays a single alert with its label snapshots.
func (a *AlertAdapter) Show(ctx context.Context, alertID string) error {
	al, err := a.service.GetAlert(ctx, alertID)
	if err != nil {
		return fmt.Errorf("failed to get alert: %w", err)
	}

	fmt.Fprintf(a.out, "\nAlert:   %s\n", al.ID)
	fmt.Fprintf(a.out, "Invoice: %s line %s\n", al.InvoiceID, al.LineID)
	fmt.Fprintf(a.out, "Step:    %s (%s stage)\n", al.Step, al.Stage())
	fmt.Fprintf(a.out, "Status:  %s\n", alertStatusLabel(al.Status))
	if al.CustomerSnapshot != "" {
		fmt.Fprintf(a.out, "Customer label: %q\n", al.CustomerSnapshot)
	}
	if al.CarrierSnapshot != "" {
		fmt.Fprintf(a.out, "Carrier label:  %q\n", al.CarrierSnapshot)
	}
	fmt.Fprintf(a.out, "Created: %s\n", al.CreatedAt.Format("2006-01-02 15:04:05"))
	if al.ReviewedBy != "" {
		fmt.Fprintf(a.out, "Reviewed by %s at %s\n", al.ReviewedBy, al.ReviewedAt.Format("2006-01-02 15:04:05"))
		if al.ReviewNote != "" {
			fmt.Fprintf(a.out, "Note: %s\n", al.ReviewNote)
		}
	}
	fmt.Fprintln(a.out)

	return nil
}

// Approve approves an alert, rolling back the pending scan it guards.
func (a *AlertAdapter) Approve(ctx context.Context, alertID, reviewer, note string) error {
	result, err := a.service.ApproveAlert(ctx, primary.ResolveAlertRequest{AlertID: alertID, ReviewedBy: reviewer, Note: note})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Alert %s approved\n", result.Alert.ID)
	for _, id := range result.RolledBack {
		fmt.Fprintf(a.out, "  Rolled back pending scan %s\n", id)
	}
	if result.Unblocked {
		fmt.Fprintf(a.out, "  Invoice %s unblocked\n", result.Alert.InvoiceID)
	} else {
		fmt.Fprintf(a.out, "  Invoice %s stays blocked: other alerts are still open\n", result.Alert.InvoiceID)
	}
	return nil
}

// Reject rejects an alert. The invoice stays blocked.
func (a *AlertAdapter) Reject(ctx context.Context, alertID, reviewer, note string) error {
	al, err := a.service.RejectAlert(ctx, primary.ResolveAlertRequest{AlertID: alertID, ReviewedBy: reviewer, Note: note})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Alert %s rejected, invoice %s stays blocked\n", al.ID, al.InvoiceID)
	return nil
}

func alertStatusLabel(status alert.Status) string {
	switch status {
	case alert.StatusPending:
		return color.New(color.FgYellow).Sprint(status)
	case alert.StatusRejected:
		return color.New(color.FgRed).Sprint(status)
	}
	return string(status)
}
