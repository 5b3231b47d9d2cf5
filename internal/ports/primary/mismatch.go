package primary

import (
	"context"

	"github.com/example/dispatch/internal/core/alert"
)

// MismatchService defines the primary port for administrative alert resolution.
type MismatchService interface {
	// ApproveAlert approves an alert, rolling back unpaired customer scans
	// for customer-stage steps and unblocking the invoice.
	ApproveAlert(ctx context.Context, req ResolveAlertRequest) (*ApproveResult, error)

	// RejectAlert rejects an alert. The invoice stays blocked.
	RejectAlert(ctx context.Context, req ResolveAlertRequest) (*alert.Alert, error)

	// GetAlert retrieves an alert by ID.
	GetAlert(ctx context.Context, alertID string) (*alert.Alert, error)

	// ListAlerts lists alerts with optional filters.
	ListAlerts(ctx context.Context, filters AlertFilters) ([]*alert.Alert, error)
}

// ResolveAlertRequest contains parameters for approving or rejecting an alert.
type ResolveAlertRequest struct {
	AlertID    string `validate:"required"`
	ReviewedBy string `validate:"required"`
	Note       string
}

// ApproveResult is the outcome of an approval.
type ApproveResult struct {
	Alert      alert.Alert
	RolledBack []string // IDs of deleted pending scans
	Unblocked  bool
}

// AlertFilters contains filter options for listing alerts.
type AlertFilters struct {
	InvoiceID string
	Status    alert.Status
}
