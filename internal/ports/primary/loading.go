package primary

import (
	"context"

	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/core/scan"
)

// LoadingService defines the primary port for the loading stage.
type LoadingService interface {
	// RecordLoadingScan validates and records one loaded bin.
	RecordLoadingScan(ctx context.Context, req LoadingScanRequest) (*LoadingResult, error)

	// DeleteLoadingScan removes a loading scan recorded by mistake.
	DeleteLoadingScan(ctx context.Context, req DeleteLoadingScanRequest) error

	// DispatchVehicle loads bins of several invoices onto one vehicle,
	// all or nothing.
	DispatchVehicle(ctx context.Context, req DispatchRequest) (*DispatchResult, error)
}

// LoadingScanRequest contains parameters for a loading scan.
type LoadingScanRequest struct {
	InvoiceID string `validate:"required"`
	Payload   string `validate:"required"`
	ScannedBy string `validate:"required"`
}

// DeleteLoadingScanRequest contains parameters for deleting a loading scan.
type DeleteLoadingScanRequest struct {
	ScanID    string `validate:"required"`
	DeletedBy string `validate:"required"`
}

// LoadingResult is the outcome of an accepted loading scan.
type LoadingResult struct {
	Scan            scan.Scan
	Line            invoice.Line
	ExpectedBins    int
	LoadedBins      int
	LoadingComplete bool
}

// DispatchRequest contains parameters for a vehicle dispatch.
type DispatchRequest struct {
	VehicleID string         `validate:"required"`
	ScannedBy string         `validate:"required"`
	Loads     []DispatchLoad `validate:"required,min=1,dive"`
}

// DispatchLoad is one bin of a vehicle dispatch.
type DispatchLoad struct {
	InvoiceID string `validate:"required"`
	Payload   string `validate:"required"`
}

// DispatchResult is the outcome of a committed vehicle dispatch.
type DispatchResult struct {
	VehicleID string
	Loads     []LoadingResult
}
