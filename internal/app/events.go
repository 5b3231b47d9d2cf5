package app

import (
	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/core/scan"
)

// Event payloads. They exist for UI refresh only and carry no stability
// guarantee.

type scanAcceptedEvent struct {
	InvoiceID               string `json:"invoice_id"`
	LineID                  string `json:"line_id"`
	ScanID                  string `json:"scan_id"`
	Context                 string `json:"context"`
	Stage                   string `json:"stage"`
	ExpectedQuantity        int    `json:"expected_quantity"`
	CustomerScannedQuantity int    `json:"customer_scanned_quantity"`
	CustomerScannedBins     int    `json:"customer_scanned_bins"`
	CarrierScannedQuantity  int    `json:"carrier_scanned_quantity"`
	CarrierScannedBins      int    `json:"carrier_scanned_bins"`
	LoadedBins              int    `json:"loaded_bins"`
	Complete                bool   `json:"complete"`
}

type scanRejectedEvent struct {
	InvoiceID string `json:"invoice_id"`
	Context   string `json:"context"`
	Class     string `json:"class"`
	Reason    string `json:"reason"`
}

type invoiceBlockedEvent struct {
	InvoiceID string `json:"invoice_id"`
	LineID    string `json:"line_id"`
	AlertID   string `json:"alert_id"`
	Step      string `json:"step"`
}

type alertResolvedEvent struct {
	AlertID    string `json:"alert_id"`
	InvoiceID  string `json:"invoice_id"`
	Status     string `json:"status"`
	Unblocked  bool   `json:"unblocked"`
	RolledBack int    `json:"rolled_back"`
}

func acceptedEvent(s scan.Scan, line invoice.Line, complete bool) scanAcceptedEvent {
	return scanAcceptedEvent{
		InvoiceID:               s.InvoiceID,
		LineID:                  line.ID,
		ScanID:                  s.ID,
		Context:                 string(s.Context),
		Stage:                   string(s.Stage()),
		ExpectedQuantity:        line.ExpectedQuantity,
		CustomerScannedQuantity: line.CustomerScannedQuantity,
		CustomerScannedBins:     line.CustomerScannedBins,
		CarrierScannedQuantity:  line.CarrierScannedQuantity,
		CarrierScannedBins:      line.CarrierScannedBins,
		LoadedBins:              line.LoadedBins,
		Complete:                complete,
	}
}

func rejectedEvent(invoiceID string, scanCtx scan.Context, err error) scanRejectedEvent {
	return scanRejectedEvent{
		InvoiceID: invoiceID,
		Context:   string(scanCtx),
		Class:     string(scan.Classify(err)),
		Reason:    err.Error(),
	}
}

func blockedEvent(e *scan.OverScanError) invoiceBlockedEvent {
	return invoiceBlockedEvent{
		InvoiceID: e.InvoiceID,
		LineID:    e.LineID,
		AlertID:   e.AlertID,
		Step:      string(e.Step),
	}
}
