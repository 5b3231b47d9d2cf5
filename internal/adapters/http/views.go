package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/dispatch/internal/core/alert"
	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/core/scan"
	"github.com/example/dispatch/internal/ports/primary"
)

// Request bodies. Operator identity travels in the body.

type customerScanBody struct {
	Payload   string `json:"payload"`
	ScannedBy string `json:"scanned_by"`
}

type carrierScanBody struct {
	CarrierPayload  string `json:"carrier_payload"`
	CustomerPayload string `json:"customer_payload"`
	ScannedBy       string `json:"scanned_by"`
}

type pairedScanBody struct {
	CustomerPayload string `json:"customer_payload"`
	CarrierPayload  string `json:"carrier_payload"`
	ScannedBy       string `json:"scanned_by"`
}

type loadBody struct {
	Payload   string `json:"payload"`
	ScannedBy string `json:"scanned_by"`
}

type dispatchBody struct {
	VehicleID string `json:"vehicle_id"`
	ScannedBy string `json:"scanned_by"`
	Loads     []struct {
		InvoiceID string `json:"invoice_id"`
		Payload   string `json:"payload"`
	} `json:"loads"`
}

type resolveBody struct {
	ReviewedBy string `json:"reviewed_by"`
	Note       string `json:"note"`
}

type createInvoiceBody struct {
	ID           string `json:"id"`
	CustomerName string `json:"customer_name"`
	Lines        []struct {
		CustomerPartCode string `json:"customer_part_code"`
		CarrierPartCode  string `json:"carrier_part_code"`
		ExpectedQuantity int    `json:"expected_quantity"`
	} `json:"lines"`
}

// Response views.

type errorView struct {
	Error   string `json:"error"`
	Class   string `json:"class"`
	AlertID string `json:"alert_id,omitempty"`
}

type invoiceView struct {
	ID              string     `json:"id"`
	CustomerName    string     `json:"customer_name"`
	Blocked         bool       `json:"blocked"`
	BlockedAt       *time.Time `json:"blocked_at,omitempty"`
	AuditComplete   bool       `json:"audit_complete"`
	LoadingComplete bool       `json:"loading_complete"`
	CreatedAt       time.Time  `json:"created_at"`
	Lines           []lineView `json:"lines,omitempty"`
}

type lineView struct {
	ID                      string `json:"id"`
	CustomerPartCode        string `json:"customer_part_code"`
	CarrierPartCode         string `json:"carrier_part_code"`
	ExpectedQuantity        int    `json:"expected_quantity"`
	NumberOfBins            *int   `json:"number_of_bins"`
	CustomerScannedQuantity int    `json:"customer_scanned_quantity"`
	CustomerScannedBins     int    `json:"customer_scanned_bins"`
	CarrierScannedQuantity  int    `json:"carrier_scanned_quantity"`
	CarrierScannedBins      int    `json:"carrier_scanned_bins"`
	LoadedBins              int    `json:"loaded_bins"`
}

type scanView struct {
	ID            string     `json:"id"`
	InvoiceID     string     `json:"invoice_id"`
	LineID        string     `json:"line_id"`
	Context       string     `json:"context"`
	Stage         string     `json:"stage"`
	Status        string     `json:"status"`
	CustomerBinID string     `json:"customer_bin_id"`
	BinQuantity   int        `json:"bin_quantity"`
	ScannedBy     string     `json:"scanned_by"`
	ScannedAt     time.Time  `json:"scanned_at"`
	CarrierBinID  string     `json:"carrier_bin_id,omitempty"`
	PairedBy      string     `json:"paired_by,omitempty"`
	PairedAt      *time.Time `json:"paired_at,omitempty"`
}

type scanResultView struct {
	Scan          scanView `json:"scan"`
	Line          lineView `json:"line"`
	AuditComplete bool     `json:"audit_complete"`
	Resumed       bool     `json:"resumed"`
}

type loadingResultView struct {
	Scan            scanView `json:"scan"`
	Line            lineView `json:"line"`
	ExpectedBins    int      `json:"expected_bins"`
	LoadedBins      int      `json:"loaded_bins"`
	LoadingComplete bool     `json:"loading_complete"`
}

type dispatchView struct {
	VehicleID string              `json:"vehicle_id"`
	Loads     []loadingResultView `json:"loads"`
}

type alertView struct {
	ID               string     `json:"id"`
	InvoiceID        string     `json:"invoice_id"`
	LineID           string     `json:"line_id"`
	Step             string     `json:"step"`
	Stage            string     `json:"stage"`
	CustomerSnapshot string     `json:"customer_snapshot,omitempty"`
	CarrierSnapshot  string     `json:"carrier_snapshot,omitempty"`
	Status           string     `json:"status"`
	ReviewedBy       string     `json:"reviewed_by,omitempty"`
	ReviewNote       string     `json:"review_note,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type approveView struct {
	Alert      alertView `json:"alert"`
	RolledBack []string  `json:"rolled_back"`
	Unblocked  bool      `json:"unblocked"`
}

type progressView struct {
	InvoiceID       string             `json:"invoice_id"`
	Blocked         bool               `json:"blocked"`
	AuditComplete   bool               `json:"audit_complete"`
	LoadingComplete bool               `json:"loading_complete"`
	CustomerPercent decimal.Decimal    `json:"customer_percent"`
	CarrierPercent  decimal.Decimal    `json:"carrier_percent"`
	LoadedPercent   decimal.Decimal    `json:"loaded_percent"`
	Lines           []lineProgressView `json:"lines"`
}

type lineProgressView struct {
	LineID           string          `json:"line_id"`
	CustomerPartCode string          `json:"customer_part_code"`
	ExpectedQuantity int             `json:"expected_quantity"`
	ExpectedBins     int             `json:"expected_bins"`
	LoadedBins       int             `json:"loaded_bins"`
	CustomerPercent  decimal.Decimal `json:"customer_percent"`
	CarrierPercent   decimal.Decimal `json:"carrier_percent"`
	LoadedPercent    decimal.Decimal `json:"loaded_percent"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toInvoiceView(inv invoice.Invoice, lines []invoice.Line) invoiceView {
	v := invoiceView{
		ID:              inv.ID,
		CustomerName:    inv.CustomerName,
		Blocked:         inv.Blocked,
		BlockedAt:       optionalTime(inv.BlockedAt),
		AuditComplete:   inv.AuditComplete,
		LoadingComplete: inv.LoadingComplete,
		CreatedAt:       inv.CreatedAt,
	}
	for _, l := range lines {
		v.Lines = append(v.Lines, toLineView(l))
	}
	return v
}

func toLineView(l invoice.Line) lineView {
	v := lineView{
		ID:                      l.ID,
		CustomerPartCode:        l.CustomerPartCode,
		CarrierPartCode:         l.CarrierPartCode,
		ExpectedQuantity:        l.ExpectedQuantity,
		CustomerScannedQuantity: l.CustomerScannedQuantity,
		CustomerScannedBins:     l.CustomerScannedBins,
		CarrierScannedQuantity:  l.CarrierScannedQuantity,
		CarrierScannedBins:      l.CarrierScannedBins,
		LoadedBins:              l.LoadedBins,
	}
	if l.NumberOfBins > 0 {
		n := l.NumberOfBins
		v.NumberOfBins = &n
	}
	return v
}

func toScanView(s scan.Scan) scanView {
	v := scanView{
		ID:            s.ID,
		InvoiceID:     s.InvoiceID,
		LineID:        s.LineID,
		Context:       string(s.Context),
		Stage:         string(s.Stage()),
		Status:        string(s.Status()),
		CustomerBinID: s.CustomerBinID,
		BinQuantity:   s.BinQuantity,
		ScannedBy:     s.ScannedBy,
		ScannedAt:     s.ScannedAt,
	}
	if c, ok := s.Carrier(); ok {
		v.CarrierBinID = c.CarrierBinID
		v.PairedBy = c.PairedBy
		v.PairedAt = optionalTime(c.PairedAt)
	}
	return v
}

func toScanResultView(r *primary.ScanResult) scanResultView {
	return scanResultView{
		Scan:          toScanView(r.Scan),
		Line:          toLineView(r.Line),
		AuditComplete: r.AuditComplete,
		Resumed:       r.Resumed,
	}
}

func toLoadingResultView(r primary.LoadingResult) loadingResultView {
	return loadingResultView{
		Scan:            toScanView(r.Scan),
		Line:            toLineView(r.Line),
		ExpectedBins:    r.ExpectedBins,
		LoadedBins:      r.LoadedBins,
		LoadingComplete: r.LoadingComplete,
	}
}

func toAlertView(a alert.Alert) alertView {
	return alertView{
		ID:               a.ID,
		InvoiceID:        a.InvoiceID,
		LineID:           a.LineID,
		Step:             string(a.Step),
		Stage:            string(a.Stage()),
		CustomerSnapshot: a.CustomerSnapshot,
		CarrierSnapshot:  a.CarrierSnapshot,
		Status:           string(a.Status),
		ReviewedBy:       a.ReviewedBy,
		ReviewNote:       a.ReviewNote,
		ReviewedAt:       optionalTime(a.ReviewedAt),
		CreatedAt:        a.CreatedAt,
	}
}

func toProgressView(p *primary.InvoiceProgress) progressView {
	v := progressView{
		InvoiceID:       p.InvoiceID,
		Blocked:         p.Blocked,
		AuditComplete:   p.AuditComplete,
		LoadingComplete: p.LoadingComplete,
		CustomerPercent: p.CustomerPercent,
		CarrierPercent:  p.CarrierPercent,
		LoadedPercent:   p.LoadedPercent,
		Lines:           make([]lineProgressView, len(p.Lines)),
	}
	for i, l := range p.Lines {
		v.Lines[i] = lineProgressView{
			LineID:           l.LineID,
			CustomerPartCode: l.CustomerPartCode,
			ExpectedQuantity: l.ExpectedQuantity,
			ExpectedBins:     l.ExpectedBins,
			LoadedBins:       l.LoadedBins,
			CustomerPercent:  l.CustomerPercent,
			CarrierPercent:   l.CarrierPercent,
			LoadedPercent:    l.LoadedPercent,
		}
	}
	return v
}
