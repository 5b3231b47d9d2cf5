package postgres

import (
	"time"

	"github.com/example/dispatch/internal/core/alert"
	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/core/scan"
)

// Row models mirror the SQLite schema. Label-derived and operator columns
// are unbounded text. Seq columns give a stable insertion order where
// timestamps tie.

type invoiceRow struct {
	ID              string `gorm:"primaryKey;size:64"`
	CustomerName    string `gorm:"size:200;index"`
	Blocked         bool   `gorm:"not null;default:false;index"`
	BlockedAt       *time.Time
	AuditComplete   bool `gorm:"not null;default:false"`
	LoadingComplete bool `gorm:"not null;default:false"`
	CreatedAt       time.Time

	Lines []lineRow `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

func (invoiceRow) TableName() string { return "invoices" }

type lineRow struct {
	ID                      string `gorm:"primaryKey;size:80"`
	InvoiceID               string `gorm:"size:64;not null;uniqueIndex:idx_invoice_lines_position"`
	Position                int    `gorm:"not null;uniqueIndex:idx_invoice_lines_position"`
	CustomerPartCode        string `gorm:"size:15;not null;index"`
	CarrierPartCode         string `gorm:"type:text;not null;index"`
	ExpectedQuantity        int    `gorm:"not null"`
	NumberOfBins            *int
	CustomerScannedQuantity int `gorm:"not null;default:0"`
	CustomerScannedBins     int `gorm:"not null;default:0"`
	CarrierScannedQuantity  int `gorm:"not null;default:0"`
	CarrierScannedBins      int `gorm:"not null;default:0"`
	LoadedBins              int `gorm:"not null;default:0"`
}

func (lineRow) TableName() string { return "invoice_lines" }

type scanRow struct {
	ID              string `gorm:"primaryKey;size:64"`
	Seq             int64  `gorm:"autoIncrement;not null"`
	InvoiceID       string `gorm:"size:64;not null;index"`
	LineID          string `gorm:"size:80;not null;index:idx_scans_line_context"`
	Context         string `gorm:"size:16;not null;index:idx_scans_line_context"`
	Stage           string `gorm:"size:16;not null"`
	Status          string `gorm:"size:16;not null"`
	CustomerPayload string `gorm:"not null"`
	CustomerBinID   string `gorm:"type:text;not null"`
	BinQuantity     int    `gorm:"not null"`
	CarrierPayload  *string
	CarrierBinID    *string `gorm:"type:text"`
	ScannedBy       string  `gorm:"type:text;not null"`
	ScannedAt       time.Time
	PairedBy        *string `gorm:"type:text"`
	PairedAt        *time.Time

	Invoice invoiceRow `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Line    lineRow    `gorm:"foreignKey:LineID;constraint:OnDelete:CASCADE"`
}

func (scanRow) TableName() string { return "scans" }

type alertRow struct {
	ID               string `gorm:"primaryKey;size:64"`
	Seq              int64  `gorm:"autoIncrement;not null"`
	InvoiceID        string `gorm:"size:64;not null;index"`
	LineID           string `gorm:"size:80;not null"`
	Step             string `gorm:"size:32;not null"`
	CustomerSnapshot string
	CarrierSnapshot  string
	Status           string `gorm:"size:16;not null;index"`
	ReviewedBy       string `gorm:"type:text"`
	ReviewNote       string
	ReviewedAt       *time.Time
	CreatedAt        time.Time

	Invoice invoiceRow `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

func (alertRow) TableName() string { return "mismatch_alerts" }

func toInvoiceRow(inv *invoice.Invoice) invoiceRow {
	return invoiceRow{
		ID:              inv.ID,
		CustomerName:    inv.CustomerName,
		Blocked:         inv.Blocked,
		BlockedAt:       timePtr(inv.BlockedAt),
		AuditComplete:   inv.AuditComplete,
		LoadingComplete: inv.LoadingComplete,
		CreatedAt:       inv.CreatedAt,
	}
}

func (r invoiceRow) toInvoice() *invoice.Invoice {
	return &invoice.Invoice{
		ID:              r.ID,
		CustomerName:    r.CustomerName,
		Blocked:         r.Blocked,
		BlockedAt:       timeValue(r.BlockedAt),
		AuditComplete:   r.AuditComplete,
		LoadingComplete: r.LoadingComplete,
		CreatedAt:       r.CreatedAt.UTC(),
	}
}

func toLineRow(l invoice.Line, position int) lineRow {
	return lineRow{
		ID:                      l.ID,
		InvoiceID:               l.InvoiceID,
		Position:                position,
		CustomerPartCode:        l.CustomerPartCode,
		CarrierPartCode:         l.CarrierPartCode,
		ExpectedQuantity:        l.ExpectedQuantity,
		NumberOfBins:            intPtr(l.NumberOfBins),
		CustomerScannedQuantity: l.CustomerScannedQuantity,
		CustomerScannedBins:     l.CustomerScannedBins,
		CarrierScannedQuantity:  l.CarrierScannedQuantity,
		CarrierScannedBins:      l.CarrierScannedBins,
		LoadedBins:              l.LoadedBins,
	}
}

func (r lineRow) toLine() *invoice.Line {
	l := &invoice.Line{
		ID:                      r.ID,
		InvoiceID:               r.InvoiceID,
		CustomerPartCode:        r.CustomerPartCode,
		CarrierPartCode:         r.CarrierPartCode,
		ExpectedQuantity:        r.ExpectedQuantity,
		CustomerScannedQuantity: r.CustomerScannedQuantity,
		CustomerScannedBins:     r.CustomerScannedBins,
		CarrierScannedQuantity:  r.CarrierScannedQuantity,
		CarrierScannedBins:      r.CarrierScannedBins,
		LoadedBins:              r.LoadedBins,
	}
	if r.NumberOfBins != nil {
		l.NumberOfBins = *r.NumberOfBins
	}
	return l
}

func toScanRow(s *scan.Scan) scanRow {
	row := scanRow{
		ID:              s.ID,
		InvoiceID:       s.InvoiceID,
		LineID:          s.LineID,
		Context:         string(s.Context),
		Stage:           string(s.Stage()),
		Status:          string(s.Status()),
		CustomerPayload: s.CustomerPayload,
		CustomerBinID:   s.CustomerBinID,
		BinQuantity:     s.BinQuantity,
		ScannedBy:       s.ScannedBy,
		ScannedAt:       s.ScannedAt,
	}
	if c, ok := s.Carrier(); ok {
		row.CarrierPayload = &c.CarrierPayload
		row.CarrierBinID = &c.CarrierBinID
		row.PairedBy = &c.PairedBy
		row.PairedAt = timePtr(c.PairedAt)
	}
	return row
}

func (r scanRow) toScan() (*scan.Scan, error) {
	carrier := scan.Paired{PairedAt: timeValue(r.PairedAt)}
	if r.CarrierPayload != nil {
		carrier.CarrierPayload = *r.CarrierPayload
	}
	if r.CarrierBinID != nil {
		carrier.CarrierBinID = *r.CarrierBinID
	}
	if r.PairedBy != nil {
		carrier.PairedBy = *r.PairedBy
	}
	state, err := scan.StateFromColumns(scan.Stage(r.Stage), scan.Status(r.Status), scan.Context(r.Context), carrier)
	if err != nil {
		return nil, err
	}
	return &scan.Scan{
		ID:              r.ID,
		InvoiceID:       r.InvoiceID,
		LineID:          r.LineID,
		Context:         scan.Context(r.Context),
		CustomerPayload: r.CustomerPayload,
		CustomerBinID:   r.CustomerBinID,
		BinQuantity:     r.BinQuantity,
		ScannedBy:       r.ScannedBy,
		ScannedAt:       r.ScannedAt.UTC(),
		State:           state,
	}, nil
}

func toAlertRow(a *alert.Alert) alertRow {
	return alertRow{
		ID:               a.ID,
		InvoiceID:        a.InvoiceID,
		LineID:           a.LineID,
		Step:             string(a.Step),
		CustomerSnapshot: a.CustomerSnapshot,
		CarrierSnapshot:  a.CarrierSnapshot,
		Status:           string(a.Status),
		ReviewedBy:       a.ReviewedBy,
		ReviewNote:       a.ReviewNote,
		ReviewedAt:       timePtr(a.ReviewedAt),
		CreatedAt:        a.CreatedAt,
	}
}

func (r alertRow) toAlert() (*alert.Alert, error) {
	step, err := alert.ParseStep(r.Step)
	if err != nil {
		return nil, err
	}
	return &alert.Alert{
		ID:               r.ID,
		InvoiceID:        r.InvoiceID,
		LineID:           r.LineID,
		Step:             step,
		CustomerSnapshot: r.CustomerSnapshot,
		CarrierSnapshot:  r.CarrierSnapshot,
		Status:           alert.Status(r.Status),
		ReviewedBy:       r.ReviewedBy,
		ReviewNote:       r.ReviewNote,
		ReviewedAt:       timeValue(r.ReviewedAt),
		CreatedAt:        r.CreatedAt.UTC(),
	}, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func intPtr(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
