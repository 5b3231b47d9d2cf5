package postgres

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"

	"github.com/example/dispatch/internal/core/alert"
	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/core/scan"
)

var at = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

func TestScanRow_States(t *testing.T) {
	tests := []struct {
		name  string
		state scan.State
		ctx   scan.Context
	}{
		{"pending customer", scan.PendingCustomer{}, scan.ContextAudit},
		{"paired", scan.Paired{CarrierPayload: "VX9SB1PK-1Q4", CarrierBinID: "B1", PairedBy: "op-b", PairedAt: at.Add(time.Minute)}, scan.ContextAudit},
		{"loaded", scan.Loaded{}, scan.ContextLoading},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scan.Scan{
				ID: "SCAN-1", InvoiceID: "INV-1", LineID: "INV-1-L001", Context: tt.ctx,
				CustomerPayload: "payload", CustomerBinID: "B1", BinQuantity: 4,
				ScannedBy: "op-a", ScannedAt: at, State: tt.state,
			}
			got, err := toScanRow(s).toScan()
			require.NoError(t, err)
			assert.Equal(t, s, got)
		})
	}
}

func TestScanRow_InvalidState(t *testing.T) {
	row := scanRow{ID: "SCAN-1", Context: "loading", Stage: "paired", Status: "matched"}
	_, err := row.toScan()
	assert.Error(t, err)
}

func TestLineRow_NumberOfBinsNullable(t *testing.T) {
	row := toLineRow(invoice.Line{ID: "INV-1-L001", ExpectedQuantity: 16}, 1)
	assert.Nil(t, row.NumberOfBins)
	assert.Equal(t, 0, row.toLine().NumberOfBins)

	row = toLineRow(invoice.Line{ID: "INV-1-L001", ExpectedQuantity: 16, NumberOfBins: 2}, 1)
	require.NotNil(t, row.NumberOfBins)
	assert.Equal(t, 2, row.toLine().NumberOfBins)
}

func TestInvoiceRow_BlockedAt(t *testing.T) {
	inv := &invoice.Invoice{ID: "INV-1", CreatedAt: at}
	assert.Nil(t, toInvoiceRow(inv).BlockedAt)

	inv.Blocked, inv.BlockedAt = true, at.Add(time.Hour)
	assert.Equal(t, inv, toInvoiceRow(inv).toInvoice())
}

func TestAlertRow_UnknownStep(t *testing.T) {
	a := &alert.Alert{ID: "ALERT-1", Step: alert.StepOverScanLoading, Status: alert.StatusPending, CreatedAt: at}
	got, err := toAlertRow(a).toAlert()
	require.NoError(t, err)
	assert.Equal(t, a, got)

	_, err = alertRow{ID: "ALERT-2", Step: "over_scan_elsewhere"}.toAlert()
	assert.Error(t, err)
}

func TestRowModels_UnboundedLabelColumns(t *testing.T) {
	tests := []struct {
		model  any
		fields []string
	}{
		{&lineRow{}, []string{"CarrierPartCode"}},
		{&scanRow{}, []string{"CustomerBinID", "CarrierBinID", "ScannedBy", "PairedBy"}},
		{&alertRow{}, []string{"ReviewedBy"}},
	}

	for _, tt := range tests {
		s, err := schema.Parse(tt.model, &sync.Map{}, schema.NamingStrategy{})
		require.NoError(t, err)
		for _, name := range tt.fields {
			t.Run(s.Table+"."+name, func(t *testing.T) {
				f := s.LookUpField(name)
				require.NotNil(t, f)
				assert.Equal(t, schema.DataType("text"), f.DataType)
				assert.Zero(t, f.Size)
			})
		}
	}
}

func TestScanRow_LongCarrierBin(t *testing.T) {
	bin := strings.Repeat("B", 80)
	operator := strings.Repeat("o", 100)
	s := &scan.Scan{
		ID: "SCAN-1", InvoiceID: "INV-1", LineID: "INV-1-L001", Context: scan.ContextAudit,
		CustomerPayload: "payload", CustomerBinID: "B1", BinQuantity: 4,
		ScannedBy: operator, ScannedAt: at,
		State: scan.Paired{CarrierPayload: "VX9S" + bin + "PA1Q4", CarrierBinID: bin, PairedBy: operator, PairedAt: at},
	}

	row := toScanRow(s)
	require.NotNil(t, row.CarrierBinID)
	assert.Len(t, *row.CarrierBinID, 80)

	got, err := row.toScan()
	require.NoError(t, err)
	assert.Equal(t, s, got)
}
