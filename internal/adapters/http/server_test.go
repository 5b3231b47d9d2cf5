package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/dispatch/internal/core/alert"
	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/core/label"
	"github.com/example/dispatch/internal/core/scan"
	"github.com/example/dispatch/internal/ctxutil"
	"github.com/example/dispatch/internal/ports/primary"
)

var at = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

// fakeServices implements every primary port. err, when set, is returned
// by every call; last records the most recent request.
type fakeServices struct {
	err       error
	last      any
	requestID string
	operator  string
}

func (f *fakeServices) record(ctx context.Context, req any) {
	f.last = req
	f.requestID = ctxutil.RequestIDFromContext(ctx)
	f.operator = ctxutil.OperatorFromContext(ctx)
}

func sampleLine() invoice.Line {
	return invoice.Line{ID: "INV-1-L001", InvoiceID: "INV-1", CustomerPartCode: "C-100", CarrierPartCode: "K-100", ExpectedQuantity: 16, NumberOfBins: 2, CustomerScannedQuantity: 8, CustomerScannedBins: 1}
}

func sampleScan() scan.Scan {
	return scan.Scan{ID: "SCAN-1", InvoiceID: "INV-1", LineID: "INV-1-L001", Context: scan.ContextAudit, CustomerBinID: "B001", BinQuantity: 8, ScannedBy: "op-a", ScannedAt: at, State: scan.PendingCustomer{}}
}

func sampleAlert() alert.Alert {
	return alert.Alert{ID: "ALERT-1", InvoiceID: "INV-1", LineID: "INV-1-L001", Step: alert.StepOverScanCustomer, Status: alert.StatusPending, CreatedAt: at}
}

func (f *fakeServices) CreateInvoice(ctx context.Context, req primary.CreateInvoiceRequest) (*primary.InvoiceDetail, error) {
	f.record(ctx, req)
	if f.err != nil {
		return nil, f.err
	}
	return &primary.InvoiceDetail{Invoice: invoice.Invoice{ID: req.ID, CustomerName: req.CustomerName, CreatedAt: at}, Lines: []invoice.Line{sampleLine()}}, nil
}

func (f *fakeServices) GetInvoice(ctx context.Context, id string) (*primary.InvoiceDetail, error) {
	f.record(ctx, id)
	if f.err != nil {
		return nil, f.err
	}
	return &primary.InvoiceDetail{Invoice: invoice.Invoice{ID: id, Blocked: true, BlockedAt: at}, Lines: []invoice.Line{sampleLine()}}, nil
}

func (f *fakeServices) ListInvoices(ctx context.Context, filters primary.InvoiceFilters) ([]*invoice.Invoice, error) {
	f.record(ctx, filters)
	return []*invoice.Invoice{{ID: "INV-1"}}, f.err
}

func (f *fakeServices) GetProgress(ctx context.Context, id string) (*primary.InvoiceProgress, error) {
	f.record(ctx, id)
	return &primary.InvoiceProgress{InvoiceID: id, CustomerPercent: decimal.RequireFromString("33.33")}, f.err
}

func (f *fakeServices) ImportInvoices(ctx context.Context, r io.Reader) (*primary.ImportResult, error) {
	f.record(ctx, nil)
	return &primary.ImportResult{}, f.err
}

func (f *fakeServices) RecordCustomerScan(ctx context.Context, req primary.CustomerScanRequest) (*primary.ScanResult, error) {
	f.record(ctx, req)
	if f.err != nil {
		return nil, f.err
	}
	return &primary.ScanResult{Scan: sampleScan(), Line: sampleLine()}, nil
}

func (f *fakeServices) RecordCarrierScan(ctx context.Context, req primary.CarrierScanRequest) (*primary.ScanResult, error) {
	f.record(ctx, req)
	if f.err != nil {
		return nil, f.err
	}
	paired, _ := scan.Pair(sampleScan(), scan.Paired{CarrierBinID: "B001", PairedBy: req.ScannedBy, PairedAt: at})
	return &primary.ScanResult{Scan: paired, Line: sampleLine(), Resumed: req.CustomerPayload == ""}, nil
}

func (f *fakeServices) RecordPairedScan(ctx context.Context, req primary.PairedScanRequest) (*primary.ScanResult, error) {
	f.record(ctx, req)
	if f.err != nil {
		return nil, f.err
	}
	return &primary.ScanResult{Scan: sampleScan(), Line: sampleLine()}, nil
}

func (f *fakeServices) ListScans(ctx context.Context, filters primary.ScanFilters) ([]*scan.Scan, error) {
	f.record(ctx, filters)
	s := sampleScan()
	return []*scan.Scan{&s}, f.err
}

func (f *fakeServices) RecordLoadingScan(ctx context.Context, req primary.LoadingScanRequest) (*primary.LoadingResult, error) {
	f.record(ctx, req)
	if f.err != nil {
		return nil, f.err
	}
	return &primary.LoadingResult{Scan: sampleScan(), Line: sampleLine(), ExpectedBins: 2, LoadedBins: 1}, nil
}

func (f *fakeServices) DeleteLoadingScan(ctx context.Context, req primary.DeleteLoadingScanRequest) error {
	f.record(ctx, req)
	return f.err
}

func (f *fakeServices) DispatchVehicle(ctx context.Context, req primary.DispatchRequest) (*primary.DispatchResult, error) {
	f.record(ctx, req)
	if f.err != nil {
		return nil, f.err
	}
	return &primary.DispatchResult{VehicleID: req.VehicleID, Loads: make([]primary.LoadingResult, len(req.Loads))}, nil
}

func (f *fakeServices) ApproveAlert(ctx context.Context, req primary.ResolveAlertRequest) (*primary.ApproveResult, error) {
	f.record(ctx, req)
	if f.err != nil {
		return nil, f.err
	}
	return &primary.ApproveResult{Alert: alert.Review(sampleAlert(), alert.StatusApproved, req.ReviewedBy, req.Note, at), Unblocked: true}, nil
}

func (f *fakeServices) RejectAlert(ctx context.Context, req primary.ResolveAlertRequest) (*alert.Alert, error) {
	f.record(ctx, req)
	if f.err != nil {
		return nil, f.err
	}
	a := alert.Review(sampleAlert(), alert.StatusRejected, req.ReviewedBy, req.Note, at)
	return &a, nil
}

func (f *fakeServices) GetAlert(ctx context.Context, id string) (*alert.Alert, error) {
	f.record(ctx, id)
	if f.err != nil {
		return nil, f.err
	}
	a := sampleAlert()
	return &a, nil
}

func (f *fakeServices) ListAlerts(ctx context.Context, filters primary.AlertFilters) ([]*alert.Alert, error) {
	f.record(ctx, filters)
	a := sampleAlert()
	return []*alert.Alert{&a}, f.err
}

func newTestServer() (*Server, *fakeServices) {
	fake := &fakeServices{}
	logger, _ := test.NewNullLogger()
	return NewServer(Services{Invoices: fake, Audit: fake, Loading: fake, Mismatch: fake}, logger), fake
}

func do(t *testing.T, s *Server, method, path, body string) (*nethttp.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestServer_CustomerScan(t *testing.T) {
	s, fake := newTestServer()

	resp, body := do(t, s, "POST", "/api/invoices/INV-1/scans/customer", `{"payload":"B001 C-100 8","scanned_by":"op-a"}`)

	assert.Equal(t, nethttp.StatusCreated, resp.StatusCode)
	assert.Equal(t, primary.CustomerScanRequest{InvoiceID: "INV-1", Payload: "B001 C-100 8", ScannedBy: "op-a"}, fake.last)
	assert.Equal(t, "op-a", fake.operator)
	assert.NotEmpty(t, fake.requestID)
	assert.Equal(t, fake.requestID, resp.Header.Get(RequestIDHeader))

	line := body["line"].(map[string]any)
	assert.Equal(t, float64(2), line["number_of_bins"])
	assert.Equal(t, "pending", body["scan"].(map[string]any)["status"])
}

func TestServer_RequestIDPropagates(t *testing.T) {
	s, fake := newTestServer()
	req := httptest.NewRequest("GET", "/api/alerts/ALERT-1", nil)
	req.Header.Set(RequestIDHeader, "req-42")

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-42", fake.requestID)
	assert.Equal(t, "req-42", resp.Header.Get(RequestIDHeader))
}

func TestServer_CarrierScanResume(t *testing.T) {
	s, fake := newTestServer()

	resp, body := do(t, s, "POST", "/api/invoices/INV-1/scans/carrier", `{"carrier_payload":"VX9SB001PK-100Q8","scanned_by":"op-b"}`)

	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["resumed"])
	assert.Equal(t, "B001", body["scan"].(map[string]any)["carrier_bin_id"])
	req := fake.last.(primary.CarrierScanRequest)
	assert.Empty(t, req.CustomerPayload)
}

func TestServer_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		class  scan.Class
	}{
		{"parse", fmt.Errorf("failed to parse: %w", label.ErrTooShort), nethttp.StatusUnprocessableEntity, scan.ClassParse},
		{"matching", invoice.ErrNoMatch, nethttp.StatusUnprocessableEntity, scan.ClassMatching},
		{"blocked", invoice.ErrInvoiceBlocked, nethttp.StatusLocked, scan.ClassBlocked},
		{"duplicate", scan.ErrDuplicateScan, nethttp.StatusConflict, scan.ClassBusiness},
		{"over-scan", &scan.OverScanError{AlertID: "ALERT-9", InvoiceID: "INV-1", LineID: "INV-1-L001", Step: alert.StepOverScanCustomer}, nethttp.StatusConflict, scan.ClassOverScan},
		{"not found", invoice.ErrInvoiceNotFound, nethttp.StatusNotFound, scan.ClassNotFound},
		{"invalid", scan.ErrInvalidRequest, nethttp.StatusBadRequest, scan.ClassInvalid},
		{"internal", fmt.Errorf("disk on fire"), nethttp.StatusInternalServerError, scan.ClassInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, fake := newTestServer()
			fake.err = tt.err

			resp, body := do(t, s, "POST", "/api/invoices/INV-1/scans/customer", `{"payload":"x","scanned_by":"op-a"}`)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, string(tt.class), body["class"])
		})
	}
}

func TestServer_OverScanCarriesAlertID(t *testing.T) {
	s, fake := newTestServer()
	fake.err = &scan.OverScanError{AlertID: "ALERT-9", InvoiceID: "INV-1", LineID: "INV-1-L001", Step: alert.StepOverScanLoading}

	resp, body := do(t, s, "POST", "/api/invoices/INV-1/loads", `{"payload":"x","scanned_by":"loader"}`)
	assert.Equal(t, nethttp.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ALERT-9", body["alert_id"])
}

func TestServer_InternalErrorIsMasked(t *testing.T) {
	s, fake := newTestServer()
	fake.err = fmt.Errorf("connection refused to 10.0.0.5")

	_, body := do(t, s, "GET", "/api/invoices/INV-1", "")
	assert.Equal(t, "internal error", body["error"])
}

func TestServer_BadBody(t *testing.T) {
	s, _ := newTestServer()
	resp, body := do(t, s, "POST", "/api/alerts/ALERT-1/approve", `{not json`)
	assert.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid request body", body["error"])
}

func TestServer_Routes(t *testing.T) {
	tests := []struct {
		method string
		path   string
		body   string
		status int
		want   any
	}{
		{"POST", "/api/invoices", `{"id":"INV-1","customer_name":"ACME","lines":[{"customer_part_code":"C-100","carrier_part_code":"K-100","expected_quantity":16}]}`, nethttp.StatusCreated,
			primary.CreateInvoiceRequest{ID: "INV-1", CustomerName: "ACME", Lines: []primary.CreateInvoiceLine{{CustomerPartCode: "C-100", CarrierPartCode: "K-100", ExpectedQuantity: 16}}}},
		{"GET", "/api/invoices?customer=ACME", "", nethttp.StatusOK, primary.InvoiceFilters{CustomerName: "ACME"}},
		{"GET", "/api/invoices/INV-1/progress", "", nethttp.StatusOK, "INV-1"},
		{"POST", "/api/invoices/INV-1/scans/pair", `{"customer_payload":"c","carrier_payload":"k","scanned_by":"op-a"}`, nethttp.StatusCreated,
			primary.PairedScanRequest{InvoiceID: "INV-1", CustomerPayload: "c", CarrierPayload: "k", ScannedBy: "op-a"}},
		{"GET", "/api/scans?invoice_id=INV-1&context=loading", "", nethttp.StatusOK, primary.ScanFilters{InvoiceID: "INV-1", Context: scan.ContextLoading}},
		{"POST", "/api/invoices/INV-1/loads", `{"payload":"c","scanned_by":"loader"}`, nethttp.StatusCreated,
			primary.LoadingScanRequest{InvoiceID: "INV-1", Payload: "c", ScannedBy: "loader"}},
		{"DELETE", "/api/loads/SCAN-7?deleted_by=admin", "", nethttp.StatusNoContent, primary.DeleteLoadingScanRequest{ScanID: "SCAN-7", DeletedBy: "admin"}},
		{"POST", "/api/dispatches", `{"vehicle_id":"TRUCK-1","scanned_by":"loader","loads":[{"invoice_id":"INV-1","payload":"c"}]}`, nethttp.StatusCreated,
			primary.DispatchRequest{VehicleID: "TRUCK-1", ScannedBy: "loader", Loads: []primary.DispatchLoad{{InvoiceID: "INV-1", Payload: "c"}}}},
		{"GET", "/api/alerts?status=pending", "", nethttp.StatusOK, primary.AlertFilters{Status: alert.StatusPending}},
		{"POST", "/api/alerts/ALERT-1/approve", `{"reviewed_by":"admin","note":"ok"}`, nethttp.StatusOK, primary.ResolveAlertRequest{AlertID: "ALERT-1", ReviewedBy: "admin", Note: "ok"}},
		{"POST", "/api/alerts/ALERT-1/reject", `{"reviewed_by":"admin"}`, nethttp.StatusOK, primary.ResolveAlertRequest{AlertID: "ALERT-1", ReviewedBy: "admin"}},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			s, fake := newTestServer()
			resp, _ := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.want, fake.last)
		})
	}
}

func TestServer_ListInvoicesBadFilter(t *testing.T) {
	s, _ := newTestServer()
	resp, _ := do(t, s, "GET", "/api/invoices?blocked=maybe", "")
	assert.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
}

func TestServer_ApproveRolledBackIsArray(t *testing.T) {
	s, _ := newTestServer()
	_, body := do(t, s, "POST", "/api/alerts/ALERT-1/approve", `{"reviewed_by":"admin"}`)
	assert.Equal(t, []any{}, body["rolled_back"])
	assert.Equal(t, true, body["unblocked"])
	assert.Equal(t, "customer", body["alert"].(map[string]any)["stage"])
}
