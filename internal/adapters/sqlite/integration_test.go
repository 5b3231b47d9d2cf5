package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/example/dispatch/internal/adapters/events"
	"github.com/example/dispatch/internal/adapters/sqlite"
	"github.com/example/dispatch/internal/app"
	"github.com/example/dispatch/internal/core/alert"
	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/core/scan"
	"github.com/example/dispatch/internal/ports/primary"
	"github.com/example/dispatch/internal/ports/secondary"
)

// Integration tests run the application services against a real SQLite store.

type integrationEnv struct {
	store    *sqlite.Store
	invoices *app.InvoiceServiceImpl
	audit    *app.AuditServiceImpl
	loading  *app.LoadingServiceImpl
	mismatch *app.MismatchServiceImpl
}

func setupIntegration(t *testing.T) *integrationEnv {
	t.Helper()
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	store := sqlite.NewStore(setupTestDB(t))
	pub := events.NoopPublisher{}
	return &integrationEnv{
		store:    store,
		invoices: app.NewInvoiceService(store, nil, logger),
		audit:    app.NewAuditService(store, pub, logger),
		loading:  app.NewLoadingService(store, pub, events.NewLocalLocker(), logger),
		mismatch: app.NewMismatchService(store, pub, logger),
	}
}

func customerLabel(bin, part string, qty int) string {
	return fmt.Sprintf("%-35s%-15s%d", bin, part, qty)
}

func carrierLabel(bin, part string, qty int) string {
	return fmt.Sprintf("VX9S%sP%sQ%d", bin, part, qty)
}

func (e *integrationEnv) createInvoice(t *testing.T, id string, expected int) {
	t.Helper()
	_, err := e.invoices.CreateInvoice(context.Background(), primary.CreateInvoiceRequest{
		ID:           id,
		CustomerName: "ACME",
		Lines: []primary.CreateInvoiceLine{
			{CustomerPartCode: "C-100", CarrierPartCode: "K-100", ExpectedQuantity: expected},
		},
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
}

func (e *integrationEnv) customerScan(invoiceID, bin string, qty int) (*primary.ScanResult, error) {
	return e.audit.RecordCustomerScan(context.Background(), primary.CustomerScanRequest{
		InvoiceID: invoiceID,
		Payload:   customerLabel(bin, "C-100", qty),
		ScannedBy: "op-a",
	})
}

func (e *integrationEnv) lineOf(t *testing.T, invoiceID string) invoice.Line {
	t.Helper()
	line, err := e.store.Repositories().Invoices.GetLine(context.Background(), invoice.LineID(invoiceID, 1))
	if err != nil {
		t.Fatalf("GetLine failed: %v", err)
	}
	return *line
}

func TestIntegration_AuditOverScanApproveRollback(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()
	env.createInvoice(t, "INV-100", 16)

	if _, err := env.customerScan("INV-100", "B001", 8); err != nil {
		t.Fatalf("customer scan B001 failed: %v", err)
	}
	resumed, err := env.audit.RecordCarrierScan(ctx, primary.CarrierScanRequest{
		InvoiceID:      "INV-100",
		CarrierPayload: carrierLabel("B001", "K-100", 8),
		ScannedBy:      "op-b",
	})
	if err != nil {
		t.Fatalf("carrier scan B001 failed: %v", err)
	}
	if !resumed.Resumed {
		t.Error("expected carrier scan without customer payload to resume")
	}
	if _, err := env.customerScan("INV-100", "B002", 8); err != nil {
		t.Fatalf("customer scan B002 failed: %v", err)
	}

	t.Run("duplicate bin is refused without blocking", func(t *testing.T) {
		_, err := env.customerScan("INV-100", "B002", 8)
		if !errors.Is(err, scan.ErrDuplicateScan) {
			t.Fatalf("expected ErrDuplicateScan, got %v", err)
		}
		inv, _ := env.store.Repositories().Invoices.GetByID(ctx, "INV-100")
		if inv.Blocked {
			t.Error("duplicate must not block the invoice")
		}
	})

	_, err = env.customerScan("INV-100", "B003", 8)
	var overScan *scan.OverScanError
	if !errors.As(err, &overScan) {
		t.Fatalf("expected OverScanError, got %v", err)
	}
	if overScan.Step != alert.StepOverScanCustomer {
		t.Errorf("step = %s, want %s", overScan.Step, alert.StepOverScanCustomer)
	}

	t.Run("blocked invoice refuses scans", func(t *testing.T) {
		_, err := env.customerScan("INV-100", "B004", 1)
		if !errors.Is(err, invoice.ErrInvoiceBlocked) {
			t.Errorf("expected ErrInvoiceBlocked, got %v", err)
		}
	})

	result, err := env.mismatch.ApproveAlert(ctx, primary.ResolveAlertRequest{
		AlertID:    overScan.AlertID,
		ReviewedBy: "admin",
		Note:       "recount done",
	})
	if err != nil {
		t.Fatalf("ApproveAlert failed: %v", err)
	}
	if !result.Unblocked {
		t.Error("expected invoice to be unblocked")
	}
	if len(result.RolledBack) != 1 {
		t.Fatalf("expected 1 rolled back scan, got %v", result.RolledBack)
	}

	line := env.lineOf(t, "INV-100")
	if line.CustomerScannedQuantity != 8 || line.CustomerScannedBins != 1 {
		t.Errorf("expected customer counters back to 8/1, got %d/%d", line.CustomerScannedQuantity, line.CustomerScannedBins)
	}
	if line.CarrierScannedQuantity != 8 {
		t.Errorf("paired carrier side must be kept, got %d", line.CarrierScannedQuantity)
	}

	scans, err := env.audit.ListScans(ctx, primary.ScanFilters{InvoiceID: "INV-100"})
	if err != nil {
		t.Fatalf("ListScans failed: %v", err)
	}
	if len(scans) != 1 || scans[0].CustomerBinID != "B001" {
		t.Errorf("expected only the paired B001 scan to remain, got %d scans", len(scans))
	}

	t.Run("rolled back bin can be rescanned", func(t *testing.T) {
		if _, err := env.customerScan("INV-100", "B002", 8); err != nil {
			t.Errorf("rescan of rolled back bin failed: %v", err)
		}
	})
}

func TestIntegration_DispatchIsAtomic(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()
	env.createInvoice(t, "INV-200", 8)

	_, err := env.audit.RecordPairedScan(ctx, primary.PairedScanRequest{
		InvoiceID:       "INV-200",
		CustomerPayload: customerLabel("B001", "C-100", 8),
		CarrierPayload:  carrierLabel("B001", "K-100", 8),
		ScannedBy:       "op-a",
	})
	if err != nil {
		t.Fatalf("RecordPairedScan failed: %v", err)
	}

	loads := []primary.DispatchLoad{
		{InvoiceID: "INV-200", Payload: customerLabel("B001", "C-100", 8)},
		{InvoiceID: "INV-200", Payload: customerLabel("B009", "C-100", 8)},
	}
	_, err = env.loading.DispatchVehicle(ctx, primary.DispatchRequest{VehicleID: "TRUCK-1", ScannedBy: "loader", Loads: loads})
	if !errors.Is(err, scan.ErrOverScan) {
		t.Fatalf("expected over-scan, got %v", err)
	}

	loaded, err := env.audit.ListScans(ctx, primary.ScanFilters{InvoiceID: "INV-200", Context: scan.ContextLoading})
	if err != nil {
		t.Fatalf("ListScans failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected no loading scans after aborted dispatch, got %d", len(loaded))
	}
	if line := env.lineOf(t, "INV-200"); line.LoadedBins != 0 {
		t.Errorf("LoadedBins = %d, want 0", line.LoadedBins)
	}

	alerts, err := env.mismatch.ListAlerts(ctx, primary.AlertFilters{InvoiceID: "INV-200"})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Step != alert.StepOverScanLoading {
		t.Fatalf("expected one loading alert, got %d", len(alerts))
	}
	inv, _ := env.store.Repositories().Invoices.GetByID(ctx, "INV-200")
	if !inv.Blocked {
		t.Error("expected invoice blocked by the loading alert")
	}

	if _, err := env.mismatch.ApproveAlert(ctx, primary.ResolveAlertRequest{AlertID: alerts[0].ID, ReviewedBy: "admin"}); err != nil {
		t.Fatalf("ApproveAlert failed: %v", err)
	}

	result, err := env.loading.DispatchVehicle(ctx, primary.DispatchRequest{VehicleID: "TRUCK-1", ScannedBy: "loader", Loads: loads[:1]})
	if err != nil {
		t.Fatalf("DispatchVehicle failed: %v", err)
	}
	if len(result.Loads) != 1 || !result.Loads[0].LoadingComplete {
		t.Errorf("expected one load completing the invoice, got %+v", result.Loads)
	}

	progress, err := env.invoices.GetProgress(ctx, "INV-200")
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if !progress.AuditComplete || !progress.LoadingComplete {
		t.Errorf("expected audit and loading complete, got %+v", progress)
	}
}

func TestIntegration_ConcurrentTransactionsSerialize(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()
	env.createInvoice(t, "INV-300", 9)

	errs := make(chan error, 9)
	for i := 1; i <= 9; i++ {
		go func(i int) {
			_, err := env.customerScan("INV-300", fmt.Sprintf("B%03d", i), 1)
			errs <- err
		}(i)
	}
	for i := 0; i < 9; i++ {
		if err := <-errs; err != nil {
			t.Errorf("customer scan failed: %v", err)
		}
	}

	line := env.lineOf(t, "INV-300")
	if line.CustomerScannedQuantity != 9 || line.CustomerScannedBins != 9 {
		t.Errorf("expected 9/9 after concurrent scans, got %d/%d", line.CustomerScannedQuantity, line.CustomerScannedBins)
	}

	var count int
	err := env.store.WithTransaction(ctx, func(ctx context.Context, repos secondary.Repositories) error {
		n, err := repos.Scans.CountByLine(ctx, line.ID, scan.ContextAudit)
		count = n
		return err
	})
	if err != nil {
		t.Fatalf("WithTransaction failed: %v", err)
	}
	if count != 9 {
		t.Errorf("CountByLine = %d, want 9", count)
	}
}
