package wire

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/example/dispatch/internal/config"
	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/ports/primary"
)

func TestBuild_SQLite(t *testing.T) {
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "dispatch.db")
	logger, _ := test.NewNullLogger()

	c, err := Build(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if c.SQLite == nil {
		t.Fatal("expected sqlite handle")
	}

	ctx := context.Background()
	_, err = c.Invoices.CreateInvoice(ctx, primary.CreateInvoiceRequest{
		ID:    "INV-1",
		Lines: []primary.CreateInvoiceLine{{CustomerPartCode: "C-100", CarrierPartCode: "K-100", ExpectedQuantity: 8}},
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	if _, err := c.Invoices.GetInvoice(ctx, "INV-2"); !errors.Is(err, invoice.ErrInvoiceNotFound) {
		t.Errorf("expected ErrInvoiceNotFound, got %v", err)
	}
}

func TestBuild_PostgresUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.DBDriver = config.DriverPostgres
	cfg.DBDSN = "host=127.0.0.1 port=1 user=dispatch dbname=dispatch sslmode=disable connect_timeout=1"
	logger, _ := test.NewNullLogger()

	if _, err := Build(context.Background(), cfg, logger); err == nil {
		t.Error("expected connection error")
	}
}

func TestContainer_CloseIsIdempotent(t *testing.T) {
	calls := 0
	c := &Container{closers: []func() error{func() error { calls++; return nil }}}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("closer called %d times, want 1", calls)
	}
}
