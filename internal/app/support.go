package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/dispatch/internal/core/alert"
	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/core/scan"
	"github.com/example/dispatch/internal/ctxutil"
	"github.com/example/dispatch/internal/ports/secondary"
)

func utcNow() time.Time {
	return time.Now().UTC()
}

func newUUID() string {
	return uuid.NewString()
}

// validateRequest runs struct validation and maps failures to scan.ErrInvalidRequest.
func validateRequest(v *validator.Validate, req any) error {
	if err := v.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", scan.ErrInvalidRequest, err)
	}
	return nil
}

// requestLogger attaches the request correlation fields carried by ctx.
func requestLogger(ctx context.Context, logger logrus.FieldLogger) logrus.FieldLogger {
	fields := logrus.Fields{}
	if id := ctxutil.RequestIDFromContext(ctx); id != "" {
		fields["request_id"] = id
	}
	if op := ctxutil.OperatorFromContext(ctx); op != "" {
		fields["session_operator"] = op
	}
	return logger.WithFields(fields)
}

// publish sends an event after commit. Failures are logged and dropped.
func publish(ctx context.Context, pub secondary.EventPublisher, log logrus.FieldLogger, name string, payload any) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, name, payload); err != nil {
		log.WithError(err).WithField("event", name).Warn("failed to publish event")
	}
}

// raiseAlert persists an alert and blocks its invoice.
func raiseAlert(ctx context.Context, repos secondary.Repositories, a *alert.Alert) error {
	if err := repos.Alerts.Create(ctx, a); err != nil {
		return err
	}
	if err := repos.Invoices.SetBlocked(ctx, a.InvoiceID, true, a.CreatedAt); err != nil {
		return err
	}
	return nil
}

func newAlert(id string, invoiceID, lineID string, step alert.Step, customerSnapshot, carrierSnapshot string, at time.Time) *alert.Alert {
	return &alert.Alert{
		ID:               id,
		InvoiceID:        invoiceID,
		LineID:           lineID,
		Step:             step,
		CustomerSnapshot: customerSnapshot,
		CarrierSnapshot:  carrierSnapshot,
		Status:           alert.StatusPending,
		CreatedAt:        at,
	}
}

func overScanError(a *alert.Alert) *scan.OverScanError {
	return &scan.OverScanError{
		AlertID:   a.ID,
		InvoiceID: a.InvoiceID,
		LineID:    a.LineID,
		Step:      a.Step,
	}
}

func lineValues(lines []*invoice.Line) []invoice.Line {
	out := make([]invoice.Line, len(lines))
	for i, l := range lines {
		out[i] = *l
	}
	return out
}

// refreshAuditComplete recomputes and stores the invoice's audit flag.
func refreshAuditComplete(ctx context.Context, repos secondary.Repositories, invoiceID string) (bool, error) {
	lines, err := repos.Invoices.ListLines(ctx, invoiceID)
	if err != nil {
		return false, err
	}
	complete := invoice.AuditComplete(lineValues(lines))
	if err := repos.Invoices.SetAuditComplete(ctx, invoiceID, complete); err != nil {
		return false, err
	}
	return complete, nil
}

// expectedBins resolves the expected bin count of a line, querying the
// audit distinct-bin count only when the line itself does not know it.
func expectedBins(ctx context.Context, scans secondary.ScanRepository, line invoice.Line) (int, error) {
	distinct := 0
	if invoice.NeedsAuditBinCount(line) {
		n, err := scans.CountDistinctCustomerBins(ctx, line.ID, scan.ContextAudit)
		if err != nil {
			return 0, err
		}
		distinct = n
	}
	return invoice.ExpectedBins(line, distinct), nil
}

// loadProgress computes the loading view of every line of an invoice.
func loadProgress(ctx context.Context, repos secondary.Repositories, lines []invoice.Line) ([]invoice.LoadProgress, error) {
	progress := make([]invoice.LoadProgress, len(lines))
	for i, l := range lines {
		expected, err := expectedBins(ctx, repos.Scans, l)
		if err != nil {
			return nil, err
		}
		progress[i] = invoice.LoadProgress{LineID: l.ID, ExpectedBins: expected, LoadedBins: l.LoadedBins}
	}
	return progress, nil
}

// refreshLoadingComplete recomputes and stores the invoice's loading flag.
func refreshLoadingComplete(ctx context.Context, repos secondary.Repositories, invoiceID string) (bool, error) {
	lines, err := repos.Invoices.ListLines(ctx, invoiceID)
	if err != nil {
		return false, err
	}
	progress, err := loadProgress(ctx, repos, lineValues(lines))
	if err != nil {
		return false, err
	}
	complete := invoice.LoadingComplete(progress)
	if err := repos.Invoices.SetLoadingComplete(ctx, invoiceID, complete); err != nil {
		return false, err
	}
	return complete, nil
}
