package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/core/scan"
	"github.com/example/dispatch/internal/ports/primary"
	"github.com/example/dispatch/internal/ports/secondary"
)

// AuditServiceImpl implements the AuditService interface.
type AuditServiceImpl struct {
	store     secondary.Store
	publisher secondary.EventPublisher
	logger    logrus.FieldLogger
	validate  *validator.Validate
	now       func() time.Time
	newID     func() string
}

// NewAuditService creates a new AuditService with injected dependencies.
func NewAuditService(store secondary.Store, publisher secondary.EventPublisher, logger logrus.FieldLogger) *AuditServiceImpl {
	return &AuditServiceImpl{
		store:     store,
		publisher: publisher,
		logger:    logger,
		validate:  validator.New(),
		now:       utcNow,
		newID:     newUUID,
	}
}

// RecordCustomerScan records a customer-side bin as pending.
func (s *AuditServiceImpl) RecordCustomerScan(ctx context.Context, req primary.CustomerScanRequest) (*primary.ScanResult, error) {
	if err := validateRequest(s.validate, req); err != nil {
		return nil, err
	}
	log := requestLogger(ctx, s.logger).WithFields(logrus.Fields{
		"invoice_id": req.InvoiceID,
		"operator":   req.ScannedBy,
		"side":       "customer",
	})

	customer, err := scan.ReadCustomer(req.Payload)
	if err != nil {
		return nil, s.reject(ctx, log, req.InvoiceID, fmt.Errorf("failed to parse customer label: %w", err))
	}

	var (
		result   *primary.ScanResult
		overScan *scan.OverScanError
	)
	err = s.store.WithTransaction(ctx, func(ctx context.Context, repos secondary.Repositories) error {
		inv, lines, err := s.openInvoice(ctx, repos, req.InvoiceID)
		if err != nil {
			return err
		}
		line, err := invoice.MatchCustomerPart(lines, customer.PartCode)
		if err != nil {
			return err
		}

		recorded, err := repos.Scans.BinRecorded(ctx, secondary.BinQuery{
			LineID:   line.ID,
			Context:  scan.ContextAudit,
			Side:     secondary.SideCustomer,
			BinID:    customer.BinID,
			Payloads: scan.PayloadKeys(customer.Payload),
		})
		if err != nil {
			return err
		}

		guard := scan.CanRecordCustomerScan(scan.CustomerScanContext{
			Line:            line,
			BinID:           customer.BinID,
			BinQuantity:     customer.Quantity,
			AlreadyRecorded: recorded,
		})
		if guard.OverScan() {
			a := newAlert(s.newID(), inv.ID, line.ID, guard.Step, customer.Payload, "", s.now())
			if err := raiseAlert(ctx, repos, a); err != nil {
				return err
			}
			overScan = overScanError(a)
			return nil
		}
		if err := guard.Error(); err != nil {
			return err
		}

		record := scan.Scan{
			ID:              s.newID(),
			InvoiceID:       inv.ID,
			LineID:          line.ID,
			Context:         scan.ContextAudit,
			CustomerPayload: customer.Payload,
			CustomerBinID:   customer.BinID,
			BinQuantity:     customer.Quantity,
			ScannedBy:       req.ScannedBy,
			ScannedAt:       s.now(),
			State:           scan.PendingCustomer{},
		}
		if err := repos.Scans.Create(ctx, &record); err != nil {
			return err
		}

		line = invoice.ApplyCustomerScan(line, customer.Quantity)
		if err := repos.Invoices.UpdateLineCounters(ctx, &line); err != nil {
			return err
		}
		complete, err := refreshAuditComplete(ctx, repos, inv.ID)
		if err != nil {
			return err
		}

		result = &primary.ScanResult{Scan: record, Line: line, AuditComplete: complete}
		return nil
	})
	if err != nil {
		return nil, s.reject(ctx, log, req.InvoiceID, err)
	}
	if overScan != nil {
		return nil, s.block(ctx, log, overScan)
	}

	s.accept(ctx, log, result)
	return result, nil
}

// RecordCarrierScan pairs a carrier label with the line's latest pending
// customer scan. Without a customer payload it runs in resume mode.
func (s *AuditServiceImpl) RecordCarrierScan(ctx context.Context, req primary.CarrierScanRequest) (*primary.ScanResult, error) {
	if err := validateRequest(s.validate, req); err != nil {
		return nil, err
	}
	resume := req.CustomerPayload == ""
	log := requestLogger(ctx, s.logger).WithFields(logrus.Fields{
		"invoice_id": req.InvoiceID,
		"operator":   req.ScannedBy,
		"side":       "carrier",
		"resume":     resume,
	})

	carrier, err := scan.ReadCarrier(req.CarrierPayload)
	if err != nil {
		return nil, s.reject(ctx, log, req.InvoiceID, fmt.Errorf("failed to parse carrier label: %w", err))
	}
	var customer scan.Reading
	if !resume {
		customer, err = scan.ReadCustomer(req.CustomerPayload)
		if err != nil {
			return nil, s.reject(ctx, log, req.InvoiceID, fmt.Errorf("failed to parse customer label: %w", err))
		}
	}

	var (
		result   *primary.ScanResult
		overScan *scan.OverScanError
	)
	err = s.store.WithTransaction(ctx, func(ctx context.Context, repos secondary.Repositories) error {
		inv, lines, err := s.openInvoice(ctx, repos, req.InvoiceID)
		if err != nil {
			return err
		}

		if resume {
			customer, err = s.resumeCustomerSide(ctx, log, repos, lines, carrier, req.ScannedBy)
			if err != nil {
				return err
			}
		}

		if err := scan.CheckQuantities(customer.Parsed, carrier.Parsed); err != nil {
			return err
		}
		line, err := invoice.MatchBothParts(lines, customer.PartCode, carrier.PartCode)
		if err != nil {
			return err
		}

		recorded, err := repos.Scans.BinRecorded(ctx, secondary.BinQuery{
			LineID:   line.ID,
			Context:  scan.ContextAudit,
			Side:     secondary.SideCarrier,
			BinID:    carrier.BinID,
			Payloads: scan.PayloadKeys(carrier.Payload),
		})
		if err != nil {
			return err
		}

		guard := scan.CanRecordCarrierScan(scan.CarrierScanContext{
			Line:            line,
			BinID:           carrier.BinID,
			BinQuantity:     carrier.Quantity,
			AlreadyRecorded: recorded,
		})
		if guard.OverScan() {
			a := newAlert(s.newID(), inv.ID, line.ID, guard.Step, customer.Payload, carrier.Payload, s.now())
			if err := raiseAlert(ctx, repos, a); err != nil {
				return err
			}
			overScan = overScanError(a)
			return nil
		}
		if err := guard.Error(); err != nil {
			return err
		}

		pending, err := repos.Scans.LatestPendingForUpdate(ctx, line.ID)
		if err != nil {
			return err
		}
		if pending == nil {
			return fmt.Errorf("%w on line %s", scan.ErrNoPendingCustomerScan, line.ID)
		}
		if pending.CustomerBinID != customer.BinID {
			log.WithFields(logrus.Fields{
				"pending_bin":  pending.CustomerBinID,
				"supplied_bin": customer.BinID,
			}).Warn("pairing latest pending scan whose bin differs from the supplied customer label")
		}
		if pending.BinQuantity != carrier.Quantity {
			return fmt.Errorf("%w: pending scan %s holds %d, carrier label says %d",
				scan.ErrQuantityMismatch, pending.ID, pending.BinQuantity, carrier.Quantity)
		}

		paired, err := scan.Pair(*pending, scan.Paired{
			CarrierPayload: carrier.Payload,
			CarrierBinID:   carrier.BinID,
			PairedBy:       req.ScannedBy,
			PairedAt:       s.now(),
		})
		if err != nil {
			return err
		}
		if err := repos.Scans.Update(ctx, &paired); err != nil {
			return err
		}

		line = invoice.ApplyCarrierScan(line, carrier.Quantity)
		if err := repos.Invoices.UpdateLineCounters(ctx, &line); err != nil {
			return err
		}
		complete, err := refreshAuditComplete(ctx, repos, inv.ID)
		if err != nil {
			return err
		}

		result = &primary.ScanResult{Scan: paired, Line: line, AuditComplete: complete, Resumed: resume}
		return nil
	})
	if err != nil {
		return nil, s.reject(ctx, log, req.InvoiceID, err)
	}
	if overScan != nil {
		return nil, s.block(ctx, log, overScan)
	}

	s.accept(ctx, log, result)
	return result, nil
}

// resumeCustomerSide recovers the customer label of a carrier scan from the
// latest pending customer scan of the line matched by carrier part.
func (s *AuditServiceImpl) resumeCustomerSide(ctx context.Context, log logrus.FieldLogger, repos secondary.Repositories, lines []invoice.Line, carrier scan.Reading, operator string) (scan.Reading, error) {
	line, err := invoice.MatchCarrierPart(lines, carrier.PartCode)
	if err != nil {
		return scan.Reading{}, err
	}
	pending, err := repos.Scans.LatestPending(ctx, line.ID)
	if err != nil {
		return scan.Reading{}, err
	}
	if pending == nil {
		return scan.Reading{}, fmt.Errorf("%w on line %s", scan.ErrNoPendingCustomerScan, line.ID)
	}
	if pending.ScannedBy != operator {
		// Multi-operator hand-off is allowed; keep a trace of it.
		log.WithFields(logrus.Fields{
			"scan_id":           pending.ID,
			"customer_operator": pending.ScannedBy,
		}).Info("carrier side completed by a different operator")
	}
	customer, err := scan.ReadCustomer(pending.CustomerPayload)
	if err != nil {
		return scan.Reading{}, fmt.Errorf("failed to re-parse stored customer label of scan %s: %w", pending.ID, err)
	}
	return customer, nil
}

// RecordPairedScan records both labels of a bin in a single call, without
// an intermediate pending row.
func (s *AuditServiceImpl) RecordPairedScan(ctx context.Context, req primary.PairedScanRequest) (*primary.ScanResult, error) {
	if err := validateRequest(s.validate, req); err != nil {
		return nil, err
	}
	log := requestLogger(ctx, s.logger).WithFields(logrus.Fields{
		"invoice_id": req.InvoiceID,
		"operator":   req.ScannedBy,
		"side":       "both",
	})

	customer, err := scan.ReadCustomer(req.CustomerPayload)
	if err != nil {
		return nil, s.reject(ctx, log, req.InvoiceID, fmt.Errorf("failed to parse customer label: %w", err))
	}
	carrier, err := scan.ReadCarrier(req.CarrierPayload)
	if err != nil {
		return nil, s.reject(ctx, log, req.InvoiceID, fmt.Errorf("failed to parse carrier label: %w", err))
	}

	var (
		result   *primary.ScanResult
		overScan *scan.OverScanError
	)
	err = s.store.WithTransaction(ctx, func(ctx context.Context, repos secondary.Repositories) error {
		inv, lines, err := s.openInvoice(ctx, repos, req.InvoiceID)
		if err != nil {
			return err
		}
		if err := scan.CheckQuantities(customer.Parsed, carrier.Parsed); err != nil {
			return err
		}
		line, err := invoice.MatchBothParts(lines, customer.PartCode, carrier.PartCode)
		if err != nil {
			return err
		}

		customerRecorded, err := repos.Scans.BinRecorded(ctx, secondary.BinQuery{
			LineID:   line.ID,
			Context:  scan.ContextAudit,
			Side:     secondary.SideCustomer,
			BinID:    customer.BinID,
			Payloads: scan.PayloadKeys(customer.Payload),
		})
		if err != nil {
			return err
		}
		carrierRecorded, err := repos.Scans.BinRecorded(ctx, secondary.BinQuery{
			LineID:   line.ID,
			Context:  scan.ContextAudit,
			Side:     secondary.SideCarrier,
			BinID:    carrier.BinID,
			Payloads: scan.PayloadKeys(carrier.Payload),
		})
		if err != nil {
			return err
		}

		guards := []scan.GuardResult{
			scan.CanRecordCustomerScan(scan.CustomerScanContext{
				Line:            line,
				BinID:           customer.BinID,
				BinQuantity:     customer.Quantity,
				AlreadyRecorded: customerRecorded,
			}),
			scan.CanRecordCarrierScan(scan.CarrierScanContext{
				Line:            line,
				BinID:           carrier.BinID,
				BinQuantity:     carrier.Quantity,
				AlreadyRecorded: carrierRecorded,
			}),
		}
		for _, guard := range guards {
			if guard.OverScan() {
				a := newAlert(s.newID(), inv.ID, line.ID, guard.Step, customer.Payload, carrier.Payload, s.now())
				if err := raiseAlert(ctx, repos, a); err != nil {
					return err
				}
				overScan = overScanError(a)
				return nil
			}
			if err := guard.Error(); err != nil {
				return err
			}
		}

		now := s.now()
		record := scan.Scan{
			ID:              s.newID(),
			InvoiceID:       inv.ID,
			LineID:          line.ID,
			Context:         scan.ContextAudit,
			CustomerPayload: customer.Payload,
			CustomerBinID:   customer.BinID,
			BinQuantity:     customer.Quantity,
			ScannedBy:       req.ScannedBy,
			ScannedAt:       now,
			State: scan.Paired{
				CarrierPayload: carrier.Payload,
				CarrierBinID:   carrier.BinID,
				PairedBy:       req.ScannedBy,
				PairedAt:       now,
			},
		}
		if err := repos.Scans.Create(ctx, &record); err != nil {
			return err
		}

		line = invoice.ApplyCarrierScan(invoice.ApplyCustomerScan(line, customer.Quantity), carrier.Quantity)
		if err := repos.Invoices.UpdateLineCounters(ctx, &line); err != nil {
			return err
		}
		complete, err := refreshAuditComplete(ctx, repos, inv.ID)
		if err != nil {
			return err
		}

		result = &primary.ScanResult{Scan: record, Line: line, AuditComplete: complete}
		return nil
	})
	if err != nil {
		return nil, s.reject(ctx, log, req.InvoiceID, err)
	}
	if overScan != nil {
		return nil, s.block(ctx, log, overScan)
	}

	s.accept(ctx, log, result)
	return result, nil
}

// ListScans lists scans with optional filters.
func (s *AuditServiceImpl) ListScans(ctx context.Context, filters primary.ScanFilters) ([]*scan.Scan, error) {
	scans, err := s.store.Repositories().Scans.List(ctx, secondary.ScanFilters{
		InvoiceID: filters.InvoiceID,
		LineID:    filters.LineID,
		Context:   filters.Context,
		Status:    filters.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	return scans, nil
}

// Helper methods

// openInvoice locks the invoice, rejects it when blocked and loads its lines.
func (s *AuditServiceImpl) openInvoice(ctx context.Context, repos secondary.Repositories, invoiceID string) (*invoice.Invoice, []invoice.Line, error) {
	inv, err := repos.Invoices.GetForUpdate(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	if err := invoice.CheckOpen(*inv); err != nil {
		return nil, nil, err
	}
	lines, err := repos.Invoices.ListLines(ctx, inv.ID)
	if err != nil {
		return nil, nil, err
	}
	return inv, lineValues(lines), nil
}

func (s *AuditServiceImpl) accept(ctx context.Context, log logrus.FieldLogger, result *primary.ScanResult) {
	log.WithFields(logrus.Fields{
		"line_id":                   result.Line.ID,
		"scan_id":                   result.Scan.ID,
		"stage":                     result.Scan.Stage(),
		"customer_scanned_quantity": result.Line.CustomerScannedQuantity,
		"carrier_scanned_quantity":  result.Line.CarrierScannedQuantity,
		"audit_complete":            result.AuditComplete,
	}).Info("audit scan accepted")
	publish(ctx, s.publisher, log, secondary.EventScanAccepted, acceptedEvent(result.Scan, result.Line, result.AuditComplete))
}

func (s *AuditServiceImpl) reject(ctx context.Context, log logrus.FieldLogger, invoiceID string, err error) error {
	log.WithError(err).WithField("class", scan.Classify(err)).Info("audit scan rejected")
	publish(ctx, s.publisher, log, secondary.EventScanRejected, rejectedEvent(invoiceID, scan.ContextAudit, err))
	return err
}

func (s *AuditServiceImpl) block(ctx context.Context, log logrus.FieldLogger, e *scan.OverScanError) error {
	log.WithFields(logrus.Fields{
		"line_id":  e.LineID,
		"alert_id": e.AlertID,
		"step":     e.Step,
	}).Warn("over-scan: invoice blocked")
	publish(ctx, s.publisher, log, secondary.EventScanRejected, rejectedEvent(e.InvoiceID, scan.ContextAudit, e))
	publish(ctx, s.publisher, log, secondary.EventInvoiceBlocked, blockedEvent(e))
	return e
}

// Ensure AuditServiceImpl implements the interface
var _ primary.AuditService = (*AuditServiceImpl)(nil)
