package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/example/dispatch/internal/core/alert"
	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/core/scan"
	"github.com/example/dispatch/internal/ports/primary"
	"github.com/example/dispatch/internal/ports/secondary"
)

// DefaultDispatchLockTTL bounds how long a vehicle dispatch holds its lock.
const DefaultDispatchLockTTL = 30 * time.Second

// errDispatchOverScan aborts a dispatch transaction so its alert can be
// raised in a fresh one.
var errDispatchOverScan = errors.New("dispatch aborted by over-scan")

// LoadingServiceImpl implements the LoadingService interface.
type LoadingServiceImpl struct {
	store     secondary.Store
	publisher secondary.EventPublisher
	locker    secondary.Locker
	logger    logrus.FieldLogger
	validate  *validator.Validate
	lockTTL   time.Duration
	now       func() time.Time
	newID     func() string
}

// NewLoadingService creates a new LoadingService with injected dependencies.
// locker may be nil, in which case dispatches are not serialized per vehicle.
func NewLoadingService(store secondary.Store, publisher secondary.EventPublisher, locker secondary.Locker, logger logrus.FieldLogger) *LoadingServiceImpl {
	return &LoadingServiceImpl{
		store:     store,
		publisher: publisher,
		locker:    locker,
		logger:    logger,
		validate:  validator.New(),
		lockTTL:   DefaultDispatchLockTTL,
		now:       utcNow,
		newID:     newUUID,
	}
}

// loadOutcome is the result of validating one bin inside a transaction:
// either an accepted load or an alert that still has to be raised.
type loadOutcome struct {
	result *primary.LoadingResult
	alert  *alert.Alert
}

// RecordLoadingScan validates and records one loaded bin.
func (s *LoadingServiceImpl) RecordLoadingScan(ctx context.Context, req primary.LoadingScanRequest) (*primary.LoadingResult, error) {
	if err := validateRequest(s.validate, req); err != nil {
		return nil, err
	}
	log := requestLogger(ctx, s.logger).WithFields(logrus.Fields{
		"invoice_id": req.InvoiceID,
		"operator":   req.ScannedBy,
	})

	reading, err := scan.ReadCustomer(req.Payload)
	if err != nil {
		return nil, s.reject(ctx, log, req.InvoiceID, fmt.Errorf("failed to parse customer label: %w", err))
	}

	var outcome loadOutcome
	err = s.store.WithTransaction(ctx, func(ctx context.Context, repos secondary.Repositories) error {
		var err error
		outcome, err = s.loadBin(ctx, repos, req.InvoiceID, reading, req.ScannedBy)
		if err != nil {
			return err
		}
		if outcome.alert != nil {
			return raiseAlert(ctx, repos, outcome.alert)
		}
		return nil
	})
	if err != nil {
		return nil, s.reject(ctx, log, req.InvoiceID, err)
	}
	if outcome.alert != nil {
		return nil, s.block(ctx, log, overScanError(outcome.alert))
	}

	s.accept(ctx, log, outcome.result)
	return outcome.result, nil
}

// loadBin runs the loading checks for one bin and, when accepted, records it.
func (s *LoadingServiceImpl) loadBin(ctx context.Context, repos secondary.Repositories, invoiceID string, reading scan.Reading, scannedBy string) (loadOutcome, error) {
	inv, err := repos.Invoices.GetForUpdate(ctx, invoiceID)
	if err != nil {
		return loadOutcome{}, err
	}
	if err := invoice.CheckOpen(*inv); err != nil {
		return loadOutcome{}, err
	}
	lines, err := repos.Invoices.ListLines(ctx, inv.ID)
	if err != nil {
		return loadOutcome{}, err
	}
	line, err := invoice.MatchCustomerPart(lineValues(lines), reading.PartCode)
	if err != nil {
		return loadOutcome{}, err
	}

	expected, err := expectedBins(ctx, repos.Scans, line)
	if err != nil {
		return loadOutcome{}, err
	}
	loaded, err := repos.Scans.CountByLine(ctx, line.ID, scan.ContextLoading)
	if err != nil {
		return loadOutcome{}, err
	}
	already, err := repos.Scans.BinRecorded(ctx, secondary.BinQuery{
		LineID:   line.ID,
		Context:  scan.ContextLoading,
		Side:     secondary.SideCustomer,
		BinID:    reading.BinID,
		Payloads: scan.PayloadKeys(reading.Payload),
	})
	if err != nil {
		return loadOutcome{}, err
	}

	guard := scan.CanRecordLoadingScan(scan.LoadingScanContext{
		Line:          line,
		BinID:         reading.BinID,
		ExpectedBins:  expected,
		LoadedBins:    loaded,
		AlreadyLoaded: already,
	})
	if guard.OverScan() {
		return loadOutcome{
			alert: newAlert(s.newID(), inv.ID, line.ID, guard.Step, reading.Payload, "", s.now()),
		}, nil
	}
	if err := guard.Error(); err != nil {
		return loadOutcome{}, err
	}

	record := scan.Scan{
		ID:              s.newID(),
		InvoiceID:       inv.ID,
		LineID:          line.ID,
		Context:         scan.ContextLoading,
		CustomerPayload: reading.Payload,
		CustomerBinID:   reading.BinID,
		BinQuantity:     reading.Quantity,
		ScannedBy:       scannedBy,
		ScannedAt:       s.now(),
		State:           scan.Loaded{},
	}
	if err := repos.Scans.Create(ctx, &record); err != nil {
		return loadOutcome{}, err
	}
	line = invoice.ApplyLoad(line)
	if err := repos.Invoices.UpdateLineCounters(ctx, &line); err != nil {
		return loadOutcome{}, err
	}
	complete, err := refreshLoadingComplete(ctx, repos, inv.ID)
	if err != nil {
		return loadOutcome{}, err
	}

	return loadOutcome{result: &primary.LoadingResult{
		Scan:            record,
		Line:            line,
		ExpectedBins:    expected,
		LoadedBins:      loaded + 1,
		LoadingComplete: complete,
	}}, nil
}

// DeleteLoadingScan removes a loading scan recorded by mistake.
func (s *LoadingServiceImpl) DeleteLoadingScan(ctx context.Context, req primary.DeleteLoadingScanRequest) error {
	if err := validateRequest(s.validate, req); err != nil {
		return err
	}
	log := requestLogger(ctx, s.logger).WithFields(logrus.Fields{
		"scan_id":  req.ScanID,
		"operator": req.DeletedBy,
	})

	var deleted scan.Scan
	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos secondary.Repositories) error {
		record, err := repos.Scans.GetByID(ctx, req.ScanID)
		if err != nil {
			return err
		}
		if record.Context != scan.ContextLoading {
			return fmt.Errorf("%w: scan %s is an %s scan", scan.ErrNotDeletable, record.ID, record.Context)
		}
		if _, err := repos.Invoices.GetForUpdate(ctx, record.InvoiceID); err != nil {
			return err
		}
		if err := repos.Scans.Delete(ctx, record.ID); err != nil {
			return err
		}

		line, err := repos.Invoices.GetLine(ctx, record.LineID)
		if err != nil {
			return err
		}
		updated := invoice.RemoveLoad(*line)
		if err := repos.Invoices.UpdateLineCounters(ctx, &updated); err != nil {
			return err
		}
		if _, err := refreshLoadingComplete(ctx, repos, record.InvoiceID); err != nil {
			return err
		}
		deleted = *record
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete loading scan: %w", err)
	}

	log.WithFields(logrus.Fields{
		"invoice_id": deleted.InvoiceID,
		"line_id":    deleted.LineID,
		"bin_id":     deleted.CustomerBinID,
	}).Info("loading scan deleted")
	return nil
}

// DispatchVehicle loads bins of several invoices onto one vehicle. Loads are
// processed in order inside one transaction; any failure aborts the whole
// dispatch. An over-scan still raises its alert and blocks its invoice.
func (s *LoadingServiceImpl) DispatchVehicle(ctx context.Context, req primary.DispatchRequest) (*primary.DispatchResult, error) {
	if err := validateRequest(s.validate, req); err != nil {
		return nil, err
	}
	log := requestLogger(ctx, s.logger).WithFields(logrus.Fields{
		"vehicle_id": req.VehicleID,
		"operator":   req.ScannedBy,
		"loads":      len(req.Loads),
	})

	readings := make([]scan.Reading, len(req.Loads))
	for i, load := range req.Loads {
		reading, err := scan.ReadCustomer(load.Payload)
		if err != nil {
			return nil, s.reject(ctx, log, load.InvoiceID, fmt.Errorf("failed to parse customer label of load %d: %w", i+1, err))
		}
		readings[i] = reading
	}

	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, "dispatch:vehicle:"+req.VehicleID, s.lockTTL)
		if errors.Is(err, secondary.ErrLockNotObtained) {
			return nil, fmt.Errorf("%w: vehicle %s", scan.ErrDispatchInProgress, req.VehicleID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to lock vehicle %s: %w", req.VehicleID, err)
		}
		defer func() {
			if err := lock.Release(ctx); err != nil {
				log.WithError(err).Warn("failed to release dispatch lock")
			}
		}()
	}

	var (
		results  []primary.LoadingResult
		pending  *alert.Alert
		failedAt int
	)
	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos secondary.Repositories) error {
		results = results[:0]
		for i, load := range req.Loads {
			outcome, err := s.loadBin(ctx, repos, load.InvoiceID, readings[i], req.ScannedBy)
			if err != nil {
				failedAt = i + 1
				return err
			}
			if outcome.alert != nil {
				failedAt = i + 1
				pending = outcome.alert
				return errDispatchOverScan
			}
			results = append(results, *outcome.result)
		}
		return nil
	})

	if errors.Is(err, errDispatchOverScan) {
		if err := s.store.WithTransaction(ctx, func(ctx context.Context, repos secondary.Repositories) error {
			return raiseAlert(ctx, repos, pending)
		}); err != nil {
			return nil, fmt.Errorf("dispatch of vehicle %s aborted at load %d and its alert could not be raised: %w", req.VehicleID, failedAt, err)
		}
		blockErr := s.block(ctx, log, overScanError(pending))
		return nil, fmt.Errorf("dispatch of vehicle %s aborted at load %d: %w", req.VehicleID, failedAt, blockErr)
	}
	if err != nil {
		invoiceID := ""
		if failedAt > 0 {
			invoiceID = req.Loads[failedAt-1].InvoiceID
		}
		s.reject(ctx, log, invoiceID, err)
		return nil, fmt.Errorf("dispatch of vehicle %s aborted at load %d: %w", req.VehicleID, failedAt, err)
	}

	for i := range results {
		s.accept(ctx, log, &results[i])
	}
	log.Info("vehicle dispatch committed")
	return &primary.DispatchResult{VehicleID: req.VehicleID, Loads: results}, nil
}

// Helper methods

func (s *LoadingServiceImpl) accept(ctx context.Context, log logrus.FieldLogger, result *primary.LoadingResult) {
	log.WithFields(logrus.Fields{
		"invoice_id":    result.Scan.InvoiceID,
		"line_id":       result.Line.ID,
		"scan_id":       result.Scan.ID,
		"loaded_bins":   result.LoadedBins,
		"expected_bins": result.ExpectedBins,
	}).Info("loading scan accepted")
	publish(ctx, s.publisher, log, secondary.EventScanAccepted, acceptedEvent(result.Scan, result.Line, result.LoadingComplete))
}

func (s *LoadingServiceImpl) reject(ctx context.Context, log logrus.FieldLogger, invoiceID string, err error) error {
	log.WithError(err).WithField("class", scan.Classify(err)).Info("loading scan rejected")
	publish(ctx, s.publisher, log, secondary.EventScanRejected, rejectedEvent(invoiceID, scan.ContextLoading, err))
	return err
}

func (s *LoadingServiceImpl) block(ctx context.Context, log logrus.FieldLogger, e *scan.OverScanError) error {
	log.WithFields(logrus.Fields{
		"invoice_id": e.InvoiceID,
		"line_id":    e.LineID,
		"alert_id":   e.AlertID,
		"step":       e.Step,
	}).Warn("over-scan: invoice blocked")
	publish(ctx, s.publisher, log, secondary.EventScanRejected, rejectedEvent(e.InvoiceID, scan.ContextLoading, e))
	publish(ctx, s.publisher, log, secondary.EventInvoiceBlocked, blockedEvent(e))
	return e
}

// Ensure LoadingServiceImpl implements the interface
var _ primary.LoadingService = (*LoadingServiceImpl)(nil)
