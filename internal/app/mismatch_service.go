package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/example/dispatch/internal/core/alert"
	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/ports/primary"
	"github.com/example/dispatch/internal/ports/secondary"
)

// MismatchServiceImpl implements the MismatchService interface.
type MismatchServiceImpl struct {
	store     secondary.Store
	publisher secondary.EventPublisher
	logger    logrus.FieldLogger
	validate  *validator.Validate
	now       func() time.Time
}

// NewMismatchService creates a new MismatchService with injected dependencies.
func NewMismatchService(store secondary.Store, publisher secondary.EventPublisher, logger logrus.FieldLogger) *MismatchServiceImpl {
	return &MismatchServiceImpl{
		store:     store,
		publisher: publisher,
		logger:    logger,
		validate:  validator.New(),
		now:       utcNow,
	}
}

// ApproveAlert approves an alert. For customer-stage steps every pending
// customer scan of the invoice created before the alert is deleted and its
// counters rolled back. The invoice is unblocked once no other alert holds it.
func (s *MismatchServiceImpl) ApproveAlert(ctx context.Context, req primary.ResolveAlertRequest) (*primary.ApproveResult, error) {
	if err := validateRequest(s.validate, req); err != nil {
		return nil, err
	}
	log := requestLogger(ctx, s.logger).WithFields(logrus.Fields{
		"alert_id": req.AlertID,
		"reviewer": req.ReviewedBy,
	})

	var result primary.ApproveResult
	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos secondary.Repositories) error {
		a, err := repos.Alerts.GetForUpdate(ctx, req.AlertID)
		if err != nil {
			return err
		}
		if err := alert.CanApprove(alert.ResolveContext{AlertID: a.ID, Status: a.Status}).Error(); err != nil {
			return err
		}
		if _, err := repos.Invoices.GetForUpdate(ctx, a.InvoiceID); err != nil {
			return err
		}

		rolledBack, err := s.rollback(ctx, repos, *a)
		if err != nil {
			return err
		}

		approved := alert.Review(*a, alert.StatusApproved, req.ReviewedBy, req.Note, s.now())
		if err := repos.Alerts.UpdateReview(ctx, &approved); err != nil {
			return err
		}

		open, err := repos.Alerts.CountOpen(ctx, a.InvoiceID)
		if err != nil {
			return err
		}
		unblocked := open == 0
		if unblocked {
			if err := repos.Invoices.SetBlocked(ctx, a.InvoiceID, false, time.Time{}); err != nil {
				return err
			}
		}
		if len(rolledBack) > 0 {
			if _, err := refreshAuditComplete(ctx, repos, a.InvoiceID); err != nil {
				return err
			}
		}

		result = primary.ApproveResult{Alert: approved, RolledBack: rolledBack, Unblocked: unblocked}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to approve alert: %w", err)
	}

	log.WithFields(logrus.Fields{
		"invoice_id":  result.Alert.InvoiceID,
		"step":        result.Alert.Step,
		"rolled_back": len(result.RolledBack),
		"unblocked":   result.Unblocked,
	}).Info("alert approved")
	publish(ctx, s.publisher, log, secondary.EventAlertResolved, alertResolvedEvent{
		AlertID:    result.Alert.ID,
		InvoiceID:  result.Alert.InvoiceID,
		Status:     string(result.Alert.Status),
		Unblocked:  result.Unblocked,
		RolledBack: len(result.RolledBack),
	})
	return &result, nil
}

// rollback deletes the pending customer scans selected for an alert and
// returns their counters to the lines they were counted on.
func (s *MismatchServiceImpl) rollback(ctx context.Context, repos secondary.Repositories, a alert.Alert) ([]string, error) {
	if !a.Step.RequiresRollback() {
		return nil, nil
	}
	pending, err := repos.Scans.ListPendingByInvoice(ctx, a.InvoiceID)
	if err != nil {
		return nil, err
	}
	candidates := make([]alert.PendingScan, len(pending))
	for i, p := range pending {
		candidates[i] = alert.PendingScan{
			ID:        p.ID,
			LineID:    p.LineID,
			Quantity:  p.BinQuantity,
			ScannedAt: p.ScannedAt,
		}
	}

	var ids []string
	for _, p := range alert.RollbackSet(a, candidates) {
		line, err := repos.Invoices.GetLine(ctx, p.LineID)
		if err != nil {
			return nil, err
		}
		updated := invoice.RollbackCustomerScan(*line, p.Quantity)
		if err := repos.Invoices.UpdateLineCounters(ctx, &updated); err != nil {
			return nil, err
		}
		if err := repos.Scans.Delete(ctx, p.ID); err != nil {
			return nil, err
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// RejectAlert rejects an alert. The invoice stays blocked and no scan is touched.
func (s *MismatchServiceImpl) RejectAlert(ctx context.Context, req primary.ResolveAlertRequest) (*alert.Alert, error) {
	if err := validateRequest(s.validate, req); err != nil {
		return nil, err
	}
	log := requestLogger(ctx, s.logger).WithFields(logrus.Fields{
		"alert_id": req.AlertID,
		"reviewer": req.ReviewedBy,
	})

	var rejected alert.Alert
	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos secondary.Repositories) error {
		a, err := repos.Alerts.GetForUpdate(ctx, req.AlertID)
		if err != nil {
			return err
		}
		if err := alert.CanReject(alert.ResolveContext{AlertID: a.ID, Status: a.Status}).Error(); err != nil {
			return err
		}
		rejected = alert.Review(*a, alert.StatusRejected, req.ReviewedBy, req.Note, s.now())
		return repos.Alerts.UpdateReview(ctx, &rejected)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reject alert: %w", err)
	}

	log.WithFields(logrus.Fields{
		"invoice_id": rejected.InvoiceID,
		"step":       rejected.Step,
	}).Info("alert rejected, invoice stays blocked")
	publish(ctx, s.publisher, log, secondary.EventAlertResolved, alertResolvedEvent{
		AlertID:   rejected.ID,
		InvoiceID: rejected.InvoiceID,
		Status:    string(rejected.Status),
	})
	return &rejected, nil
}

// GetAlert retrieves an alert by ID.
func (s *MismatchServiceImpl) GetAlert(ctx context.Context, alertID string) (*alert.Alert, error) {
	return s.store.Repositories().Alerts.GetByID(ctx, alertID)
}

// ListAlerts lists alerts with optional filters.
func (s *MismatchServiceImpl) ListAlerts(ctx context.Context, filters primary.AlertFilters) ([]*alert.Alert, error) {
	alerts, err := s.store.Repositories().Alerts.List(ctx, secondary.AlertFilters{
		InvoiceID: filters.InvoiceID,
		Status:    filters.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// Ensure MismatchServiceImpl implements the interface
var _ primary.MismatchService = (*MismatchServiceImpl)(nil)
