// Package alert contains the pure business logic for mismatch alerts.
// Guards are pure functions that evaluate preconditions without side effects.
package alert

import (
	"errors"
	"fmt"
	"time"
)

// Status of a mismatch alert.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Stage is the scanning stage in which an alert was raised.
type Stage string

const (
	StageCustomer Stage = "customer"
	StageInbound  Stage = "inbound"
	StageLoading  Stage = "loading"
)

// Step is the validation step that raised an alert.
type Step string

const (
	StepOverScanCustomer Step = "over_scan_customer"
	StepOverScanInbound  Step = "over_scan_inbound"
	StepOverScanLoading  Step = "over_scan_loading"
)

// Stage returns the stage a validation step belongs to.
func (s Step) Stage() Stage {
	switch s {
	case StepOverScanCustomer:
		return StageCustomer
	case StepOverScanInbound:
		return StageInbound
	default:
		return StageLoading
	}
}

// RequiresRollback reports whether approving an alert raised by this step
// discards the invoice's unpaired customer-stage scans. Inbound and loading
// steps never roll back, so paired data is kept.
func (s Step) RequiresRollback() bool {
	return s.Stage() == StageCustomer
}

// ParseStep converts a stored step name.
func ParseStep(v string) (Step, error) {
	switch Step(v) {
	case StepOverScanCustomer, StepOverScanInbound, StepOverScanLoading:
		return Step(v), nil
	}
	return "", fmt.Errorf("unknown validation step %q", v)
}

// Errors returned by alert resolution.
var (
	ErrAlertNotFound = errors.New("alert not found")
	ErrAlertResolved = errors.New("alert already resolved")
)

// Alert is a frozen-invoice incident awaiting administrative review.
type Alert struct {
	ID               string
	InvoiceID        string
	LineID           string
	Step             Step
	CustomerSnapshot string
	CarrierSnapshot  string // empty when no carrier-side scan was involved
	Status           Status
	ReviewedBy       string
	ReviewNote       string
	ReviewedAt       time.Time // zero until reviewed
	CreatedAt        time.Time
}

// Stage returns the stage the alert was raised in.
func (a Alert) Stage() Stage {
	return a.Step.Stage()
}

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrAlertResolved, r.Reason)
}

// ResolveContext provides context for approve/reject guards.
type ResolveContext struct {
	AlertID string
	Status  Status
}

// CanApprove evaluates whether an alert can be approved.
// Rules:
// - Status must be "pending" or "rejected"
func CanApprove(ctx ResolveContext) GuardResult {
	if ctx.Status == StatusPending || ctx.Status == StatusRejected {
		return GuardResult{Allowed: true}
	}
	return GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("cannot approve alert %s (current status: %s)", ctx.AlertID, ctx.Status),
	}
}

// CanReject evaluates whether an alert can be rejected.
// Rules:
// - Status must be "pending"
func CanReject(ctx ResolveContext) GuardResult {
	if ctx.Status == StatusPending {
		return GuardResult{Allowed: true}
	}
	return GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("can only reject pending alerts (alert %s is %s)", ctx.AlertID, ctx.Status),
	}
}

// Review records the administrative decision on an alert.
func Review(a Alert, status Status, reviewer, note string, at time.Time) Alert {
	a.Status = status
	a.ReviewedBy = reviewer
	a.ReviewNote = note
	a.ReviewedAt = at
	return a
}

// PendingScan is the minimal view of an unpaired customer-stage scan
// considered for rollback.
type PendingScan struct {
	ID        string
	LineID    string
	Quantity  int
	ScannedAt time.Time
}

// RollbackSet selects the pending scans created strictly before the alert.
// Returns nil when the alert's step does not roll back.
func RollbackSet(a Alert, pending []PendingScan) []PendingScan {
	if !a.Step.RequiresRollback() {
		return nil
	}
	var out []PendingScan
	for _, p := range pending {
		if p.ScannedAt.Before(a.CreatedAt) {
			out = append(out, p)
		}
	}
	return out
}
