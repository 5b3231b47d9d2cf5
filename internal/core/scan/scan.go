// Package scan contains the pure business logic of bin scanning: the scan
// lifecycle as a closed set of states, the validation guards of the audit and
// loading stages, and the error taxonomy shared by every scan operation.
// This is part of the Functional Core - no I/O, only pure functions.
package scan

import (
	"fmt"
	"time"
)

// Context separates the audit pass from the loading pass.
type Context string

const (
	ContextAudit   Context = "audit"
	ContextLoading Context = "loading"
)

// Stage is the persisted stage column of a scan.
type Stage string

const (
	StageCustomer Stage = "customer"
	StagePaired   Stage = "paired"
)

// Status is the persisted status column of a scan.
type Status string

const (
	StatusPending Status = "pending"
	StatusMatched Status = "matched"
)

// State is the lifecycle state of a scan. It is one of PendingCustomer,
// Paired or Loaded; each carries only the fields valid in that state.
type State interface {
	stage() Stage
	status() Status
}

// PendingCustomer is an audit customer-side scan waiting for its carrier label.
type PendingCustomer struct{}

// Paired is an audit scan whose carrier label has been matched.
type Paired struct {
	CarrierPayload string
	CarrierBinID   string
	PairedBy       string
	PairedAt       time.Time
}

// Loaded is a single-sided loading-stage scan.
type Loaded struct{}

func (PendingCustomer) stage() Stage   { return StageCustomer }
func (PendingCustomer) status() Status { return StatusPending }
func (Paired) stage() Stage            { return StagePaired }
func (Paired) status() Status          { return StatusMatched }
func (Loaded) stage() Stage            { return StageCustomer }
func (Loaded) status() Status          { return StatusMatched }

// Scan is one physical bin's label scan.
type Scan struct {
	ID              string
	InvoiceID       string
	LineID          string
	Context         Context
	CustomerPayload string
	CustomerBinID   string
	BinQuantity     int
	ScannedBy       string
	ScannedAt       time.Time
	State           State
}

// Stage returns the persisted stage of the scan.
func (s Scan) Stage() Stage { return s.State.stage() }

// Status returns the persisted status of the scan.
func (s Scan) Status() Status { return s.State.status() }

// IsPending reports whether the scan awaits its carrier counterpart.
func (s Scan) IsPending() bool {
	_, ok := s.State.(PendingCustomer)
	return ok
}

// Carrier returns the carrier side of a paired scan.
func (s Scan) Carrier() (Paired, bool) {
	p, ok := s.State.(Paired)
	return p, ok
}

// Pair completes a pending customer scan in place with its carrier side.
func Pair(s Scan, carrier Paired) (Scan, error) {
	if !s.IsPending() {
		return s, fmt.Errorf("%w: scan %s is %s/%s", ErrNotPending, s.ID, s.Stage(), s.Status())
	}
	s.State = carrier
	return s, nil
}

// StateFromColumns rebuilds the lifecycle state from the persisted columns.
// carrier is only consulted for paired rows.
func StateFromColumns(stage Stage, status Status, ctx Context, carrier Paired) (State, error) {
	switch {
	case stage == StageCustomer && status == StatusPending && ctx == ContextAudit:
		return PendingCustomer{}, nil
	case stage == StagePaired && status == StatusMatched && ctx == ContextAudit:
		return carrier, nil
	case stage == StageCustomer && status == StatusMatched && ctx == ContextLoading:
		return Loaded{}, nil
	}
	return nil, fmt.Errorf("invalid scan state: stage=%s status=%s context=%s", stage, status, ctx)
}
