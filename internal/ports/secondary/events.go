package secondary

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/example/dispatch/internal/core/invoice"
)

// Event names published after scan and resolution outcomes.
const (
	EventScanAccepted   = "scan.accepted"
	EventScanRejected   = "scan.rejected"
	EventInvoiceBlocked = "invoice.blocked"
	EventAlertResolved  = "alert.resolved"
)

// EventPublisher broadcasts state changes to observers. Delivery is best
// effort and never part of a transaction.
type EventPublisher interface {
	Publish(ctx context.Context, name string, payload any) error
}

// ErrLockNotObtained is returned by Locker.Obtain when the key is held.
var ErrLockNotObtained = errors.New("lock not obtained")

// Locker hands out short-lived exclusive locks by key.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

// InvoiceSource reads invoices from an ingestion document.
type InvoiceSource interface {
	ReadInvoices(ctx context.Context, r io.Reader) ([]invoice.Draft, error)
}
