package app

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/example/dispatch/internal/core/alert"
	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/core/scan"
	"github.com/example/dispatch/internal/ports/primary"
	"github.com/example/dispatch/internal/ports/secondary"
)

// memData is the full state of the in-memory store. Transactions work on a
// copy and replace the committed state only when they succeed.
type memData struct {
	invoices map[string]invoice.Invoice
	lines    map[string]invoice.Line
	scans    map[string]scan.Scan
	alerts   map[string]alert.Alert
	seq      map[string]int // insertion order across all entities
	next     int
}

func newMemData() *memData {
	return &memData{
		invoices: make(map[string]invoice.Invoice),
		lines:    make(map[string]invoice.Line),
		scans:    make(map[string]scan.Scan),
		alerts:   make(map[string]alert.Alert),
		seq:      make(map[string]int),
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.invoices {
		c.invoices[k] = v
	}
	for k, v := range d.lines {
		c.lines[k] = v
	}
	for k, v := range d.scans {
		c.scans[k] = v
	}
	for k, v := range d.alerts {
		c.alerts[k] = v
	}
	for k, v := range d.seq {
		c.seq[k] = v
	}
	c.next = d.next
	return c
}

func (d *memData) order(id string) {
	d.next++
	d.seq[id] = d.next
}

func (d *memData) repos() secondary.Repositories {
	return secondary.Repositories{
		Invoices: &memInvoiceRepo{d: d},
		Scans:    &memScanRepo{d: d},
		Alerts:   &memAlertRepo{d: d},
	}
}

// memStore implements secondary.Store in memory for testing.
type memStore struct {
	mu      sync.Mutex
	data    *memData
	commits int
}

func newMemStore() *memStore {
	return &memStore{data: newMemData()}
}

func (s *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, repos secondary.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.data.clone()
	if err := fn(ctx, work.repos()); err != nil {
		return err
	}
	s.data = work
	s.commits++
	return nil
}

func (s *memStore) Repositories() secondary.Repositories {
	return s.data.repos()
}

var _ secondary.Store = (*memStore)(nil)

type memInvoiceRepo struct{ d *memData }

func (r *memInvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice, lines []invoice.Line) error {
	r.d.invoices[inv.ID] = *inv
	r.d.order(inv.ID)
	for _, l := range lines {
		r.d.lines[l.ID] = l
		r.d.order(l.ID)
	}
	return nil
}

func (r *memInvoiceRepo) GetByID(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, ok := r.d.invoices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", invoice.ErrInvoiceNotFound, id)
	}
	return &inv, nil
}

func (r *memInvoiceRepo) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.GetByID(ctx, id)
}

func (r *memInvoiceRepo) List(ctx context.Context, filters secondary.InvoiceFilters) ([]*invoice.Invoice, error) {
	var out []*invoice.Invoice
	for _, inv := range r.d.invoices {
		inv := inv
		if filters.Blocked != nil && inv.Blocked != *filters.Blocked {
			continue
		}
		if filters.CustomerName != "" && inv.CustomerName != filters.CustomerName {
			continue
		}
		out = append(out, &inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memInvoiceRepo) ListLines(ctx context.Context, invoiceID string) ([]*invoice.Line, error) {
	var out []*invoice.Line
	for _, l := range r.d.lines {
		l := l
		if l.InvoiceID == invoiceID {
			out = append(out, &l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memInvoiceRepo) GetLine(ctx context.Context, lineID string) (*invoice.Line, error) {
	l, ok := r.d.lines[lineID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", invoice.ErrLineNotFound, lineID)
	}
	return &l, nil
}

func (r *memInvoiceRepo) UpdateLineCounters(ctx context.Context, line *invoice.Line) error {
	if _, ok := r.d.lines[line.ID]; !ok {
		return fmt.Errorf("%w: %s", invoice.ErrLineNotFound, line.ID)
	}
	r.d.lines[line.ID] = *line
	return nil
}

func (r *memInvoiceRepo) SetBlocked(ctx context.Context, invoiceID string, blocked bool, at time.Time) error {
	inv, ok := r.d.invoices[invoiceID]
	if !ok {
		return fmt.Errorf("%w: %s", invoice.ErrInvoiceNotFound, invoiceID)
	}
	inv.Blocked = blocked
	inv.BlockedAt = at
	r.d.invoices[invoiceID] = inv
	return nil
}

func (r *memInvoiceRepo) SetAuditComplete(ctx context.Context, invoiceID string, complete bool) error {
	inv := r.d.invoices[invoiceID]
	inv.AuditComplete = complete
	r.d.invoices[invoiceID] = inv
	return nil
}

func (r *memInvoiceRepo) SetLoadingComplete(ctx context.Context, invoiceID string, complete bool) error {
	inv := r.d.invoices[invoiceID]
	inv.LoadingComplete = complete
	r.d.invoices[invoiceID] = inv
	return nil
}

type memScanRepo struct{ d *memData }

func (r *memScanRepo) Create(ctx context.Context, s *scan.Scan) error {
	if _, ok := r.d.scans[s.ID]; ok {
		return fmt.Errorf("scan %s already exists", s.ID)
	}
	r.d.scans[s.ID] = *s
	r.d.order(s.ID)
	return nil
}

func (r *memScanRepo) GetByID(ctx context.Context, id string) (*scan.Scan, error) {
	s, ok := r.d.scans[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", scan.ErrScanNotFound, id)
	}
	return &s, nil
}

func (r *memScanRepo) Update(ctx context.Context, s *scan.Scan) error {
	if _, ok := r.d.scans[s.ID]; !ok {
		return fmt.Errorf("%w: %s", scan.ErrScanNotFound, s.ID)
	}
	r.d.scans[s.ID] = *s
	return nil
}

func (r *memScanRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.d.scans[id]; !ok {
		return fmt.Errorf("%w: %s", scan.ErrScanNotFound, id)
	}
	delete(r.d.scans, id)
	return nil
}

// sorted returns the scans matching keep, oldest first.
func (r *memScanRepo) sorted(keep func(scan.Scan) bool) []*scan.Scan {
	var out []*scan.Scan
	for _, s := range r.d.scans {
		s := s
		if keep(s) {
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScannedAt.Equal(out[j].ScannedAt) {
			return out[i].ScannedAt.Before(out[j].ScannedAt)
		}
		return r.d.seq[out[i].ID] < r.d.seq[out[j].ID]
	})
	return out
}

func (r *memScanRepo) LatestPendingForUpdate(ctx context.Context, lineID string) (*scan.Scan, error) {
	return r.LatestPending(ctx, lineID)
}

func (r *memScanRepo) LatestPending(ctx context.Context, lineID string) (*scan.Scan, error) {
	pending := r.sorted(func(s scan.Scan) bool {
		return s.LineID == lineID && s.Context == scan.ContextAudit && s.IsPending()
	})
	if len(pending) == 0 {
		return nil, nil
	}
	return pending[len(pending)-1], nil
}

func (r *memScanRepo) BinRecorded(ctx context.Context, q secondary.BinQuery) (bool, error) {
	for _, s := range r.d.scans {
		if s.LineID != q.LineID || s.Context != q.Context {
			continue
		}
		binID, payload := s.CustomerBinID, s.CustomerPayload
		if q.Side == secondary.SideCarrier {
			carrier, ok := s.Carrier()
			if !ok {
				continue
			}
			binID, payload = carrier.CarrierBinID, carrier.CarrierPayload
		}
		if binID == q.BinID {
			return true, nil
		}
		for _, p := range q.Payloads {
			if payload == p {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *memScanRepo) CountByLine(ctx context.Context, lineID string, scanCtx scan.Context) (int, error) {
	n := 0
	for _, s := range r.d.scans {
		if s.LineID == lineID && s.Context == scanCtx {
			n++
		}
	}
	return n, nil
}

func (r *memScanRepo) CountDistinctCustomerBins(ctx context.Context, lineID string, scanCtx scan.Context) (int, error) {
	bins := make(map[string]bool)
	for _, s := range r.d.scans {
		if s.LineID == lineID && s.Context == scanCtx {
			bins[s.CustomerBinID] = true
		}
	}
	return len(bins), nil
}

func (r *memScanRepo) ListPendingByInvoice(ctx context.Context, invoiceID string) ([]*scan.Scan, error) {
	return r.sorted(func(s scan.Scan) bool {
		return s.InvoiceID == invoiceID && s.Context == scan.ContextAudit && s.IsPending()
	}), nil
}

func (r *memScanRepo) List(ctx context.Context, filters secondary.ScanFilters) ([]*scan.Scan, error) {
	return r.sorted(func(s scan.Scan) bool {
		if filters.InvoiceID != "" && s.InvoiceID != filters.InvoiceID {
			return false
		}
		if filters.LineID != "" && s.LineID != filters.LineID {
			return false
		}
		if filters.Context != "" && s.Context != filters.Context {
			return false
		}
		if filters.Status != "" && s.Status() != filters.Status {
			return false
		}
		return true
	}), nil
}

type memAlertRepo struct{ d *memData }

func (r *memAlertRepo) Create(ctx context.Context, a *alert.Alert) error {
	r.d.alerts[a.ID] = *a
	r.d.order(a.ID)
	return nil
}

func (r *memAlertRepo) GetByID(ctx context.Context, id string) (*alert.Alert, error) {
	a, ok := r.d.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", alert.ErrAlertNotFound, id)
	}
	return &a, nil
}

func (r *memAlertRepo) GetForUpdate(ctx context.Context, id string) (*alert.Alert, error) {
	return r.GetByID(ctx, id)
}

func (r *memAlertRepo) UpdateReview(ctx context.Context, a *alert.Alert) error {
	if _, ok := r.d.alerts[a.ID]; !ok {
		return fmt.Errorf("%w: %s", alert.ErrAlertNotFound, a.ID)
	}
	r.d.alerts[a.ID] = *a
	return nil
}

func (r *memAlertRepo) List(ctx context.Context, filters secondary.AlertFilters) ([]*alert.Alert, error) {
	var out []*alert.Alert
	for _, a := range r.d.alerts {
		a := a
		if filters.InvoiceID != "" && a.InvoiceID != filters.InvoiceID {
			continue
		}
		if filters.Status != "" && a.Status != filters.Status {
			continue
		}
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return r.d.seq[out[i].ID] > r.d.seq[out[j].ID] })
	return out, nil
}

func (r *memAlertRepo) CountOpen(ctx context.Context, invoiceID string) (int, error) {
	n := 0
	for _, a := range r.d.alerts {
		if a.InvoiceID == invoiceID && a.Status != alert.StatusApproved {
			n++
		}
	}
	return n, nil
}

// mockPublisher implements secondary.EventPublisher for testing.
type mockPublisher struct {
	events     []string
	payloads   []any
	publishErr error
}

func (m *mockPublisher) Publish(ctx context.Context, name string, payload any) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.events = append(m.events, name)
	m.payloads = append(m.payloads, payload)
	return nil
}

func (m *mockPublisher) count(name string) int {
	n := 0
	for _, e := range m.events {
		if e == name {
			n++
		}
	}
	return n
}

// mockLocker implements secondary.Locker for testing.
type mockLocker struct {
	held      map[string]bool
	obtainErr error
}

func newMockLocker() *mockLocker {
	return &mockLocker{held: make(map[string]bool)}
}

func (m *mockLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (secondary.Lock, error) {
	if m.obtainErr != nil {
		return nil, m.obtainErr
	}
	if m.held[key] {
		return nil, secondary.ErrLockNotObtained
	}
	m.held[key] = true
	return &mockLock{locker: m, key: key}, nil
}

type mockLock struct {
	locker *mockLocker
	key    string
}

func (l *mockLock) Release(ctx context.Context) error {
	delete(l.locker.held, l.key)
	return nil
}

// mockInvoiceSource implements secondary.InvoiceSource for testing.
type mockInvoiceSource struct {
	drafts  []invoice.Draft
	readErr error
}

func (m *mockInvoiceSource) ReadInvoices(ctx context.Context, r io.Reader) ([]invoice.Draft, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.drafts, nil
}

// testClock hands out strictly increasing instants.
type testClock struct {
	t time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

// sequentialIDs returns an ID generator producing prefix-001, prefix-002, ...
func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%03d", prefix, n)
	}
}

// testEnv wires every service against one in-memory store.
type testEnv struct {
	store    *memStore
	pub      *mockPublisher
	locker   *mockLocker
	source   *mockInvoiceSource
	clock    *testClock
	logHook  *test.Hook
	audit    *AuditServiceImpl
	loading  *LoadingServiceImpl
	mismatch *MismatchServiceImpl
	invoices *InvoiceServiceImpl
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	env := &testEnv{
		store:   newMemStore(),
		pub:     &mockPublisher{},
		locker:  newMockLocker(),
		source:  &mockInvoiceSource{},
		clock:   newTestClock(),
		logHook: hook,
	}
	ids := sequentialIDs("ID")

	env.audit = NewAuditService(env.store, env.pub, logger)
	env.audit.now, env.audit.newID = env.clock.Now, ids
	env.loading = NewLoadingService(env.store, env.pub, env.locker, logger)
	env.loading.now, env.loading.newID = env.clock.Now, ids
	env.mismatch = NewMismatchService(env.store, env.pub, logger)
	env.mismatch.now = env.clock.Now
	env.invoices = NewInvoiceService(env.store, env.source, logger)
	env.invoices.now = env.clock.Now
	return env
}

// seedInvoice creates an invoice whose lines are given as
// customer part, carrier part, expected quantity triples.
func (e *testEnv) seedInvoice(t *testing.T, id string, lines ...primary.CreateInvoiceLine) {
	t.Helper()
	_, err := e.invoices.CreateInvoice(context.Background(), primary.CreateInvoiceRequest{
		ID:           id,
		CustomerName: "ACME",
		Lines:        lines,
	})
	if err != nil {
		t.Fatalf("failed to seed invoice %s: %v", id, err)
	}
}

func (e *testEnv) line(t *testing.T, lineID string) invoice.Line {
	t.Helper()
	l, err := e.store.Repositories().Invoices.GetLine(context.Background(), lineID)
	if err != nil {
		t.Fatalf("failed to get line %s: %v", lineID, err)
	}
	return *l
}

func (e *testEnv) invoice(t *testing.T, id string) invoice.Invoice {
	t.Helper()
	inv, err := e.store.Repositories().Invoices.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to get invoice %s: %v", id, err)
	}
	return *inv
}

func (e *testEnv) alerts(t *testing.T, invoiceID string) []*alert.Alert {
	t.Helper()
	alerts, err := e.store.Repositories().Alerts.List(context.Background(), secondary.AlertFilters{InvoiceID: invoiceID})
	if err != nil {
		t.Fatalf("failed to list alerts: %v", err)
	}
	return alerts
}

func (e *testEnv) scans(t *testing.T, filters secondary.ScanFilters) []*scan.Scan {
	t.Helper()
	scans, err := e.store.Repositories().Scans.List(context.Background(), filters)
	if err != nil {
		t.Fatalf("failed to list scans: %v", err)
	}
	return scans
}

func line(customerPart, carrierPart string, expected int) primary.CreateInvoiceLine {
	return primary.CreateInvoiceLine{
		CustomerPartCode: customerPart,
		CarrierPartCode:  carrierPart,
		ExpectedQuantity: expected,
	}
}

// customerLabel builds a fixed-position customer label.
func customerLabel(bin, part string, qty int) string {
	return fmt.Sprintf("%-35s%-15s%d", bin, part, qty)
}

// carrierLabel builds a marker-delimited carrier label. bin and part must
// not contain marker characters.
func carrierLabel(bin, part string, qty int) string {
	return fmt.Sprintf("VX9S%sP%sQ%d", bin, part, qty)
}
