package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	appPayment "github.com/cassiomorais/invoicepay/internal/application/payment"
	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/cassiomorais/invoicepay/internal/domain/money"
	"github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/google/uuid"
)

// --- Payment Repository Mock ---

// MockPaymentRepository is an in-memory payment.Repository. It stores
// snapshots, so callers never share aggregates with the store, and it checks
// versions like the postgres adapter does.
type MockPaymentRepository struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID]payment.Snapshot
	order     []uuid.UUID
	saves     int

	// BeforeSave runs ahead of the default Save; an error aborts the save.
	BeforeSave func(p *payment.Payment) error

	SaveFunc                         func(ctx context.Context, p *payment.Payment) error
	FindByIDFunc                     func(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	FindByIDForUpdateFunc            func(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	FindLatestByInvoiceIDFunc        func(ctx context.Context, invoiceID payment.InvoiceID) (*payment.Payment, error)
	CountByInvoiceIDFunc             func(ctx context.Context, invoiceID payment.InvoiceID) (int, error)
	ExistsByInvoiceIDAndStatusInFunc func(ctx context.Context, invoiceID payment.InvoiceID, statuses ...payment.Status) (bool, error)
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{snapshots: make(map[uuid.UUID]payment.Snapshot)}
}

// AddPayment pre-populates the mock, bypassing the version check.
func (m *MockPaymentRepository) AddPayment(p *payment.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snapshots[p.ID()]; !ok {
		m.order = append(m.order, p.ID())
	}
	m.snapshots[p.ID()] = p.Snapshot()
}

func (m *MockPaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, p)
	}
	if m.BeforeSave != nil {
		if err := m.BeforeSave(p); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s := p.Snapshot()
	stored, ok := m.snapshots[s.ID]
	if ok && stored.Version != s.Version {
		return domainErrors.ErrOptimisticLockFailed
	}
	if !ok {
		m.order = append(m.order, s.ID)
	}
	s.Version++
	m.snapshots[s.ID] = s
	m.saves++
	p.SyncVersion(s.Version)
	return nil
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[id]
	if !ok {
		return nil, domainErrors.NewDomainError("payment_not_found", "payment "+id.String()+" not found", domainErrors.ErrPaymentNotFound)
	}
	return payment.Reconstitute(s)
}

// FindByIDForUpdate delegates to FindByID unless scripted; the mock has no row locks.
func (m *MockPaymentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	if m.FindByIDForUpdateFunc != nil {
		return m.FindByIDForUpdateFunc(ctx, id)
	}
	return m.FindByID(ctx, id)
}

func (m *MockPaymentRepository) FindLatestByInvoiceID(ctx context.Context, invoiceID payment.InvoiceID) (*payment.Payment, error) {
	if m.FindLatestByInvoiceIDFunc != nil {
		return m.FindLatestByInvoiceIDFunc(ctx, invoiceID)
	}
	all, err := m.FindAllByInvoiceID(ctx, invoiceID)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[len(all)-1], nil
}

func (m *MockPaymentRepository) FindAllByInvoiceID(ctx context.Context, invoiceID payment.InvoiceID) ([]*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []payment.Snapshot
	for _, id := range m.order {
		if s := m.snapshots[id]; s.InvoiceID == invoiceID {
			matched = append(matched, s)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	result := make([]*payment.Payment, 0, len(matched))
	for _, s := range matched {
		p, err := payment.Reconstitute(s)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

func (m *MockPaymentRepository) ExistsByInvoiceID(ctx context.Context, invoiceID payment.InvoiceID) (bool, error) {
	n, err := m.CountByInvoiceID(ctx, invoiceID)
	return n > 0, err
}

func (m *MockPaymentRepository) CountByInvoiceID(ctx context.Context, invoiceID payment.InvoiceID) (int, error) {
	if m.CountByInvoiceIDFunc != nil {
		return m.CountByInvoiceIDFunc(ctx, invoiceID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.snapshots {
		if s.InvoiceID == invoiceID {
			n++
		}
	}
	return n, nil
}

func (m *MockPaymentRepository) ExistsByInvoiceIDAndStatusIn(ctx context.Context, invoiceID payment.InvoiceID, statuses ...payment.Status) (bool, error) {
	if m.ExistsByInvoiceIDAndStatusInFunc != nil {
		return m.ExistsByInvoiceIDAndStatusInFunc(ctx, invoiceID, statuses...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.snapshots {
		if s.InvoiceID != invoiceID {
			continue
		}
		for _, st := range statuses {
			if s.Status == st {
				return true, nil
			}
		}
	}
	return false, nil
}

// Stored returns the persisted state of a payment (test helper, no context needed).
func (m *MockPaymentRepository) Stored(id uuid.UUID) (payment.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[id]
	return s, ok
}

// SaveCount returns how many successful saves the mock has seen.
func (m *MockPaymentRepository) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// --- Gateway Mock ---

// CaptureCall records one Capture invocation.
type CaptureCall struct {
	Reference string
	Amount    *money.Money
}

// MockGateway is a scriptable appPayment.Gateway that records its calls.
type MockGateway struct {
	mu         sync.Mutex
	authorizes []appPayment.AuthorizeRequest
	captures   []CaptureCall
	voids      []string
	refSeq     int

	AuthorizeFunc func(ctx context.Context, req appPayment.AuthorizeRequest) (string, error)
	CaptureFunc   func(ctx context.Context, ref string, amount *money.Money) error
	VoidFunc      func(ctx context.Context, ref string) error
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) Authorize(ctx context.Context, req appPayment.AuthorizeRequest) (string, error) {
	m.mu.Lock()
	m.authorizes = append(m.authorizes, req)
	m.refSeq++
	ref := fmt.Sprintf("gw_ref_%d", m.refSeq)
	m.mu.Unlock()
	if m.AuthorizeFunc != nil {
		return m.AuthorizeFunc(ctx, req)
	}
	return ref, nil
}

func (m *MockGateway) Capture(ctx context.Context, ref string, amount *money.Money) error {
	m.mu.Lock()
	m.captures = append(m.captures, CaptureCall{Reference: ref, Amount: amount})
	m.mu.Unlock()
	if m.CaptureFunc != nil {
		return m.CaptureFunc(ctx, ref, amount)
	}
	return nil
}

func (m *MockGateway) Void(ctx context.Context, ref string) error {
	m.mu.Lock()
	m.voids = append(m.voids, ref)
	m.mu.Unlock()
	if m.VoidFunc != nil {
		return m.VoidFunc(ctx, ref)
	}
	return nil
}

func (m *MockGateway) AuthorizeCalls() []appPayment.AuthorizeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]appPayment.AuthorizeRequest(nil), m.authorizes...)
}

func (m *MockGateway) CaptureCalls() []CaptureCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CaptureCall(nil), m.captures...)
}

func (m *MockGateway) VoidCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.voids...)
}

// --- Event Bus Mock ---

// MockEventBus records every published batch.
type MockEventBus struct {
	mu      sync.Mutex
	batches [][]payment.Event

	PublishFunc func(ctx context.Context, events []payment.Event) error
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{}
}

func (m *MockEventBus) Publish(ctx context.Context, events []payment.Event) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, events); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, events)
	return nil
}

func (m *MockEventBus) Batches() [][]payment.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]payment.Event(nil), m.batches...)
}

// Events flattens every batch in publish order.
func (m *MockEventBus) Events() []payment.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []payment.Event
	for _, b := range m.batches {
		all = append(all, b...)
	}
	return all
}

// EventTypes returns the type of every published event in order.
func (m *MockEventBus) EventTypes() []string {
	events := m.Events()
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType())
	}
	return types
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Locker Mock ---

// MockLocker is a process-local Locker that records acquired keys.
type MockLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	acquired []string

	AcquireFunc func(ctx context.Context, key string) (func(context.Context) error, error)
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: make(map[string]bool)}
}

func (m *MockLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return nil, domainErrors.ErrLockAcquisitionFailed
	}
	m.held[key] = true
	m.acquired = append(m.acquired, key)
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, key)
		return nil
	}, nil
}

// Acquired lists every key taken so far.
func (m *MockLocker) Acquired() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acquired...)
}

// Held reports whether key is currently locked.
func (m *MockLocker) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[key]
}
