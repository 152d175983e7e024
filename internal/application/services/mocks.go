package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentflow/payments/internal/application"
	"github.com/rentflow/payments/internal/domain"
	"github.com/rentflow/payments/internal/events"
)

// MockPaymentRepository is an in-memory PaymentRepository with overridable
// behavior for failure injection.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]*domain.Payment

	CreateFn               func(ctx context.Context, payment *domain.Payment) error
	FindByIDFn             func(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	FindByIdempotencyKeyFn func(ctx context.Context, key string) (*domain.Payment, error)
	UpdateFn               func(ctx context.Context, payment *domain.Payment) error
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{payments: make(map[uuid.UUID]*domain.Payment)}
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, payment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.IdempotencyKey == payment.IdempotencyKey {
			return domain.NewDuplicateKeyError(payment.IdempotencyKey)
		}
	}
	m.payments[payment.ID] = clonePayment(payment)
	return nil
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.payments[id]; ok {
		return clonePayment(p), nil
	}
	return nil, domain.NewPaymentNotFoundError(id.String())
}

func (m *MockPaymentRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	if m.FindByIdempotencyKeyFn != nil {
		return m.FindByIdempotencyKeyFn(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.IdempotencyKey == key {
			return clonePayment(p), nil
		}
	}
	return nil, domain.NewPaymentNotFoundError(key)
}

func (m *MockPaymentRepository) FindByTenantID(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Payment
	for _, p := range m.payments {
		if p.TenantID == tenantID {
			out = append(out, clonePayment(p))
		}
	}
	return out, nil
}

func (m *MockPaymentRepository) FindByParentID(ctx context.Context, parentID uuid.UUID) ([]*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Payment
	for _, p := range m.payments {
		if p.ParentPaymentID != nil && *p.ParentPaymentID == parentID {
			out = append(out, clonePayment(p))
		}
	}
	return out, nil
}

func (m *MockPaymentRepository) FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Payment
	for _, p := range m.payments {
		if p.Status == domain.StatusPending && !p.ScheduledFor.After(now) {
			out = append(out, clonePayment(p))
		}
	}
	return out, nil
}

func (m *MockPaymentRepository) FindRetryable(ctx context.Context, now time.Time, limit int) ([]*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Payment
	for _, p := range m.payments {
		if p.Status == domain.StatusFailed && p.CanRetry(now) {
			out = append(out, clonePayment(p))
		}
	}
	return out, nil
}

func (m *MockPaymentRepository) SumSettledByParent(ctx context.Context, parentID uuid.UUID) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := decimal.Zero
	for _, p := range m.payments {
		if p.ParentPaymentID != nil && *p.ParentPaymentID == parentID &&
			p.Status == domain.StatusCompleted && p.SettledAmount != nil {
			sum = sum.Add(*p.SettledAmount)
		}
	}
	return sum, nil
}

func (m *MockPaymentRepository) SumSettledByLease(ctx context.Context, leaseID uuid.UUID) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := decimal.Zero
	for _, p := range m.payments {
		if p.LeaseID == leaseID && p.Status == domain.StatusCompleted && p.SettledAmount != nil {
			sum = sum.Add(*p.SettledAmount)
		}
	}
	return sum, nil
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, payment)
	}
	return m.DefaultUpdate(ctx, payment)
}

// DefaultUpdate is the in-memory update logic, exported so an UpdateFn
// override can fail selected writes and delegate the rest.
func (m *MockPaymentRepository) DefaultUpdate(ctx context.Context, payment *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.payments[payment.ID]
	if !ok {
		return domain.NewPaymentNotFoundError(payment.ID.String())
	}
	if stored.Version != payment.Version {
		return domain.NewStaleVersionError(payment.ID.String())
	}
	payment.Version++
	payment.UpdatedAt = time.Now().UTC()
	m.payments[payment.ID] = clonePayment(payment)
	return nil
}

func clonePayment(p *domain.Payment) *domain.Payment {
	cp := *p
	return &cp
}

// MockScheduleRepository is an in-memory ScheduleRepository.
type MockScheduleRepository struct {
	mu        sync.RWMutex
	schedules map[uuid.UUID]*domain.PaymentSchedule

	UpdateFn func(ctx context.Context, schedule *domain.PaymentSchedule) error
}

func NewMockScheduleRepository() *MockScheduleRepository {
	return &MockScheduleRepository{schedules: make(map[uuid.UUID]*domain.PaymentSchedule)}
}

func (m *MockScheduleRepository) Create(ctx context.Context, schedule *domain.PaymentSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[schedule.ID] = cloneSchedule(schedule)
	return nil
}

func (m *MockScheduleRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.PaymentSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.schedules[id]; ok {
		return cloneSchedule(s), nil
	}
	return nil, domain.NewScheduleNotFoundError(id.String())
}

func (m *MockScheduleRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*domain.PaymentSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.PaymentSchedule
	for _, s := range m.schedules {
		if s.IsDue(now) {
			out = append(out, cloneSchedule(s))
		}
	}
	return out, nil
}

func (m *MockScheduleRepository) FindByTenantID(ctx context.Context, tenantID uuid.UUID) ([]*domain.PaymentSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.PaymentSchedule
	for _, s := range m.schedules {
		if s.TenantID == tenantID {
			out = append(out, cloneSchedule(s))
		}
	}
	return out, nil
}

func (m *MockScheduleRepository) FindByLeaseID(ctx context.Context, leaseID uuid.UUID) ([]*domain.PaymentSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.PaymentSchedule
	for _, s := range m.schedules {
		if s.LeaseID == leaseID {
			out = append(out, cloneSchedule(s))
		}
	}
	return out, nil
}

func (m *MockScheduleRepository) Update(ctx context.Context, schedule *domain.PaymentSchedule) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, schedule)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.schedules[schedule.ID]
	if !ok {
		return domain.NewScheduleNotFoundError(schedule.ID.String())
	}
	if stored.Version != schedule.Version {
		return domain.NewStaleVersionError(schedule.ID.String())
	}
	schedule.Version++
	schedule.UpdatedAt = time.Now().UTC()
	m.schedules[schedule.ID] = cloneSchedule(schedule)
	return nil
}

func (m *MockScheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[id]; !ok {
		return domain.NewScheduleNotFoundError(id.String())
	}
	delete(m.schedules, id)
	return nil
}

func cloneSchedule(s *domain.PaymentSchedule) *domain.PaymentSchedule {
	cs := *s
	return &cs
}

// MockSettlementGateway scripts the settlement partner.
type MockSettlementGateway struct {
	mu       sync.Mutex
	Requests []application.SettlementRequest

	InitiateFn func(ctx context.Context, req application.SettlementRequest) (*application.SettlementResult, error)
}

func (m *MockSettlementGateway) Initiate(ctx context.Context, req application.SettlementRequest) (*application.SettlementResult, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.InitiateFn != nil {
		return m.InitiateFn(ctx, req)
	}
	return &application.SettlementResult{
		TransactionID: "tx-" + req.PaymentID.String()[:8],
		SettledAmount: req.Amount,
		FeeAmount:     decimal.Zero,
		Status:        "COMPLETED",
	}, nil
}

// MockLedgerWriter records ledger entries in memory.
type MockLedgerWriter struct {
	mu      sync.Mutex
	Entries []application.LedgerEntry

	RecordFn   func(ctx context.Context, entry application.LedgerEntry) error
	HasEntryFn func(ctx context.Context, paymentID uuid.UUID) (bool, error)
}

func (m *MockLedgerWriter) Record(ctx context.Context, entry application.LedgerEntry) error {
	if m.RecordFn != nil {
		if err := m.RecordFn(ctx, entry); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, entry)
	return nil
}

func (m *MockLedgerWriter) HasEntry(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	if m.HasEntryFn != nil {
		return m.HasEntryFn(ctx, paymentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Entries {
		if e.PaymentID == paymentID {
			return true, nil
		}
	}
	return false, nil
}

// MockEventPublisher captures published events for assertions.
type MockEventPublisher struct {
	mu        sync.Mutex
	Created   []events.PaymentCreated
	Completed []events.PaymentCompleted
	Failed    []events.PaymentFailed
	Scheduled []events.PaymentScheduled

	PublishErr error
}

func (m *MockEventPublisher) PublishPaymentCreated(ctx context.Context, event events.PaymentCreated) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Created = append(m.Created, event)
	return nil
}

func (m *MockEventPublisher) PublishPaymentCompleted(ctx context.Context, event events.PaymentCompleted) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Completed = append(m.Completed, event)
	return nil
}

func (m *MockEventPublisher) PublishPaymentFailed(ctx context.Context, event events.PaymentFailed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Failed = append(m.Failed, event)
	return nil
}

func (m *MockEventPublisher) PublishPaymentScheduled(ctx context.Context, event events.PaymentScheduled) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Scheduled = append(m.Scheduled, event)
	return nil
}
