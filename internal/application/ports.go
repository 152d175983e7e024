package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentflow/payments/internal/domain"
	"github.com/rentflow/payments/internal/events"
)

// SettlementGateway is the port for the external partner that moves money.
// Transient and permanent partner errors surface as the same failure kind;
// retry eligibility is decided by the payment's own retry policy.
type SettlementGateway interface {
	Initiate(ctx context.Context, req SettlementRequest) (*SettlementResult, error)
}

type SettlementRequest struct {
	PaymentID      uuid.UUID
	TenantID       uuid.UUID
	LeaseID        uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	Method         domain.PaymentMethod
	BankAccountID  string
	ProcessorToken string
}

type SettlementResult struct {
	TransactionID string
	SettledAmount decimal.Decimal
	FeeAmount     decimal.Decimal
	Status        string
}

// LedgerWriter is the port for the double-entry ledger service.
type LedgerWriter interface {
	Record(ctx context.Context, entry LedgerEntry) error
	// HasEntry reports whether a ledger entry already exists for the payment.
	// Used to detect "charged externally, ledger missing" before re-charging.
	HasEntry(ctx context.Context, paymentID uuid.UUID) (bool, error)
}

type LedgerEntry struct {
	PaymentID     uuid.UUID
	TenantID      uuid.UUID
	PropertyID    uuid.UUID
	LeaseID       uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	TransactionID string
	Description   string
}

// EventPublisher is the port to the event bus. Publishing is fire-and-forget
// with respect to payment state: errors are logged by callers, never rolled
// back into the payment.
type EventPublisher interface {
	PublishPaymentCreated(ctx context.Context, event events.PaymentCreated) error
	PublishPaymentCompleted(ctx context.Context, event events.PaymentCompleted) error
	PublishPaymentFailed(ctx context.Context, event events.PaymentFailed) error
	PublishPaymentScheduled(ctx context.Context, event events.PaymentScheduled) error
}

// PaymentRepository is the port for payment persistence.
type PaymentRepository interface {
	// Create inserts a new payment. The idempotency key is unique at the
	// storage layer; a duplicate returns DUPLICATE_IDEMPOTENCY_KEY.
	Create(ctx context.Context, payment *domain.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error)
	FindByTenantID(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Payment, error)
	FindByParentID(ctx context.Context, parentID uuid.UUID) ([]*domain.Payment, error)
	FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]*domain.Payment, error)
	FindRetryable(ctx context.Context, now time.Time, limit int) ([]*domain.Payment, error)
	SumSettledByParent(ctx context.Context, parentID uuid.UUID) (decimal.Decimal, error)
	SumSettledByLease(ctx context.Context, leaseID uuid.UUID) (decimal.Decimal, error)
	// Update persists the payment iff the stored version matches the one the
	// payment was loaded with, then bumps it. A losing writer gets
	// STALE_VERSION and must re-read.
	Update(ctx context.Context, payment *domain.Payment) error
}

// ScheduleRepository is the port for schedule persistence.
type ScheduleRepository interface {
	Create(ctx context.Context, schedule *domain.PaymentSchedule) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.PaymentSchedule, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]*domain.PaymentSchedule, error)
	FindByTenantID(ctx context.Context, tenantID uuid.UUID) ([]*domain.PaymentSchedule, error)
	FindByLeaseID(ctx context.Context, leaseID uuid.UUID) ([]*domain.PaymentSchedule, error)
	Update(ctx context.Context, schedule *domain.PaymentSchedule) error
	Delete(ctx context.Context, id uuid.UUID) error
}
