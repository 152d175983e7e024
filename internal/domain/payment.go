// Package domain encodes the payment and schedule entities and their lifecycles
package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current state of a payment in its lifecycle
type PaymentStatus string

const (
	StatusPending          PaymentStatus = "PENDING"
	StatusProcessing       PaymentStatus = "PROCESSING"
	StatusCompleted        PaymentStatus = "COMPLETED"
	StatusFailed           PaymentStatus = "FAILED"
	StatusCancelled        PaymentStatus = "CANCELLED"
	StatusRefunded         PaymentStatus = "REFUNDED"
	StatusPartiallySettled PaymentStatus = "PARTIALLY_SETTLED"
)

const DefaultMaxRetries = 3

// retryBaseDelay is the unit for exponential backoff between retries.
const retryBaseDelay = 60 * time.Second

type Payment struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	PropertyID uuid.UUID
	LeaseID    uuid.UUID

	Amount   decimal.Decimal
	Currency string

	PaymentType    PaymentType
	PaymentMethod  PaymentMethod
	BankAccountID  string
	ProcessorToken string

	Status        PaymentStatus
	SettledAmount *decimal.Decimal
	FeeAmount     *decimal.Decimal
	TransactionID *string
	FailureReason *string

	RetryCount int
	MaxRetries int
	RetryAfter *time.Time

	ScheduledFor time.Time
	CompletedAt  *time.Time

	IdempotencyKey  string
	Description     string
	PartialPayment  bool
	ParentPaymentID *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
}

func NewPayment(
	tenantID, propertyID, leaseID uuid.UUID,
	amount Money,
	paymentType PaymentType,
	method PaymentMethod,
	scheduledFor time.Time,
	idempotencyKey string,
) (*Payment, error) {
	if tenantID == uuid.Nil {
		return nil, NewMissingRequiredFieldError("tenant ID")
	}
	if propertyID == uuid.Nil {
		return nil, NewMissingRequiredFieldError("property ID")
	}
	if leaseID == uuid.Nil {
		return nil, NewMissingRequiredFieldError("lease ID")
	}
	if idempotencyKey == "" {
		// Every payment carries a key so downstream calls stay replay-safe.
		idempotencyKey = uuid.New().String()
	}
	if scheduledFor.IsZero() {
		scheduledFor = time.Now().UTC()
	}

	return &Payment{
		ID:             uuid.New(),
		TenantID:       tenantID,
		PropertyID:     propertyID,
		LeaseID:        leaseID,
		Amount:         amount.Amount,
		Currency:       amount.Currency,
		PaymentType:    paymentType,
		PaymentMethod:  method,
		Status:         StatusPending,
		RetryCount:     0,
		MaxRetries:     DefaultMaxRetries,
		ScheduledFor:   scheduledFor,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
		Version:        1,
	}, nil
}

// MarkProcessing claims the payment for an orchestration run.
// A payment that is mid-flight or already settled surfaces ALREADY_PROCESSED
// so overlapping sweeps cannot double-charge.
func (p *Payment) MarkProcessing() error {
	switch p.Status {
	case StatusPending, StatusFailed:
		p.Status = StatusProcessing
		return nil
	case StatusProcessing, StatusCompleted:
		return NewAlreadyProcessedError(p.ID.String(), p.Status)
	default:
		return NewInvalidTransitionError(p.Status, StatusProcessing)
	}
}

// MarkCompleted records the settlement result and finishes the lifecycle.
func (p *Payment) MarkCompleted(settledAmount decimal.Decimal, transactionID string) error {
	if transactionID == "" {
		return NewMissingRequiredFieldError("transaction ID")
	}
	if err := p.transition(StatusCompleted); err != nil {
		return err
	}
	now := time.Now().UTC()
	p.SettledAmount = &settledAmount
	p.TransactionID = &transactionID
	p.CompletedAt = &now
	return nil
}

// MarkFailed records the failure reason; retry accounting is ScheduleRetry's job.
func (p *Payment) MarkFailed(reason string) error {
	if reason == "" {
		return NewMissingRequiredFieldError("failure reason")
	}
	if err := p.transition(StatusFailed); err != nil {
		return err
	}
	p.FailureReason = &reason
	return nil
}

// MarkPartiallySettled records the aggregate settled by child partial payments.
func (p *Payment) MarkPartiallySettled(aggregate decimal.Decimal) error {
	if err := p.transition(StatusPartiallySettled); err != nil {
		return err
	}
	p.SettledAmount = &aggregate
	return nil
}

// Cancel aborts a payment that has not yet settled.
func (p *Payment) Cancel() error {
	if p.Status == StatusCompleted {
		return NewCannotCancelError(p.ID.String())
	}
	return p.transition(StatusCancelled)
}

func (p *Payment) transition(target PaymentStatus) error {
	if err := p.canTransitionTo(target); err != nil {
		return err
	}
	p.Status = target
	return nil
}

// defines the legal payment state machine; nothing leaves a terminal state
func (p *Payment) canTransitionTo(target PaymentStatus) error {
	switch p.Status {
	case StatusPending:
		return p.allow(target, StatusProcessing, StatusCancelled, StatusPartiallySettled)
	case StatusProcessing:
		return p.allow(target, StatusCompleted, StatusFailed, StatusCancelled)
	case StatusFailed:
		return p.allow(target, StatusProcessing, StatusCancelled)
	case StatusPartiallySettled:
		return p.allow(target, StatusPartiallySettled)
	}
	return NewInvalidTransitionError(p.Status, target)
}

// Helper to check allowed state transitions
func (p *Payment) allow(target PaymentStatus, allowed ...PaymentStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(p.Status, target)
}

// IsTerminal reports whether the payment can never change state again.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case StatusCompleted, StatusCancelled, StatusRefunded:
		return true
	default:
		return false
	}
}

// CanRetry reports whether the payment is eligible for another processing
// attempt at the given instant. The backoff window must have elapsed.
func (p *Payment) CanRetry(now time.Time) bool {
	if p.RetryCount >= p.MaxRetries {
		return false
	}
	if p.Status != StatusFailed && p.Status != StatusPending {
		return false
	}
	return p.RetryAfter == nil || p.RetryAfter.Before(now)
}

// ScheduleRetry increments the attempt counter and pushes the next eligible
// instant out exponentially: 2, 4, 8 minutes for attempts 1-3.
func (p *Payment) ScheduleRetry(now time.Time) {
	p.RetryCount++
	next := now.Add(time.Duration(1<<p.RetryCount) * retryBaseDelay)
	p.RetryAfter = &next
}

// Reconstitute - Special constructor for loading from DB
func Reconstitute(
	id, tenantID, propertyID, leaseID uuid.UUID,
	amount decimal.Decimal, currency string,
	paymentType PaymentType, method PaymentMethod,
	bankAccountID, processorToken string,
	status PaymentStatus,
	settledAmount, feeAmount *decimal.Decimal,
	transactionID, failureReason *string,
	retryCount, maxRetries int, retryAfter *time.Time,
	scheduledFor time.Time, completedAt *time.Time,
	idempotencyKey, description string,
	partialPayment bool, parentPaymentID *uuid.UUID,
	createdAt, updatedAt time.Time,
	version int,
) *Payment {
	return &Payment{
		ID:              id,
		TenantID:        tenantID,
		PropertyID:      propertyID,
		LeaseID:         leaseID,
		Amount:          amount,
		Currency:        currency,
		PaymentType:     paymentType,
		PaymentMethod:   method,
		BankAccountID:   bankAccountID,
		ProcessorToken:  processorToken,
		Status:          status,
		SettledAmount:   settledAmount,
		FeeAmount:       feeAmount,
		TransactionID:   transactionID,
		FailureReason:   failureReason,
		RetryCount:      retryCount,
		MaxRetries:      maxRetries,
		RetryAfter:      retryAfter,
		ScheduledFor:    scheduledFor,
		CompletedAt:     completedAt,
		IdempotencyKey:  idempotencyKey,
		Description:     description,
		PartialPayment:  partialPayment,
		ParentPaymentID: parentPaymentID,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
		Version:         version,
	}
}
