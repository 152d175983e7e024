// Package events defines the versioned contracts published to the event bus.
// Consumers tolerate unknown fields; Version is bumped on breaking changes.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TopicPaymentCreated   = "payment-created"
	TopicPaymentCompleted = "payment-completed"
	TopicPaymentFailed    = "payment-failed"
	TopicPaymentScheduled = "payment-scheduled"
)

type PaymentCreated struct {
	PaymentID     uuid.UUID       `json:"paymentId"`
	TenantID      uuid.UUID       `json:"tenantId"`
	PropertyID    uuid.UUID       `json:"propertyId"`
	LeaseID       uuid.UUID       `json:"leaseId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"paymentMethod"`
	PaymentType   string          `json:"paymentType"`
	ScheduledFor  time.Time       `json:"scheduledFor"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
}

func (PaymentCreated) EventType() string { return "payment.created" }

type PaymentCompleted struct {
	PaymentID        uuid.UUID       `json:"paymentId"`
	TransactionID    string          `json:"transactionId"`
	SettledAmount    decimal.Decimal `json:"settledAmount"`
	FeeAmount        decimal.Decimal `json:"feeAmount"`
	SettlementMethod string          `json:"settlementMethod"`
	SettledAt        time.Time       `json:"settledAt"`
	Timestamp        time.Time       `json:"timestamp"`
	Version          int             `json:"version"`
}

func (PaymentCompleted) EventType() string { return "payment.completed" }

type PaymentFailed struct {
	PaymentID    uuid.UUID  `json:"paymentId"`
	ErrorCode    string     `json:"errorCode"`
	ErrorMessage string     `json:"errorMessage"`
	Retryable    bool       `json:"retryable"`
	RetryAfter   *time.Time `json:"retryAfter,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
	Version      int        `json:"version"`
}

func (PaymentFailed) EventType() string { return "payment.failed" }

type PaymentScheduled struct {
	ScheduleID        uuid.UUID  `json:"scheduleId"`
	TenantID          uuid.UUID  `json:"tenantId"`
	LeaseID           uuid.UUID  `json:"leaseId"`
	RecurrencePattern string     `json:"recurrencePattern"`
	NextExecution     *time.Time `json:"nextExecution,omitempty"`
	Timestamp         time.Time  `json:"timestamp"`
	Version           int        `json:"version"`
}

func (PaymentScheduled) EventType() string { return "payment.scheduled" }
