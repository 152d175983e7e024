package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentModel struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	PropertyID      uuid.UUID
	LeaseID         uuid.UUID
	Amount          decimal.Decimal
	Currency        string
	PaymentType     string
	PaymentMethod   string
	BankAccountID   string
	ProcessorToken  string
	Status          string
	SettledAmount   *decimal.Decimal
	FeeAmount       *decimal.Decimal
	TransactionID   *string
	FailureReason   *string
	RetryCount      int
	MaxRetries      int
	RetryAfter      *time.Time
	ScheduledFor    time.Time
	CompletedAt     *time.Time
	IdempotencyKey  string
	Description     string
	PartialPayment  bool
	ParentPaymentID *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int
}

type ScheduleModel struct {
	ID                   uuid.UUID
	TenantID             uuid.UUID
	PropertyID           uuid.UUID
	LeaseID              uuid.UUID
	Name                 string
	Amount               decimal.Decimal
	Currency             string
	PaymentMethod        string
	BankAccountID        string
	ProcessorToken       string
	RecurrencePattern    string
	DayOfMonth           int
	DayOfWeek            int
	StartDate            time.Time
	EndDate              *time.Time
	TotalOccurrences     int
	Active               bool
	PausedAt             *time.Time
	PauseReason          string
	CompletedOccurrences int
	FailedOccurrences    int
	NextExecutionTime    *time.Time
	LastExecutionTime    *time.Time
	LastPaymentID        *uuid.UUID
	AutoRetry            bool
	MaxRetries           int
	Description          string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Version              int
}
