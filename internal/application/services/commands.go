package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentflow/payments/internal/domain"
)

type CreatePaymentCommand struct {
	TenantID        uuid.UUID
	PropertyID      uuid.UUID
	LeaseID         uuid.UUID
	Amount          decimal.Decimal
	Currency        string
	PaymentType     domain.PaymentType
	PaymentMethod   domain.PaymentMethod
	BankAccountID   string
	ProcessorToken  string
	ScheduledFor    time.Time
	Description     string
	IdempotencyKey  string
	PartialPayment  bool
	ParentPaymentID *uuid.UUID
}

type CreateScheduleCommand struct {
	TenantID          uuid.UUID
	PropertyID        uuid.UUID
	LeaseID           uuid.UUID
	Name              string
	Amount            decimal.Decimal
	Currency          string
	PaymentMethod     domain.PaymentMethod
	BankAccountID     string
	ProcessorToken    string
	RecurrencePattern domain.RecurrencePattern
	DayOfMonth        int
	DayOfWeek         int
	StartDate         time.Time
	EndDate           *time.Time
	TotalOccurrences  int
	Description       string
}
