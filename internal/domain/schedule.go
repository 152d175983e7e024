package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentSchedule drives recurring payment creation. Invariant: an active
// schedule always has a next execution time; an inactive one never does.
type PaymentSchedule struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	PropertyID uuid.UUID
	LeaseID    uuid.UUID

	Name     string
	Amount   decimal.Decimal
	Currency string

	PaymentMethod  PaymentMethod
	BankAccountID  string
	ProcessorToken string

	RecurrencePattern RecurrencePattern
	DayOfMonth        int // 1-31 for MONTHLY, 0 = unset
	DayOfWeek         int // 1-7 for WEEKLY, 0 = unset

	StartDate        time.Time
	EndDate          *time.Time
	TotalOccurrences int // 0 = unbounded

	Active      bool
	PausedAt    *time.Time
	PauseReason string

	CompletedOccurrences int
	FailedOccurrences    int

	NextExecutionTime *time.Time
	LastExecutionTime *time.Time
	LastPaymentID     *uuid.UUID

	AutoRetry   bool
	MaxRetries  int
	Description string

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
}

func NewPaymentSchedule(
	tenantID, propertyID, leaseID uuid.UUID,
	name string,
	amount Money,
	method PaymentMethod,
	pattern RecurrencePattern,
	dayOfMonth, dayOfWeek int,
	startDate time.Time,
	endDate *time.Time,
	totalOccurrences int,
) (*PaymentSchedule, error) {
	if tenantID == uuid.Nil {
		return nil, NewMissingRequiredFieldError("tenant ID")
	}
	if leaseID == uuid.Nil {
		return nil, NewMissingRequiredFieldError("lease ID")
	}
	if !pattern.Valid() {
		return nil, NewMissingRequiredFieldError("recurrence pattern")
	}
	if startDate.IsZero() {
		return nil, NewMissingRequiredFieldError("start date")
	}
	if dayOfMonth < 0 || dayOfMonth > 31 {
		return nil, NewMissingRequiredFieldError("day of month in range 1-31")
	}
	if dayOfWeek < 0 || dayOfWeek > 7 {
		return nil, NewMissingRequiredFieldError("day of week in range 1-7")
	}

	now := time.Now().UTC()
	first := firstExecution(startDate, now)

	return &PaymentSchedule{
		ID:                uuid.New(),
		TenantID:          tenantID,
		PropertyID:        propertyID,
		LeaseID:           leaseID,
		Name:              name,
		Amount:            amount.Amount,
		Currency:          amount.Currency,
		PaymentMethod:     method,
		RecurrencePattern: pattern,
		DayOfMonth:        dayOfMonth,
		DayOfWeek:         dayOfWeek,
		StartDate:         truncateToDay(startDate.UTC()),
		EndDate:           endDate,
		TotalOccurrences:  totalOccurrences,
		Active:            true,
		AutoRetry:         true,
		MaxRetries:        DefaultMaxRetries,
		NextExecutionTime: &first,
		CreatedAt:         now,
		UpdatedAt:         now,
		Version:           1,
	}, nil
}

// firstExecution is the start date at midnight UTC, or now if that has passed.
func firstExecution(startDate, now time.Time) time.Time {
	start := truncateToDay(startDate.UTC())
	if start.Before(now) {
		return now
	}
	return start
}

// IsDue reports whether the schedule should fire at the given instant.
func (s *PaymentSchedule) IsDue(now time.Time) bool {
	return s.Active && s.NextExecutionTime != nil && !s.NextExecutionTime.After(now)
}

// MarkExecutionCompleted advances the schedule after a successful firing and
// deactivates it when the end date or occurrence cap has been reached.
func (s *PaymentSchedule) MarkExecutionCompleted(now time.Time, paymentID uuid.UUID) {
	s.LastExecutionTime = &now
	s.LastPaymentID = &paymentID
	s.CompletedOccurrences++
	s.advance(now)
}

// MarkExecutionFailed counts the failure but leaves the schedule due, so a
// transient orchestration failure cannot silently stop recurring billing.
func (s *PaymentSchedule) MarkExecutionFailed() {
	s.FailedOccurrences++
}

func (s *PaymentSchedule) advance(base time.Time) {
	if s.TotalOccurrences > 0 && s.CompletedOccurrences >= s.TotalOccurrences {
		s.deactivate()
		return
	}

	next := NextDate(s.RecurrencePattern, base, s.DayOfMonth)
	if s.EndDate != nil && next.After(*s.EndDate) {
		s.deactivate()
		return
	}
	s.NextExecutionTime = &next
}

func (s *PaymentSchedule) deactivate() {
	s.Active = false
	s.NextExecutionTime = nil
}

// Pause is an explicit operator action; the schedule stops firing until resumed.
func (s *PaymentSchedule) Pause(reason string, now time.Time) {
	s.Active = false
	s.PausedAt = &now
	s.PauseReason = reason
	s.NextExecutionTime = nil
}

// Resume reactivates a paused schedule, recomputing the next execution from
// the current date rather than the stale anchor. A schedule that has already
// exhausted its occurrences stays inactive.
func (s *PaymentSchedule) Resume(now time.Time) {
	s.PausedAt = nil
	s.PauseReason = ""

	if s.TotalOccurrences > 0 && s.CompletedOccurrences >= s.TotalOccurrences {
		s.deactivate()
		return
	}

	next := NextDate(s.RecurrencePattern, now, s.DayOfMonth)
	if s.EndDate != nil && next.After(*s.EndDate) {
		s.deactivate()
		return
	}
	s.Active = true
	s.NextExecutionTime = &next
}

func (s *PaymentSchedule) IsPaused() bool {
	return s.PausedAt != nil
}
