package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rentflow/payments/internal/application"
	"github.com/rentflow/payments/internal/domain"
	"github.com/rentflow/payments/internal/events"
	"github.com/rentflow/payments/internal/metrics"
)

// PaymentTrigger is the orchestrator-side entry point a schedule firing is
// routed through.
type PaymentTrigger interface {
	HandlePaymentCreated(ctx context.Context, event events.PaymentCreated) (*domain.Payment, error)
}

// ScheduleService owns the recurring-schedule lifecycle and drives due
// schedules through the payment orchestrator.
type ScheduleService struct {
	scheduleRepo application.ScheduleRepository
	trigger      PaymentTrigger
	publisher    application.EventPublisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func NewScheduleService(
	scheduleRepo application.ScheduleRepository,
	trigger PaymentTrigger,
	publisher application.EventPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ScheduleService {
	return &ScheduleService{
		scheduleRepo: scheduleRepo,
		trigger:      trigger,
		publisher:    publisher,
		metrics:      m,
		logger:       logger,
	}
}

func (s *ScheduleService) CreateSchedule(ctx context.Context, cmd CreateScheduleCommand) (*domain.PaymentSchedule, error) {
	money, err := domain.NewMoney(cmd.Amount, cmd.Currency)
	if err != nil {
		return nil, application.NewValidationError(err)
	}

	schedule, err := domain.NewPaymentSchedule(
		cmd.TenantID, cmd.PropertyID, cmd.LeaseID,
		cmd.Name, money, cmd.PaymentMethod,
		cmd.RecurrencePattern, cmd.DayOfMonth, cmd.DayOfWeek,
		cmd.StartDate, cmd.EndDate, cmd.TotalOccurrences,
	)
	if err != nil {
		return nil, application.NewValidationError(err)
	}
	schedule.BankAccountID = cmd.BankAccountID
	schedule.ProcessorToken = cmd.ProcessorToken
	schedule.Description = cmd.Description

	if err := s.scheduleRepo.Create(ctx, schedule); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.publishScheduled(ctx, schedule)

	s.logger.Info("created payment schedule",
		"schedule_id", schedule.ID,
		"lease_id", schedule.LeaseID,
		"pattern", schedule.RecurrencePattern,
		"next_execution", schedule.NextExecutionTime)
	return schedule, nil
}

func (s *ScheduleService) GetSchedule(ctx context.Context, id uuid.UUID) (*domain.PaymentSchedule, error) {
	schedule, err := s.scheduleRepo.FindByID(ctx, id)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeScheduleNotFound) {
			return nil, application.NewNotFoundError(err)
		}
		return nil, application.NewInternalError(err)
	}
	return schedule, nil
}

func (s *ScheduleService) GetSchedulesByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.PaymentSchedule, error) {
	return s.scheduleRepo.FindByTenantID(ctx, tenantID)
}

func (s *ScheduleService) GetSchedulesByLease(ctx context.Context, leaseID uuid.UUID) ([]*domain.PaymentSchedule, error) {
	return s.scheduleRepo.FindByLeaseID(ctx, leaseID)
}

// PauseSchedule stops a schedule from firing until an operator resumes it.
func (s *ScheduleService) PauseSchedule(ctx context.Context, id uuid.UUID, reason string) (*domain.PaymentSchedule, error) {
	schedule, err := s.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	schedule.Pause(reason, time.Now().UTC())
	if err := s.scheduleRepo.Update(ctx, schedule); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("paused schedule", "schedule_id", id, "reason", reason)
	return schedule, nil
}

// ResumeSchedule reactivates a paused schedule from the current date.
func (s *ScheduleService) ResumeSchedule(ctx context.Context, id uuid.UUID) (*domain.PaymentSchedule, error) {
	schedule, err := s.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	schedule.Resume(time.Now().UTC())
	if err := s.scheduleRepo.Update(ctx, schedule); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("resumed schedule",
		"schedule_id", id, "next_execution", schedule.NextExecutionTime)
	return schedule, nil
}

// DeleteSchedule removes a schedule entirely; an explicit operator action.
func (s *ScheduleService) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetSchedule(ctx, id); err != nil {
		return err
	}
	if err := s.scheduleRepo.Delete(ctx, id); err != nil {
		return application.NewInternalError(err)
	}
	s.logger.Info("deleted schedule", "schedule_id", id)
	return nil
}

// ExecuteDueSchedules fires every active schedule whose next execution has
// arrived. Each firing routes a synthetic payment-created event through the
// orchestrator. A failed firing only counts the failure; the schedule stays
// due for the next tick and the deterministic payment id keeps the redelivery
// from double-charging.
func (s *ScheduleService) ExecuteDueSchedules(ctx context.Context, now time.Time) (int, error) {
	due, err := s.scheduleRepo.FindDue(ctx, now, 0)
	if err != nil {
		return 0, application.NewInternalError(err)
	}

	fired := 0
	for _, schedule := range due {
		if !schedule.IsDue(now) {
			continue
		}
		if err := s.executeSchedule(ctx, schedule, now); err != nil {
			s.logger.Error("schedule execution failed",
				"schedule_id", schedule.ID, "error", err)
			continue
		}
		fired++
	}

	if len(due) > 0 {
		s.logger.Info("executed due schedules", "due", len(due), "fired", fired)
	}
	return fired, nil
}

func (s *ScheduleService) executeSchedule(ctx context.Context, schedule *domain.PaymentSchedule, now time.Time) error {
	// Deterministic per cycle: a re-fire of the same (schedule, due instant)
	// resolves to the same payment through the idempotency guard.
	cycleID := uuid.NewSHA1(schedule.ID, []byte(schedule.NextExecutionTime.UTC().Format(time.RFC3339)))

	event := events.PaymentCreated{
		PaymentID:     cycleID,
		TenantID:      schedule.TenantID,
		PropertyID:    schedule.PropertyID,
		LeaseID:       schedule.LeaseID,
		Amount:        schedule.Amount,
		Currency:      schedule.Currency,
		PaymentMethod: string(schedule.PaymentMethod),
		PaymentType:   string(domain.TypeRecurring),
		ScheduledFor:  now,
		Timestamp:     now,
		Version:       1,
	}

	payment, err := s.trigger.HandlePaymentCreated(ctx, event)
	if err != nil {
		schedule.MarkExecutionFailed()
		if updateErr := s.scheduleRepo.Update(ctx, schedule); updateErr != nil {
			s.logger.Error("could not persist failed execution",
				"schedule_id", schedule.ID, "error", updateErr)
		}
		return err
	}

	schedule.MarkExecutionCompleted(now, payment.ID)
	if err := s.scheduleRepo.Update(ctx, schedule); err != nil {
		// A stale write means another tick already advanced the schedule;
		// the idempotency guard has kept the firing single.
		return err
	}

	s.metrics.SchedulesFired.Inc()
	s.logger.Info("executed schedule",
		"schedule_id", schedule.ID,
		"payment_id", payment.ID,
		"completed_occurrences", schedule.CompletedOccurrences,
		"active", schedule.Active)
	return nil
}

func (s *ScheduleService) publishScheduled(ctx context.Context, schedule *domain.PaymentSchedule) {
	err := s.publisher.PublishPaymentScheduled(ctx, events.PaymentScheduled{
		ScheduleID:        schedule.ID,
		TenantID:          schedule.TenantID,
		LeaseID:           schedule.LeaseID,
		RecurrencePattern: string(schedule.RecurrencePattern),
		NextExecution:     schedule.NextExecutionTime,
		Timestamp:         time.Now().UTC(),
		Version:           1,
	})
	if err != nil {
		s.logger.Error("failed to publish payment-scheduled",
			"schedule_id", schedule.ID, "error", err)
	}
}
