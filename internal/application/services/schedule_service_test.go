package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentflow/payments/internal/application"
	"github.com/rentflow/payments/internal/application/services"
	"github.com/rentflow/payments/internal/domain"
	"github.com/rentflow/payments/internal/events"
	"github.com/rentflow/payments/internal/metrics"
)

type scheduleServiceFixture struct {
	service      *services.ScheduleService
	scheduleRepo *services.MockScheduleRepository
	publisher    *services.MockEventPublisher

	// The trigger is a fully wired payment orchestrator so firings run the
	// whole charge cycle against in-memory collaborators.
	payments    *services.PaymentService
	paymentRepo *services.MockPaymentRepository
	gateway     *services.MockSettlementGateway
}

func newScheduleServiceFixture(t *testing.T) *scheduleServiceFixture {
	t.Helper()
	f := &scheduleServiceFixture{
		scheduleRepo: services.NewMockScheduleRepository(),
		publisher:    &services.MockEventPublisher{},
		paymentRepo:  services.NewMockPaymentRepository(),
		gateway:      &services.MockSettlementGateway{},
	}
	m := metrics.New(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.payments = services.NewPaymentService(
		f.paymentRepo, f.gateway, &services.MockLedgerWriter{}, f.publisher, m, logger)
	f.service = services.NewScheduleService(
		f.scheduleRepo, f.payments, f.publisher, m, logger)
	return f
}

func createScheduleCommand(start time.Time) services.CreateScheduleCommand {
	return services.CreateScheduleCommand{
		TenantID:          uuid.New(),
		PropertyID:        uuid.New(),
		LeaseID:           uuid.New(),
		Name:              "Monthly rent",
		Amount:            decimal.RequireFromString("1200.00"),
		Currency:          "USD",
		PaymentMethod:     domain.MethodACH,
		RecurrencePattern: domain.PatternMonthly,
		DayOfMonth:        1,
		StartDate:         start,
	}
}

func TestCreateSchedule(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an active schedule and announces it", func(t *testing.T) {
		f := newScheduleServiceFixture(t)
		start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

		schedule, err := f.service.CreateSchedule(ctx, createScheduleCommand(start))

		require.NoError(t, err)
		assert.True(t, schedule.Active)
		require.NotNil(t, schedule.NextExecutionTime)
		assert.Equal(t, start, *schedule.NextExecutionTime)

		require.Len(t, f.publisher.Scheduled, 1)
		assert.Equal(t, schedule.ID, f.publisher.Scheduled[0].ScheduleID)
	})

	t.Run("rejects an invalid recurrence pattern", func(t *testing.T) {
		f := newScheduleServiceFixture(t)
		cmd := createScheduleCommand(time.Now().UTC())
		cmd.RecurrencePattern = "FORTNIGHTLY"

		_, err := f.service.CreateSchedule(ctx, cmd)

		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, application.ErrCodeValidationFailure, svcErr.Code)
	})
}

func TestExecuteDueSchedules(t *testing.T) {
	ctx := context.Background()

	t.Run("fires a due schedule and advances it one period", func(t *testing.T) {
		f := newScheduleServiceFixture(t)
		start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
		schedule, err := f.service.CreateSchedule(ctx, createScheduleCommand(start))
		require.NoError(t, err)

		now := start.Add(2 * time.Hour)
		fired, err := f.service.ExecuteDueSchedules(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 1, fired)

		stored, err := f.scheduleRepo.FindByID(ctx, schedule.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.CompletedOccurrences)
		assert.True(t, stored.Active)
		require.NotNil(t, stored.NextExecutionTime)
		assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), *stored.NextExecutionTime)
		require.NotNil(t, stored.LastPaymentID)

		payment, err := f.paymentRepo.FindByID(ctx, *stored.LastPaymentID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, payment.Status)
		assert.Equal(t, domain.TypeRecurring, payment.PaymentType)
		assert.True(t, payment.Amount.Equal(schedule.Amount))
	})

	t.Run("skips schedules that are not yet due", func(t *testing.T) {
		f := newScheduleServiceFixture(t)
		start := time.Now().UTC().Add(48 * time.Hour)
		_, err := f.service.CreateSchedule(ctx, createScheduleCommand(start))
		require.NoError(t, err)

		fired, err := f.service.ExecuteDueSchedules(ctx, time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, 0, fired)
		assert.Empty(t, f.gateway.Requests)
	})

	t.Run("redelivered firing for the same cycle charges exactly once", func(t *testing.T) {
		f := newScheduleServiceFixture(t)
		start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
		schedule, err := f.service.CreateSchedule(ctx, createScheduleCommand(start))
		require.NoError(t, err)

		stored, err := f.scheduleRepo.FindByID(ctx, schedule.ID)
		require.NoError(t, err)
		cycleID := uuid.NewSHA1(stored.ID, []byte(stored.NextExecutionTime.UTC().Format(time.RFC3339)))

		event := events.PaymentCreated{
			PaymentID:     cycleID,
			TenantID:      stored.TenantID,
			PropertyID:    stored.PropertyID,
			LeaseID:       stored.LeaseID,
			Amount:        stored.Amount,
			Currency:      stored.Currency,
			PaymentMethod: string(stored.PaymentMethod),
			PaymentType:   string(domain.TypeRecurring),
			ScheduledFor:  start,
			Timestamp:     start,
			Version:       1,
		}

		first, err := f.payments.HandlePaymentCreated(ctx, event)
		require.NoError(t, err)
		second, err := f.payments.HandlePaymentCreated(ctx, event)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Len(t, f.gateway.Requests, 1)
	})

	t.Run("failed firing stays due and counts the failure", func(t *testing.T) {
		f := newScheduleServiceFixture(t)
		start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
		schedule, err := f.service.CreateSchedule(ctx, createScheduleCommand(start))
		require.NoError(t, err)

		f.gateway.InitiateFn = func(context.Context, application.SettlementRequest) (*application.SettlementResult, error) {
			return nil, errors.New("partner unavailable")
		}

		fired, err := f.service.ExecuteDueSchedules(ctx, start.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, fired)

		stored, err := f.scheduleRepo.FindByID(ctx, schedule.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, stored.CompletedOccurrences)
		assert.Equal(t, 1, stored.FailedOccurrences)
		require.NotNil(t, stored.NextExecutionTime)
		assert.Equal(t, start, *stored.NextExecutionTime, "failed firing must not advance the schedule")
		assert.True(t, stored.IsDue(start.Add(2*time.Hour)))
	})

	t.Run("firing during the backoff window does not re-charge the partner", func(t *testing.T) {
		f := newScheduleServiceFixture(t)
		start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
		schedule, err := f.service.CreateSchedule(ctx, createScheduleCommand(start))
		require.NoError(t, err)
		cycleID := uuid.NewSHA1(schedule.ID, []byte(start.UTC().Format(time.RFC3339)))

		f.gateway.InitiateFn = func(context.Context, application.SettlementRequest) (*application.SettlementResult, error) {
			return nil, errors.New("partner unavailable")
		}

		fired, err := f.service.ExecuteDueSchedules(ctx, start.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, fired)
		require.Len(t, f.gateway.Requests, 1)

		// The schedule is still due, so the runner keeps redelivering the
		// same cycle while the payment sits inside its backoff window.
		for i := 2; i < 6; i++ {
			_, err = f.service.ExecuteDueSchedules(ctx, start.Add(time.Duration(i)*time.Hour))
			require.NoError(t, err)
		}

		payment, err := f.paymentRepo.FindByIdempotencyKey(ctx, cycleID.String())
		require.NoError(t, err)
		assert.Len(t, f.gateway.Requests, 1, "redelivery inside the backoff window must not charge again")
		assert.Equal(t, domain.StatusFailed, payment.Status)
		assert.Equal(t, 1, payment.RetryCount, "redelivery must not burn retry budget")

		stored, err := f.scheduleRepo.FindByID(ctx, schedule.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.NextExecutionTime)
		assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), *stored.NextExecutionTime,
			"once the payment exists the schedule moves on and the retry sweep owns it")

		// The retry sweep picks the payment up once the backoff elapses.
		f.gateway.InitiateFn = nil
		retried, err := f.payments.RetryFailedPayments(ctx, time.Now().UTC().Add(10*time.Minute), 10)
		require.NoError(t, err)
		assert.Equal(t, 1, retried)

		payment, err = f.paymentRepo.FindByIdempotencyKey(ctx, cycleID.String())
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, payment.Status)
		assert.Len(t, f.gateway.Requests, 2)
	})

	t.Run("final occurrence deactivates the schedule", func(t *testing.T) {
		f := newScheduleServiceFixture(t)
		start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
		cmd := createScheduleCommand(start)
		cmd.TotalOccurrences = 1
		schedule, err := f.service.CreateSchedule(ctx, cmd)
		require.NoError(t, err)

		fired, err := f.service.ExecuteDueSchedules(ctx, start.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, fired)

		stored, err := f.scheduleRepo.FindByID(ctx, schedule.ID)
		require.NoError(t, err)
		assert.False(t, stored.Active)
		assert.Nil(t, stored.NextExecutionTime)

		fired, err = f.service.ExecuteDueSchedules(ctx, start.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, fired)
	})
}

func TestPauseAndResumeSchedule(t *testing.T) {
	ctx := context.Background()
	f := newScheduleServiceFixture(t)
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	schedule, err := f.service.CreateSchedule(ctx, createScheduleCommand(start))
	require.NoError(t, err)

	paused, err := f.service.PauseSchedule(ctx, schedule.ID, "tenant dispute")
	require.NoError(t, err)
	assert.False(t, paused.Active)
	assert.Nil(t, paused.NextExecutionTime)
	assert.Equal(t, "tenant dispute", paused.PauseReason)

	fired, err := f.service.ExecuteDueSchedules(ctx, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, fired, "paused schedules must not fire")

	resumed, err := f.service.ResumeSchedule(ctx, schedule.ID)
	require.NoError(t, err)
	assert.True(t, resumed.Active)
	require.NotNil(t, resumed.NextExecutionTime)
	assert.False(t, resumed.NextExecutionTime.Before(time.Now().UTC().Truncate(24*time.Hour)))
}

func TestDeleteSchedule(t *testing.T) {
	ctx := context.Background()
	f := newScheduleServiceFixture(t)
	schedule, err := f.service.CreateSchedule(ctx, createScheduleCommand(time.Now().UTC().Add(time.Hour)))
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteSchedule(ctx, schedule.ID))

	_, err = f.service.GetSchedule(ctx, schedule.ID)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeNotFound, svcErr.Code)
}
