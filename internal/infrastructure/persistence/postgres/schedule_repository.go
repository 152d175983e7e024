package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rentflow/payments/internal/domain"
	"github.com/rentflow/payments/internal/infrastructure/persistence"
)

const scheduleColumns = `
	id, tenant_id, property_id, lease_id, name, amount, currency,
	payment_method, bank_account_id, processor_token,
	recurrence_pattern, day_of_month, day_of_week,
	start_date, end_date, total_occurrences,
	active, paused_at, pause_reason,
	completed_occurrences, failed_occurrences,
	next_execution_time, last_execution_time, last_payment_id,
	auto_retry, max_retries, description,
	created_at, updated_at, version`

type ScheduleRepository struct {
	db persistence.Executor
}

func NewScheduleRepository(db persistence.Executor) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) Create(ctx context.Context, schedule *domain.PaymentSchedule) error {
	query := `
		INSERT INTO payment_schedules (` + scheduleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)
	`

	m := toScheduleModel(schedule)
	_, err := r.db.Exec(ctx, query,
		m.ID, m.TenantID, m.PropertyID, m.LeaseID, m.Name, m.Amount, m.Currency,
		m.PaymentMethod, m.BankAccountID, m.ProcessorToken,
		m.RecurrencePattern, m.DayOfMonth, m.DayOfWeek,
		m.StartDate, m.EndDate, m.TotalOccurrences,
		m.Active, m.PausedAt, m.PauseReason,
		m.CompletedOccurrences, m.FailedOccurrences,
		m.NextExecutionTime, m.LastExecutionTime, m.LastPaymentID,
		m.AutoRetry, m.MaxRetries, m.Description,
		m.CreatedAt, m.UpdatedAt, m.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}

	return nil
}

func (r *ScheduleRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.PaymentSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM payment_schedules WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	return scanSchedule(row, id.String())
}

// FindDue finds active schedules whose next execution time has arrived. A
// limit of 0 means no limit.
func (r *ScheduleRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*domain.PaymentSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM payment_schedules
		WHERE active = true
		  AND next_execution_time IS NOT NULL
		  AND next_execution_time <= $1
		ORDER BY next_execution_time ASC
	`
	args := []any{now}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query due schedules: %w", err)
	}
	return collectSchedules(rows)
}

func (r *ScheduleRepository) FindByTenantID(ctx context.Context, tenantID uuid.UUID) ([]*domain.PaymentSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM payment_schedules WHERE tenant_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query schedules by tenant_id: %w", err)
	}
	return collectSchedules(rows)
}

func (r *ScheduleRepository) FindByLeaseID(ctx context.Context, leaseID uuid.UUID) ([]*domain.PaymentSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM payment_schedules WHERE lease_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, leaseID)
	if err != nil {
		return nil, fmt.Errorf("query schedules by lease_id: %w", err)
	}
	return collectSchedules(rows)
}

// Update persists the schedule only if the stored version still matches.
func (r *ScheduleRepository) Update(ctx context.Context, schedule *domain.PaymentSchedule) error {
	query := `
		UPDATE payment_schedules
		SET active = $1, paused_at = $2, pause_reason = $3,
			completed_occurrences = $4, failed_occurrences = $5,
			next_execution_time = $6, last_execution_time = $7, last_payment_id = $8,
			end_date = $9, updated_at = $10, version = version + 1
		WHERE id = $11 AND version = $12
	`

	m := toScheduleModel(schedule)
	now := time.Now().UTC()
	result, err := r.db.Exec(ctx, query,
		m.Active, m.PausedAt, m.PauseReason,
		m.CompletedOccurrences, m.FailedOccurrences,
		m.NextExecutionTime, m.LastExecutionTime, m.LastPaymentID,
		m.EndDate, now,
		m.ID, m.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}

	if result.RowsAffected() == 0 {
		if _, findErr := r.FindByID(ctx, schedule.ID); findErr != nil {
			return findErr
		}
		return domain.NewStaleVersionError(schedule.ID.String())
	}

	schedule.Version++
	schedule.UpdatedAt = now
	return nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM payment_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewScheduleNotFoundError(id.String())
	}
	return nil
}

func collectSchedules(rows pgx.Rows) ([]*domain.PaymentSchedule, error) {
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.PaymentSchedule, error) {
		m, err := scanScheduleModel(row)
		if err != nil {
			return nil, err
		}
		return toDomainSchedule(m), nil
	})
	if err != nil {
		return nil, fmt.Errorf("error occurred while scanning rows: %w", err)
	}
	return results, nil
}

func scanScheduleModel(row pgx.Row) (ScheduleModel, error) {
	var m ScheduleModel
	err := row.Scan(
		&m.ID, &m.TenantID, &m.PropertyID, &m.LeaseID, &m.Name, &m.Amount, &m.Currency,
		&m.PaymentMethod, &m.BankAccountID, &m.ProcessorToken,
		&m.RecurrencePattern, &m.DayOfMonth, &m.DayOfWeek,
		&m.StartDate, &m.EndDate, &m.TotalOccurrences,
		&m.Active, &m.PausedAt, &m.PauseReason,
		&m.CompletedOccurrences, &m.FailedOccurrences,
		&m.NextExecutionTime, &m.LastExecutionTime, &m.LastPaymentID,
		&m.AutoRetry, &m.MaxRetries, &m.Description,
		&m.CreatedAt, &m.UpdatedAt, &m.Version,
	)
	return m, err
}

func scanSchedule(row pgx.Row, ref string) (*domain.PaymentSchedule, error) {
	m, err := scanScheduleModel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewScheduleNotFoundError(ref)
		}
		return nil, fmt.Errorf("failed to scan schedule: %w", err)
	}
	return toDomainSchedule(m), nil
}
