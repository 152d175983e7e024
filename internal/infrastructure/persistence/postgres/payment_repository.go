package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rentflow/payments/internal/domain"
	"github.com/rentflow/payments/internal/infrastructure/persistence"
)

const paymentColumns = `
	id, tenant_id, property_id, lease_id, amount, currency,
	payment_type, payment_method, bank_account_id, processor_token, status,
	settled_amount, fee_amount, transaction_id, failure_reason,
	retry_count, max_retries, retry_after, scheduled_for, completed_at,
	idempotency_key, description, partial_payment, parent_payment_id,
	created_at, updated_at, version`

type PaymentRepository struct {
	db persistence.Executor
}

// NewPaymentRepository accepts any Executor, so callers can run the
// repository against the pool or inside a pgx.Tx.
func NewPaymentRepository(db persistence.Executor) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
	`

	m := toPaymentModel(payment)
	_, err := r.db.Exec(ctx, query,
		m.ID, m.TenantID, m.PropertyID, m.LeaseID, m.Amount, m.Currency,
		m.PaymentType, m.PaymentMethod, m.BankAccountID, m.ProcessorToken, m.Status,
		m.SettledAmount, m.FeeAmount, m.TransactionID, m.FailureReason,
		m.RetryCount, m.MaxRetries, m.RetryAfter, m.ScheduledFor, m.CompletedAt,
		m.IdempotencyKey, m.Description, m.PartialPayment, m.ParentPaymentID,
		m.CreatedAt, m.UpdatedAt, m.Version,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return domain.NewDuplicateKeyError(payment.IdempotencyKey)
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	return scanPayment(row, id.String())
}

func (r *PaymentRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE idempotency_key = $1`

	row := r.db.QueryRow(ctx, query, key)
	return scanPayment(row, key)
}

func (r *PaymentRepository) FindByTenantID(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query payments by tenant_id: %w", err)
	}
	return collectPayments(rows)
}

func (r *PaymentRepository) FindByParentID(ctx context.Context, parentID uuid.UUID) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments WHERE parent_payment_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("query payments by parent_payment_id: %w", err)
	}
	return collectPayments(rows)
}

// FindDueScheduled finds PENDING payments whose scheduled time has arrived.
func (r *PaymentRepository) FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'PENDING'
		  AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due scheduled payments: %w", err)
	}
	return collectPayments(rows)
}

// FindRetryable finds FAILED payments whose backoff window has elapsed and
// that still have retry budget.
func (r *PaymentRepository) FindRetryable(ctx context.Context, now time.Time, limit int) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'FAILED'
		  AND retry_count < max_retries
		  AND (retry_after IS NULL OR retry_after <= $1)
		ORDER BY retry_after ASC NULLS FIRST
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query retryable payments: %w", err)
	}
	return collectPayments(rows)
}

func (r *PaymentRepository) SumSettledByParent(ctx context.Context, parentID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(settled_amount), 0)
		FROM payments
		WHERE parent_payment_id = $1 AND status = 'COMPLETED'
	`

	var sum decimal.Decimal
	if err := r.db.QueryRow(ctx, query, parentID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum settled by parent: %w", err)
	}
	return sum, nil
}

func (r *PaymentRepository) SumSettledByLease(ctx context.Context, leaseID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(settled_amount), 0)
		FROM payments
		WHERE lease_id = $1 AND status = 'COMPLETED'
	`

	var sum decimal.Decimal
	if err := r.db.QueryRow(ctx, query, leaseID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum settled by lease: %w", err)
	}
	return sum, nil
}

// Update persists the payment only if the stored version still matches. Zero
// rows affected means another writer got there first.
func (r *PaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = $1,
			settled_amount = $2, fee_amount = $3,
			transaction_id = $4, failure_reason = $5,
			retry_count = $6, retry_after = $7, completed_at = $8,
			updated_at = $9, version = version + 1
		WHERE id = $10 AND version = $11
	`

	m := toPaymentModel(payment)
	now := time.Now().UTC()
	result, err := r.db.Exec(ctx, query,
		m.Status,
		m.SettledAmount, m.FeeAmount,
		m.TransactionID, m.FailureReason,
		m.RetryCount, m.RetryAfter, m.CompletedAt,
		now,
		m.ID, m.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}

	if result.RowsAffected() == 0 {
		if _, findErr := r.FindByID(ctx, payment.ID); findErr != nil {
			return findErr
		}
		return domain.NewStaleVersionError(payment.ID.String())
	}

	payment.Version++
	payment.UpdatedAt = now
	return nil
}

func collectPayments(rows pgx.Rows) ([]*domain.Payment, error) {
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Payment, error) {
		m, err := scanPaymentModel(row)
		if err != nil {
			return nil, err
		}
		return toDomainPayment(m), nil
	})
	if err != nil {
		return nil, fmt.Errorf("error occurred while scanning rows: %w", err)
	}
	return results, nil
}

func scanPaymentModel(row pgx.Row) (PaymentModel, error) {
	var m PaymentModel
	err := row.Scan(
		&m.ID, &m.TenantID, &m.PropertyID, &m.LeaseID, &m.Amount, &m.Currency,
		&m.PaymentType, &m.PaymentMethod, &m.BankAccountID, &m.ProcessorToken, &m.Status,
		&m.SettledAmount, &m.FeeAmount, &m.TransactionID, &m.FailureReason,
		&m.RetryCount, &m.MaxRetries, &m.RetryAfter, &m.ScheduledFor, &m.CompletedAt,
		&m.IdempotencyKey, &m.Description, &m.PartialPayment, &m.ParentPaymentID,
		&m.CreatedAt, &m.UpdatedAt, &m.Version,
	)
	return m, err
}

// scanPayment converts a single database row into a domain Payment.
func scanPayment(row pgx.Row, ref string) (*domain.Payment, error) {
	m, err := scanPaymentModel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewPaymentNotFoundError(ref)
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return toDomainPayment(m), nil
}
