package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentflow/payments/internal/domain"
)

func createTestPayment(t *testing.T) *domain.Payment {
	t.Helper()
	money, err := domain.NewMoney(decimal.RequireFromString("1200.00"), "USD")
	require.NoError(t, err)

	payment, err := domain.NewPayment(
		uuid.New(), uuid.New(), uuid.New(),
		money,
		domain.TypeOneTime,
		domain.MethodACH,
		time.Now().UTC(),
		"",
	)
	require.NoError(t, err)
	return payment
}

func createProcessingPayment(t *testing.T) *domain.Payment {
	t.Helper()
	payment := createTestPayment(t)
	require.NoError(t, payment.MarkProcessing())
	return payment
}

func createCompletedPayment(t *testing.T) *domain.Payment {
	t.Helper()
	payment := createProcessingPayment(t)
	require.NoError(t, payment.MarkCompleted(payment.Amount, "tx-1"))
	return payment
}

func TestNewPayment(t *testing.T) {
	t.Run("creates payment successfully", func(t *testing.T) {
		payment := createTestPayment(t)

		assert.Equal(t, domain.StatusPending, payment.Status)
		assert.Equal(t, "1200", payment.Amount.String())
		assert.Equal(t, "USD", payment.Currency)
		assert.Equal(t, 0, payment.RetryCount)
		assert.Equal(t, domain.DefaultMaxRetries, payment.MaxRetries)
		assert.NotZero(t, payment.CreatedAt)
	})

	t.Run("generates an idempotency key when caller supplies none", func(t *testing.T) {
		payment := createTestPayment(t)

		assert.NotEmpty(t, payment.IdempotencyKey)
		_, err := uuid.Parse(payment.IdempotencyKey)
		assert.NoError(t, err)
	})

	t.Run("keeps the caller-supplied idempotency key", func(t *testing.T) {
		money, _ := domain.NewMoney(decimal.NewFromInt(100), "USD")
		payment, err := domain.NewPayment(
			uuid.New(), uuid.New(), uuid.New(),
			money, domain.TypeOneTime, domain.MethodCard, time.Now(), "key-42",
		)

		require.NoError(t, err)
		assert.Equal(t, "key-42", payment.IdempotencyKey)
	})

	t.Run("rejects nil tenant ID", func(t *testing.T) {
		money, _ := domain.NewMoney(decimal.NewFromInt(100), "USD")
		_, err := domain.NewPayment(
			uuid.Nil, uuid.New(), uuid.New(),
			money, domain.TypeOneTime, domain.MethodCard, time.Now(), "",
		)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "tenant ID is required")
	})
}

func TestNewMoney(t *testing.T) {
	t.Run("rejects negative amount", func(t *testing.T) {
		_, err := domain.NewMoney(decimal.NewFromInt(-100), "USD")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "amount cannot be negative")
	})

	t.Run("rejects non ISO currency code", func(t *testing.T) {
		_, err := domain.NewMoney(decimal.NewFromInt(100), "US")

		assert.Error(t, err)
	})
}

func TestPayment_StateTransitions(t *testing.T) {
	t.Run("PENDING -> PROCESSING", func(t *testing.T) {
		payment := createTestPayment(t)

		err := payment.MarkProcessing()

		require.NoError(t, err)
		assert.Equal(t, domain.StatusProcessing, payment.Status)
	})

	t.Run("PROCESSING -> COMPLETED records settlement", func(t *testing.T) {
		payment := createProcessingPayment(t)

		err := payment.MarkCompleted(decimal.RequireFromString("1200.00"), "tx-1")

		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, payment.Status)
		assert.Equal(t, "tx-1", *payment.TransactionID)
		assert.True(t, payment.SettledAmount.Equal(decimal.RequireFromString("1200.00")))
		assert.NotNil(t, payment.CompletedAt)
	})

	t.Run("PROCESSING -> FAILED records reason", func(t *testing.T) {
		payment := createProcessingPayment(t)

		err := payment.MarkFailed("gateway timeout")

		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, payment.Status)
		assert.Equal(t, "gateway timeout", *payment.FailureReason)
	})

	t.Run("FAILED -> PROCESSING allows retries", func(t *testing.T) {
		payment := createProcessingPayment(t)
		require.NoError(t, payment.MarkFailed("gateway timeout"))

		err := payment.MarkProcessing()

		require.NoError(t, err)
		assert.Equal(t, domain.StatusProcessing, payment.Status)
	})

	t.Run("processing a PROCESSING payment is ALREADY_PROCESSED", func(t *testing.T) {
		payment := createProcessingPayment(t)

		err := payment.MarkProcessing()

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeAlreadyProcessed))
	})

	t.Run("processing a COMPLETED payment is ALREADY_PROCESSED", func(t *testing.T) {
		payment := createCompletedPayment(t)

		err := payment.MarkProcessing()

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeAlreadyProcessed))
	})

	t.Run("completing requires a transaction ID", func(t *testing.T) {
		payment := createProcessingPayment(t)

		err := payment.MarkCompleted(payment.Amount, "")

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeMissingRequiredField))
		assert.Equal(t, domain.StatusProcessing, payment.Status)
	})

	t.Run("failing requires a reason", func(t *testing.T) {
		payment := createProcessingPayment(t)

		err := payment.MarkFailed("")

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeMissingRequiredField))
	})
}

func TestPayment_Cancel(t *testing.T) {
	t.Run("cancels a pending payment", func(t *testing.T) {
		payment := createTestPayment(t)

		require.NoError(t, payment.Cancel())
		assert.Equal(t, domain.StatusCancelled, payment.Status)
	})

	t.Run("cancels a failed payment", func(t *testing.T) {
		payment := createProcessingPayment(t)
		require.NoError(t, payment.MarkFailed("declined"))

		require.NoError(t, payment.Cancel())
		assert.Equal(t, domain.StatusCancelled, payment.Status)
	})

	t.Run("cannot cancel a completed payment", func(t *testing.T) {
		payment := createCompletedPayment(t)

		err := payment.Cancel()

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeCannotCancel))
		assert.Equal(t, domain.StatusCompleted, payment.Status)
	})
}

func TestPayment_TerminalStates(t *testing.T) {
	t.Run("no transition leaves COMPLETED", func(t *testing.T) {
		payment := createCompletedPayment(t)

		assert.True(t, payment.IsTerminal())
		assert.Error(t, payment.MarkFailed("late failure"))
		assert.Error(t, payment.Cancel())
		assert.Error(t, payment.MarkProcessing())
		assert.Equal(t, domain.StatusCompleted, payment.Status)
	})

	t.Run("no transition leaves CANCELLED", func(t *testing.T) {
		payment := createTestPayment(t)
		require.NoError(t, payment.Cancel())

		assert.True(t, payment.IsTerminal())
		err := payment.MarkProcessing()
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTransition))
	})
}

func TestPayment_RetryPolicy(t *testing.T) {
	now := time.Now().UTC()

	t.Run("fresh payment can retry", func(t *testing.T) {
		payment := createTestPayment(t)

		assert.True(t, payment.CanRetry(now))
	})

	t.Run("backoff doubles on each failure", func(t *testing.T) {
		payment := createTestPayment(t)

		payment.ScheduleRetry(now)
		assert.Equal(t, now.Add(2*time.Minute), *payment.RetryAfter)

		payment.ScheduleRetry(now)
		assert.Equal(t, now.Add(4*time.Minute), *payment.RetryAfter)

		payment.ScheduleRetry(now)
		assert.Equal(t, now.Add(8*time.Minute), *payment.RetryAfter)
	})

	t.Run("not retryable inside the backoff window", func(t *testing.T) {
		payment := createProcessingPayment(t)
		require.NoError(t, payment.MarkFailed("gateway timeout"))
		payment.ScheduleRetry(now)

		assert.False(t, payment.CanRetry(now.Add(time.Minute)))
		assert.True(t, payment.CanRetry(now.Add(3*time.Minute)))
	})

	t.Run("retry count never exceeds max retries", func(t *testing.T) {
		payment := createTestPayment(t)

		for i := 0; i < payment.MaxRetries; i++ {
			payment.ScheduleRetry(now)
		}

		assert.Equal(t, payment.MaxRetries, payment.RetryCount)
		assert.False(t, payment.CanRetry(now.Add(24*time.Hour)))
	})

	t.Run("not retryable once completed", func(t *testing.T) {
		payment := createCompletedPayment(t)

		assert.False(t, payment.CanRetry(now))
	})
}
