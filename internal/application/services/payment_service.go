package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentflow/payments/internal/application"
	"github.com/rentflow/payments/internal/domain"
	"github.com/rentflow/payments/internal/events"
	"github.com/rentflow/payments/internal/metrics"
)

// PaymentService orchestrates the payment saga: claim the payment, charge the
// settlement partner, record the ledger entry, publish the outcome. The three
// external calls fail independently; state is captured on the payment rather
// than rolled back.
type PaymentService struct {
	paymentRepo application.PaymentRepository
	gateway     application.SettlementGateway
	ledger      application.LedgerWriter
	publisher   application.EventPublisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewPaymentService(
	paymentRepo application.PaymentRepository,
	gateway application.SettlementGateway,
	ledger application.LedgerWriter,
	publisher application.EventPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		gateway:     gateway,
		ledger:      ledger,
		publisher:   publisher,
		metrics:     m,
		logger:      logger,
	}
}

// CreatePayment creates a payment behind the idempotency guard. Submitting the
// same non-empty key twice returns the first payment with no new side effects.
func (s *PaymentService) CreatePayment(ctx context.Context, cmd CreatePaymentCommand) (*domain.Payment, error) {
	if cmd.IdempotencyKey != "" {
		existing, err := s.paymentRepo.FindByIdempotencyKey(ctx, cmd.IdempotencyKey)
		if err != nil && !domain.IsErrorCode(err, domain.ErrCodePaymentNotFound) {
			return nil, application.NewInternalError(err)
		}
		if existing != nil {
			s.logger.Info("returning existing payment for idempotency key",
				"payment_id", existing.ID,
				"idempotency_key", cmd.IdempotencyKey)
			return existing, nil
		}
	}

	money, err := domain.NewMoney(cmd.Amount, cmd.Currency)
	if err != nil {
		return nil, application.NewValidationError(err)
	}

	paymentType := cmd.PaymentType
	if cmd.PartialPayment {
		if cmd.ParentPaymentID == nil {
			return nil, application.NewValidationError(
				domain.NewMissingRequiredFieldError("parent payment ID"))
		}
		if _, err := s.paymentRepo.FindByID(ctx, *cmd.ParentPaymentID); err != nil {
			if domain.IsErrorCode(err, domain.ErrCodePaymentNotFound) {
				return nil, application.NewValidationError(
					domain.NewParentNotFoundError(cmd.ParentPaymentID.String()))
			}
			return nil, application.NewInternalError(err)
		}
		paymentType = domain.TypePartial
	}

	payment, err := domain.NewPayment(
		cmd.TenantID, cmd.PropertyID, cmd.LeaseID,
		money, paymentType, cmd.PaymentMethod,
		cmd.ScheduledFor, cmd.IdempotencyKey,
	)
	if err != nil {
		return nil, application.NewValidationError(err)
	}
	payment.BankAccountID = cmd.BankAccountID
	payment.ProcessorToken = cmd.ProcessorToken
	payment.Description = cmd.Description
	payment.PartialPayment = cmd.PartialPayment
	payment.ParentPaymentID = cmd.ParentPaymentID

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeDuplicateIdempotencyKey) {
			// Lost the insert race; the winner's payment is the answer.
			winner, findErr := s.paymentRepo.FindByIdempotencyKey(ctx, payment.IdempotencyKey)
			if findErr != nil {
				return nil, application.NewInternalError(findErr)
			}
			return winner, nil
		}
		return nil, application.NewInternalError(err)
	}

	s.metrics.PaymentsCreated.Inc()
	s.publishCreated(ctx, payment)

	s.logger.Info("created payment",
		"payment_id", payment.ID,
		"lease_id", payment.LeaseID,
		"amount", payment.Amount.String(),
		"partial", payment.PartialPayment)
	return payment, nil
}

// ProcessPayment drives one payment through the settlement saga.
func (s *PaymentService) ProcessPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, id)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodePaymentNotFound) {
			return nil, application.NewNotFoundError(err)
		}
		return nil, application.NewInternalError(err)
	}

	if err := payment.MarkProcessing(); err != nil {
		return nil, application.NewAlreadyProcessedError(err)
	}

	// The optimistic write is the mutual-exclusion point: of two concurrent
	// callers only one persists PROCESSING, the loser sees a stale version.
	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeStaleVersion) {
			return nil, application.NewAlreadyProcessedError(err)
		}
		return nil, application.NewInternalError(err)
	}

	if payment.TransactionID != nil {
		// A previous attempt already charged the partner. Reconcile the
		// ledger instead of charging again.
		return s.reconcileChargedPayment(ctx, payment)
	}

	result, err := s.gateway.Initiate(ctx, application.SettlementRequest{
		PaymentID:      payment.ID,
		TenantID:       payment.TenantID,
		LeaseID:        payment.LeaseID,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		Method:         payment.PaymentMethod,
		BankAccountID:  payment.BankAccountID,
		ProcessorToken: payment.ProcessorToken,
	})
	if err != nil {
		return nil, s.failPayment(ctx, payment, application.ErrCodeGatewayFailure,
			application.NewGatewayFailureError(err))
	}

	payment.FeeAmount = &result.FeeAmount

	if err := s.recordLedgerEntry(ctx, payment, result.TransactionID); err != nil {
		// The charge went through; keep the transaction id so a retry
		// reconciles instead of re-charging.
		payment.TransactionID = &result.TransactionID
		return nil, s.failPayment(ctx, payment, application.ErrCodeLedgerFailure,
			application.NewLedgerFailureError(err))
	}

	return s.completePayment(ctx, payment, result.SettledAmount, result.TransactionID)
}

// reconcileChargedPayment finishes a payment whose external charge succeeded
// on an earlier attempt but whose ledger write was lost.
func (s *PaymentService) reconcileChargedPayment(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	transactionID := *payment.TransactionID

	hasEntry, err := s.ledger.HasEntry(ctx, payment.ID)
	if err != nil {
		return nil, s.failPayment(ctx, payment, application.ErrCodeLedgerFailure,
			application.NewLedgerFailureError(err))
	}
	if !hasEntry {
		if err := s.recordLedgerEntry(ctx, payment, transactionID); err != nil {
			return nil, s.failPayment(ctx, payment, application.ErrCodeLedgerFailure,
				application.NewLedgerFailureError(err))
		}
	}

	s.logger.Info("reconciled externally charged payment",
		"payment_id", payment.ID,
		"transaction_id", transactionID)
	return s.completePayment(ctx, payment, payment.Amount, transactionID)
}

func (s *PaymentService) recordLedgerEntry(ctx context.Context, payment *domain.Payment, transactionID string) error {
	return s.ledger.Record(ctx, application.LedgerEntry{
		PaymentID:     payment.ID,
		TenantID:      payment.TenantID,
		PropertyID:    payment.PropertyID,
		LeaseID:       payment.LeaseID,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		TransactionID: transactionID,
		Description:   "Rent payment",
	})
}

func (s *PaymentService) completePayment(ctx context.Context, payment *domain.Payment, settled decimal.Decimal, transactionID string) (*domain.Payment, error) {
	if err := payment.MarkCompleted(settled, transactionID); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		return nil, s.recoverCompletionFailure(ctx, payment.ID, transactionID, err)
	}

	s.metrics.PaymentsCompleted.Inc()
	s.publishCompleted(ctx, payment)

	if payment.PartialPayment && payment.ParentPaymentID != nil {
		s.settleParent(ctx, payment)
	}

	s.logger.Info("processed payment",
		"payment_id", payment.ID,
		"transaction_id", transactionID,
		"settled", settled.String())
	return payment, nil
}

// recoverCompletionFailure keeps a charged payment reachable when the final
// persist fails. Left PROCESSING it would never be reloaded by either sweep,
// so it is parked FAILED with the transaction id intact and the next retry
// reconciles instead of re-charging.
func (s *PaymentService) recoverCompletionFailure(ctx context.Context, id uuid.UUID, transactionID string, cause error) error {
	fresh, findErr := s.paymentRepo.FindByID(ctx, id)
	if findErr != nil {
		s.logger.Error("could not reload payment after completion persist failure",
			"payment_id", id, "error", findErr)
		return application.NewInternalError(cause)
	}
	if fresh.Status != domain.StatusProcessing {
		// Another writer already moved it on.
		return application.NewInternalError(cause)
	}

	fresh.TransactionID = &transactionID
	return s.failPayment(ctx, fresh, application.ErrCodeInternal,
		application.NewInternalError(cause))
}

// failPayment captures the failure on the payment, schedules the backoff, and
// emits the failure event. The returned error is the supplied service error so
// synchronous callers see the cause.
func (s *PaymentService) failPayment(ctx context.Context, payment *domain.Payment, code string, svcErr *application.ServiceError) error {
	now := time.Now().UTC()

	if err := payment.MarkFailed(svcErr.Error()); err != nil {
		s.logger.Error("could not mark payment failed",
			"payment_id", payment.ID, "error", err)
		return svcErr
	}
	payment.ScheduleRetry(now)

	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		s.logger.Error("could not persist failed payment",
			"payment_id", payment.ID, "error", err)
		return svcErr
	}

	s.metrics.PaymentsFailed.Inc()
	s.publishFailed(ctx, payment, code, svcErr)

	s.logger.Error("payment processing failed",
		"payment_id", payment.ID,
		"code", code,
		"retry_count", payment.RetryCount,
		"retry_after", payment.RetryAfter,
		"error", svcErr)
	return svcErr
}

// settleParent refreshes a parent payment's aggregate after a child settles.
// Best effort: a stale write here is corrected by the next child completion.
func (s *PaymentService) settleParent(ctx context.Context, child *domain.Payment) {
	parentID := *child.ParentPaymentID

	parent, err := s.paymentRepo.FindByID(ctx, parentID)
	if err != nil {
		s.logger.Error("parent lookup failed after partial settlement",
			"parent_id", parentID, "error", err)
		return
	}

	aggregate, err := s.paymentRepo.SumSettledByParent(ctx, parentID)
	if err != nil {
		s.logger.Error("aggregate settled lookup failed",
			"parent_id", parentID, "error", err)
		return
	}

	if err := parent.MarkPartiallySettled(aggregate); err != nil {
		s.logger.Warn("parent not eligible for partial settlement",
			"parent_id", parentID, "status", parent.Status, "error", err)
		return
	}
	if err := s.paymentRepo.Update(ctx, parent); err != nil {
		s.logger.Error("could not persist parent aggregate",
			"parent_id", parentID, "error", err)
	}
}

// CancelPayment aborts a payment that has not settled.
func (s *PaymentService) CancelPayment(ctx context.Context, id uuid.UUID) error {
	payment, err := s.paymentRepo.FindByID(ctx, id)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodePaymentNotFound) {
			return application.NewNotFoundError(err)
		}
		return application.NewInternalError(err)
	}

	if err := payment.Cancel(); err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeCannotCancel) {
			return application.NewCannotCancelError(err)
		}
		return application.NewAlreadyProcessedError(err)
	}

	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		return application.NewInternalError(err)
	}

	s.logger.Info("cancelled payment", "payment_id", id)
	return nil
}

// GetPayment retrieves a payment by id.
func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, id)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodePaymentNotFound) {
			return nil, application.NewNotFoundError(err)
		}
		return nil, application.NewInternalError(err)
	}
	return payment, nil
}

// GetPaymentsByTenant retrieves a tenant's payments, newest first.
func (s *PaymentService) GetPaymentsByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Payment, error) {
	return s.paymentRepo.FindByTenantID(ctx, tenantID, limit, offset)
}

// AggregateSettled sums the settled amounts of a parent's COMPLETED children.
func (s *PaymentService) AggregateSettled(ctx context.Context, parentID uuid.UUID) (decimal.Decimal, error) {
	if _, err := s.paymentRepo.FindByID(ctx, parentID); err != nil {
		if domain.IsErrorCode(err, domain.ErrCodePaymentNotFound) {
			return decimal.Zero, application.NewNotFoundError(err)
		}
		return decimal.Zero, application.NewInternalError(err)
	}
	return s.paymentRepo.SumSettledByParent(ctx, parentID)
}

// TotalPaidForLease sums settled amounts across a lease's completed payments.
func (s *PaymentService) TotalPaidForLease(ctx context.Context, leaseID uuid.UUID) (decimal.Decimal, error) {
	return s.paymentRepo.SumSettledByLease(ctx, leaseID)
}

// ProcessScheduledPayments sweeps PENDING payments whose scheduled time has
// arrived. Individual failures are captured on the payment and do not stop
// the batch; the return value counts successes.
func (s *PaymentService) ProcessScheduledPayments(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := s.paymentRepo.FindDueScheduled(ctx, now, limit)
	if err != nil {
		return 0, application.NewInternalError(err)
	}
	s.metrics.SweepBacklog.Set(float64(len(due)))

	processed := 0
	for _, payment := range due {
		if _, err := s.ProcessPayment(ctx, payment.ID); err != nil {
			s.logger.Error("scheduled payment failed",
				"payment_id", payment.ID, "error", err)
			continue
		}
		processed++
	}

	if len(due) > 0 {
		s.logger.Info("processed scheduled payments",
			"due", len(due), "processed", processed)
	}
	return processed, nil
}

// RetryFailedPayments sweeps payments eligible under the retry policy.
func (s *PaymentService) RetryFailedPayments(ctx context.Context, now time.Time, limit int) (int, error) {
	retryable, err := s.paymentRepo.FindRetryable(ctx, now, limit)
	if err != nil {
		return 0, application.NewInternalError(err)
	}

	retried := 0
	for _, payment := range retryable {
		if !payment.CanRetry(now) {
			continue
		}
		s.metrics.PaymentsRetried.Inc()
		if _, err := s.ProcessPayment(ctx, payment.ID); err != nil {
			s.logger.Error("payment retry failed",
				"payment_id", payment.ID, "error", err)
			continue
		}
		retried++
	}

	if len(retryable) > 0 {
		s.logger.Info("retried failed payments",
			"eligible", len(retryable), "retried", retried)
	}
	return retried, nil
}

// HandlePaymentCreated is the inbound port for externally delivered
// payment-created events (the scheduling engine's firings arrive here). The
// event's payment id doubles as the idempotency key, so redelivery resolves
// to the already-created payment instead of charging twice.
func (s *PaymentService) HandlePaymentCreated(ctx context.Context, event events.PaymentCreated) (*domain.Payment, error) {
	payment, err := s.CreatePayment(ctx, CreatePaymentCommand{
		TenantID:       event.TenantID,
		PropertyID:     event.PropertyID,
		LeaseID:        event.LeaseID,
		Amount:         event.Amount,
		Currency:       event.Currency,
		PaymentType:    domain.TypeRecurring,
		PaymentMethod:  domain.PaymentMethod(event.PaymentMethod),
		ScheduledFor:   event.ScheduledFor,
		IdempotencyKey: event.PaymentID.String(),
	})
	if err != nil {
		return nil, err
	}

	// Only a fresh payment, or a failed one whose backoff has elapsed, is
	// processed inline. Anything else (settled, in flight, or still inside
	// its backoff window) belongs to the retry sweep; charging here would
	// burn retry budget on every redelivery.
	now := time.Now().UTC()
	inFlight := payment.Status == domain.StatusPending ||
		(payment.Status == domain.StatusFailed && payment.CanRetry(now))
	if !inFlight {
		return payment, nil
	}

	if _, err := s.ProcessPayment(ctx, payment.ID); err != nil {
		var svcErr *application.ServiceError
		if errors.As(err, &svcErr) && svcErr.Code == application.ErrCodeAlreadyProcessed {
			// Redelivery of an event whose payment already ran.
			return payment, nil
		}
		return payment, err
	}
	return payment, nil
}

func (s *PaymentService) publishCreated(ctx context.Context, payment *domain.Payment) {
	err := s.publisher.PublishPaymentCreated(ctx, events.PaymentCreated{
		PaymentID:     payment.ID,
		TenantID:      payment.TenantID,
		PropertyID:    payment.PropertyID,
		LeaseID:       payment.LeaseID,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		PaymentMethod: string(payment.PaymentMethod),
		PaymentType:   string(payment.PaymentType),
		ScheduledFor:  payment.ScheduledFor,
		Timestamp:     time.Now().UTC(),
		Version:       1,
	})
	if err != nil {
		s.logger.Error("failed to publish payment-created",
			"payment_id", payment.ID, "error", err)
	}
}

func (s *PaymentService) publishCompleted(ctx context.Context, payment *domain.Payment) {
	settled := payment.Amount
	if payment.SettledAmount != nil {
		settled = *payment.SettledAmount
	}
	fee := decimal.Zero
	if payment.FeeAmount != nil {
		fee = *payment.FeeAmount
	}
	settledAt := time.Now().UTC()
	if payment.CompletedAt != nil {
		settledAt = *payment.CompletedAt
	}

	err := s.publisher.PublishPaymentCompleted(ctx, events.PaymentCompleted{
		PaymentID:        payment.ID,
		TransactionID:    derefString(payment.TransactionID),
		SettledAmount:    settled,
		FeeAmount:        fee,
		SettlementMethod: string(payment.PaymentMethod),
		SettledAt:        settledAt,
		Timestamp:        time.Now().UTC(),
		Version:          1,
	})
	if err != nil {
		s.logger.Error("failed to publish payment-completed",
			"payment_id", payment.ID, "error", err)
	}
}

func (s *PaymentService) publishFailed(ctx context.Context, payment *domain.Payment, code string, cause error) {
	err := s.publisher.PublishPaymentFailed(ctx, events.PaymentFailed{
		PaymentID:    payment.ID,
		ErrorCode:    code,
		ErrorMessage: cause.Error(),
		Retryable:    payment.RetryCount < payment.MaxRetries,
		RetryAfter:   payment.RetryAfter,
		Timestamp:    time.Now().UTC(),
		Version:      1,
	})
	if err != nil {
		s.logger.Error("failed to publish payment-failed",
			"payment_id", payment.ID, "error", err)
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
