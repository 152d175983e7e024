package postgres

import (
	"github.com/rentflow/payments/internal/domain"
)

// toDomainPayment: maps db model to domain entity
func toDomainPayment(m PaymentModel) *domain.Payment {
	return domain.Reconstitute(
		m.ID, m.TenantID, m.PropertyID, m.LeaseID,
		m.Amount, m.Currency,
		domain.PaymentType(m.PaymentType), domain.PaymentMethod(m.PaymentMethod),
		m.BankAccountID, m.ProcessorToken,
		domain.PaymentStatus(m.Status),
		m.SettledAmount, m.FeeAmount,
		m.TransactionID, m.FailureReason,
		m.RetryCount, m.MaxRetries, m.RetryAfter,
		m.ScheduledFor, m.CompletedAt,
		m.IdempotencyKey, m.Description,
		m.PartialPayment, m.ParentPaymentID,
		m.CreatedAt, m.UpdatedAt,
		m.Version,
	)
}

// toPaymentModel: maps domain entity to db model
func toPaymentModel(p *domain.Payment) *PaymentModel {
	return &PaymentModel{
		ID:              p.ID,
		TenantID:        p.TenantID,
		PropertyID:      p.PropertyID,
		LeaseID:         p.LeaseID,
		Amount:          p.Amount,
		Currency:        p.Currency,
		PaymentType:     string(p.PaymentType),
		PaymentMethod:   string(p.PaymentMethod),
		BankAccountID:   p.BankAccountID,
		ProcessorToken:  p.ProcessorToken,
		Status:          string(p.Status),
		SettledAmount:   p.SettledAmount,
		FeeAmount:       p.FeeAmount,
		TransactionID:   p.TransactionID,
		FailureReason:   p.FailureReason,
		RetryCount:      p.RetryCount,
		MaxRetries:      p.MaxRetries,
		RetryAfter:      p.RetryAfter,
		ScheduledFor:    p.ScheduledFor,
		CompletedAt:     p.CompletedAt,
		IdempotencyKey:  p.IdempotencyKey,
		Description:     p.Description,
		PartialPayment:  p.PartialPayment,
		ParentPaymentID: p.ParentPaymentID,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		Version:         p.Version,
	}
}

func toDomainSchedule(m ScheduleModel) *domain.PaymentSchedule {
	return &domain.PaymentSchedule{
		ID:                   m.ID,
		TenantID:             m.TenantID,
		PropertyID:           m.PropertyID,
		LeaseID:              m.LeaseID,
		Name:                 m.Name,
		Amount:               m.Amount,
		Currency:             m.Currency,
		PaymentMethod:        domain.PaymentMethod(m.PaymentMethod),
		BankAccountID:        m.BankAccountID,
		ProcessorToken:       m.ProcessorToken,
		RecurrencePattern:    domain.RecurrencePattern(m.RecurrencePattern),
		DayOfMonth:           m.DayOfMonth,
		DayOfWeek:            m.DayOfWeek,
		StartDate:            m.StartDate,
		EndDate:              m.EndDate,
		TotalOccurrences:     m.TotalOccurrences,
		Active:               m.Active,
		PausedAt:             m.PausedAt,
		PauseReason:          m.PauseReason,
		CompletedOccurrences: m.CompletedOccurrences,
		FailedOccurrences:    m.FailedOccurrences,
		NextExecutionTime:    m.NextExecutionTime,
		LastExecutionTime:    m.LastExecutionTime,
		LastPaymentID:        m.LastPaymentID,
		AutoRetry:            m.AutoRetry,
		MaxRetries:           m.MaxRetries,
		Description:          m.Description,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
		Version:              m.Version,
	}
}

func toScheduleModel(s *domain.PaymentSchedule) *ScheduleModel {
	return &ScheduleModel{
		ID:                   s.ID,
		TenantID:             s.TenantID,
		PropertyID:           s.PropertyID,
		LeaseID:              s.LeaseID,
		Name:                 s.Name,
		Amount:               s.Amount,
		Currency:             s.Currency,
		PaymentMethod:        string(s.PaymentMethod),
		BankAccountID:        s.BankAccountID,
		ProcessorToken:       s.ProcessorToken,
		RecurrencePattern:    string(s.RecurrencePattern),
		DayOfMonth:           s.DayOfMonth,
		DayOfWeek:            s.DayOfWeek,
		StartDate:            s.StartDate,
		EndDate:              s.EndDate,
		TotalOccurrences:     s.TotalOccurrences,
		Active:               s.Active,
		PausedAt:             s.PausedAt,
		PauseReason:          s.PauseReason,
		CompletedOccurrences: s.CompletedOccurrences,
		FailedOccurrences:    s.FailedOccurrences,
		NextExecutionTime:    s.NextExecutionTime,
		LastExecutionTime:    s.LastExecutionTime,
		LastPaymentID:        s.LastPaymentID,
		AutoRetry:            s.AutoRetry,
		MaxRetries:           s.MaxRetries,
		Description:          s.Description,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
		Version:              s.Version,
	}
}
