package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business rule violation
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeInvalidTransition       = "INVALID_TRANSITION"
	ErrCodeAlreadyProcessed        = "ALREADY_PROCESSED"
	ErrCodeCannotCancel            = "CANNOT_CANCEL"
	ErrCodePaymentNotFound         = "PAYMENT_NOT_FOUND"
	ErrCodeScheduleNotFound        = "SCHEDULE_NOT_FOUND"
	ErrCodeParentNotFound          = "PARENT_NOT_FOUND"
	ErrCodeDuplicateIdempotencyKey = "DUPLICATE_IDEMPOTENCY_KEY"
	ErrCodeStaleVersion            = "STALE_VERSION"
	ErrCodeMissingRequiredField    = "MISSING_REQUIRED_FIELD"
	ErrCodeInvalidAmount           = "INVALID_AMOUNT"
)

func NewInvalidTransitionError(from, to PaymentStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

func NewAlreadyProcessedError(id string, status PaymentStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeAlreadyProcessed,
		Message: fmt.Sprintf("payment %s is already %s", id, status),
	}
}

func NewCannotCancelError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeCannotCancel,
		Message: fmt.Sprintf("payment %s is completed and cannot be cancelled", id),
	}
}

func NewPaymentNotFoundError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodePaymentNotFound,
		Message: fmt.Sprintf("payment with ID %s not found", id),
	}
}

func NewScheduleNotFoundError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeScheduleNotFound,
		Message: fmt.Sprintf("schedule with ID %s not found", id),
	}
}

func NewParentNotFoundError(parentID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeParentNotFound,
		Message: fmt.Sprintf("parent payment %s not found", parentID),
	}
}

func NewDuplicateKeyError(key string) *DomainError {
	return &DomainError{
		Code:    ErrCodeDuplicateIdempotencyKey,
		Message: fmt.Sprintf("idempotency key %s already exists", key),
	}
}

func NewStaleVersionError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeStaleVersion,
		Message: fmt.Sprintf("payment %s was modified concurrently", id),
	}
}

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
