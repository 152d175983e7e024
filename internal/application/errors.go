package application

import (
	"errors"
	"fmt"
	"net/http"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyProcessed  = "ALREADY_PROCESSED"
	ErrCodeCannotCancel      = "CANNOT_CANCEL"
	ErrCodeGatewayFailure    = "GATEWAY_FAILURE"
	ErrCodeLedgerFailure     = "LEDGER_FAILURE"
	ErrCodeValidationFailure = "VALIDATION_FAILURE"
	ErrCodeStaleVersion      = "STALE_VERSION"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

func NewNotFoundError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeNotFound,
		Message:    "Resource not found",
		HTTPStatus: http.StatusNotFound,
		Err:        err,
	}
}

func NewAlreadyProcessedError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeAlreadyProcessed,
		Message:    "Payment has already been processed",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewCannotCancelError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeCannotCancel,
		Message:    "Completed payments cannot be cancelled",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewGatewayFailureError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeGatewayFailure,
		Message:    "Settlement partner call failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewLedgerFailureError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeLedgerFailure,
		Message:    "Ledger write failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewValidationError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeValidationFailure,
		Message:    "Invalid request",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewStaleVersionError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeStaleVersion,
		Message:    "Resource was modified concurrently",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
