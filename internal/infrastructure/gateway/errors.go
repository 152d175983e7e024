package gateway

import (
	"errors"
	"fmt"
)

type PartnerError struct {
	Code       string
	Message    string
	StatusCode int
}

type PartnerErrorResponse struct {
	Err     string `json:"error"`
	Message string `json:"message"`
}

func (e *PartnerError) Error() string {
	return fmt.Sprintf("partner error [%s]: %s (status: %d)", e.Code, e.Message, e.StatusCode)
}

func (e *PartnerError) IsRetryable() bool {
	return e.StatusCode >= 500
}

func IsPartnerError(err error) (*PartnerError, bool) {
	var partnerErr *PartnerError
	ok := errors.As(err, &partnerErr)
	return partnerErr, ok
}
